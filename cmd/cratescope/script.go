package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/cratescope/internal/runtime"
	"github.com/jward/cratescope/scripts"
)

var (
	flagBuiltin    string
	flagList       bool
	flagScriptsDir string
)

var scriptCmd = &cobra.Command{
	Use:   "script [file.risor]",
	Short: "Run a Risor script against the project database",
	Long: "Runs a batch script with crates_for, crates, files, outline, highlight and parse_dump in scope. " +
		"Use --builtin to run one of the bundled reports and --list to see them.",
	Args: cobra.MaximumNArgs(1),
	RunE: runScript,
}

func init() {
	scriptCmd.Flags().StringVar(&flagBuiltin, "builtin", "", "run a bundled report by name")
	scriptCmd.Flags().BoolVar(&flagList, "list", false, "list bundled reports")
	scriptCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "directory imports resolve against (default: the script's directory)")
	addManifestRootFlag(scriptCmd.Flags())
	addLoadFlags(scriptCmd.Flags())
}

func runScript(cmd *cobra.Command, args []string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if flagList {
		for _, name := range scripts.Names() {
			fmt.Fprintln(out, name)
		}
		return nil
	}

	var scriptPath string
	switch {
	case flagBuiltin != "" && len(args) > 0:
		return outputError(out, errw, "script", errors.New("give a script file or --builtin, not both"))
	case flagBuiltin != "":
		scriptPath = scripts.Path(flagBuiltin)
	case len(args) > 0:
		scriptPath = args[0]
	default:
		return outputError(out, errw, "script", errors.New("no script given (pass a file, --builtin or --list)"))
	}

	engine, _, err := loadEngine(cmd.Context(), rootDir, false, nil)
	if err != nil {
		return outputError(out, errw, "script", err)
	}
	defer engine.Close()

	cwd, err := os.Getwd()
	if err != nil {
		return outputError(out, errw, "script", err)
	}

	opts := []runtime.RuntimeOption{
		runtime.WithLogger(logger),
		runtime.WithWorkingDir(cwd),
		runtime.WithOutput(out),
	}
	scriptsDir := flagScriptsDir
	if flagBuiltin != "" {
		opts = append(opts, runtime.WithRuntimeFS(scripts.FS))
	} else {
		abs, err := filepath.Abs(scriptPath)
		if err != nil {
			return outputError(out, errw, "script", err)
		}
		scriptPath = abs
		if scriptsDir == "" {
			scriptsDir = filepath.Dir(abs)
		}
	}

	start := time.Now()
	rt := runtime.NewRuntime(engine, scriptsDir, opts...)
	if err := rt.RunScript(cmd.Context(), scriptPath, nil); err != nil {
		return outputError(out, errw, "script", err)
	}
	metrics.ReportSince("script_time", start)
	return nil
}
