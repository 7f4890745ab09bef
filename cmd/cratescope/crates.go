package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/cratescope"
)

var flagAll bool

var cratesCmd = &cobra.Command{
	Use:   "crates <file>",
	Short: "List the crates that include a file",
	Long: "Resolves file against the working directory and prints every crate whose module tree " +
		"includes it, with the crate's enabled features. A file no crate includes prints nothing.",
	Args: cobra.ExactArgs(1),
	RunE: runCrates,
}

func init() {
	addManifestRootFlag(cratesCmd.Flags())
	addLoadFlags(cratesCmd.Flags())
	cratesCmd.Flags().BoolVar(&flagAll, "all", false, "accepted for compatibility; every owning crate is always listed")
}

func runCrates(cmd *cobra.Command, args []string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	file := args[0]

	engine, stats, err := loadEngine(cmd.Context(), rootDir, false, nil)
	if err != nil {
		return outputError(out, errw, "crates", err)
	}
	defer engine.Close()
	metrics.Report("load_time", uint64(stats.Duration.Milliseconds()), "ms")

	cwd, err := os.Getwd()
	if err != nil {
		return outputError(out, errw, "crates", fmt.Errorf("getting cwd: %w: %w", cratescope.ErrIO, err))
	}

	start := time.Now()
	crates, err := engine.ResolveFileCrates(cwd, file)
	if err != nil {
		return outputError(out, errw, "crates", err)
	}
	metrics.ReportSince("resolve_time", start)
	metrics.Report("crates", uint64(len(crates)), "#")

	if len(crates) == 0 {
		fmt.Fprintf(errw, "%s is not included in any crate\n", file)
	}

	result := CLICratesForFile{File: file, Crates: make([]CLICrate, len(crates))}
	for i := range crates {
		result.Crates[i] = toCLICrate(&crates[i])
	}
	return outputResult(out, CLIResult{Command: "crates", Results: result})
}
