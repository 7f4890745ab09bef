package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/cratescope"
	"github.com/jward/cratescope/internal/config"
	"github.com/jward/cratescope/internal/workspace"
)

var (
	flagDB        string
	flagFormat    string
	flagConfig    string
	flagQuiet     bool
	flagVerbose   int
	flagMetrics   bool
	flagCacheSize int
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// Set by setup before any command runs.
var (
	rootDir string
	cfg     *config.Config
	logger  *slog.Logger
	metrics *cratescope.MetricReporter
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cratescope",
	Short: "Map Rust source files to the crates that include them",
	Long: "Cratescope loads a Cargo workspace into a SQLite database, answers which crates include a file, " +
		"and outlines, highlights or dumps Rust source read from stdin.",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	// No Run; prints help by default.
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDB, "db", "", "database path (default: target/cratescope.db under the workspace root)")
	pf.StringVar(&flagFormat, "format", "text", "output format: text|json")
	pf.StringVar(&flagConfig, "config", "", "config file (default: .cratescope.yaml in the workspace root)")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "only log warnings and errors")
	pf.CountVarP(&flagVerbose, "verbose", "v", "log more (-vv adds source locations)")
	pf.BoolVar(&flagMetrics, "metrics", false, "print METRIC:<name>:<value>:<unit> lines")
	pf.IntVar(&flagCacheSize, "cache-size", cratescope.DefaultCacheSize, "crate lookup cache entries")

	rootCmd.AddCommand(cratesCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(highlightCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(mcpCmd)
}

// setup loads configuration for the workspace the command targets and
// builds the logger and metric reporter.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	rootDir, err = workspaceRoot(cmd, args)
	if err != nil {
		return err
	}
	cfg, err = config.Load(rootDir, flagConfig, cmd.Flags())
	if err != nil {
		return err
	}
	logger = config.NewLogger(cmd.ErrOrStderr(), config.VerbosityFrom(flagQuiet, flagVerbose))
	metrics = cratescope.NewMetricReporter(cmd.OutOrStdout(), cfg.Metrics)
	logger.Debug("configuration loaded", "root", rootDir, "db", cfg.DBPath(rootDir), "format", cfg.Format)
	return nil
}

// workspaceRoot picks the directory whose config applies: --manifest-root
// when the command has it, the load argument, or the workspace enclosing
// the working directory.
func workspaceRoot(cmd *cobra.Command, args []string) (string, error) {
	if f := cmd.Flags().Lookup("manifest-root"); f != nil && f.Value.String() != "" {
		return resolveTargetDir(f.Value.String())
	}
	if cmd == loadCmd && len(args) > 0 {
		return resolveTargetDir(args[0])
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w: %w", cratescope.ErrIO, err)
	}
	return findWorkspaceRoot(cwd), nil
}

// resolveTargetDir returns the absolute path of an existing directory.
func resolveTargetDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findWorkspaceRoot walks up from startDir to the nearest Cargo.toml with
// a [workspace] table. Without one it returns the nearest directory holding
// a Cargo.toml, or startDir if there is none.
func findWorkspaceRoot(startDir string) string {
	nearest := ""
	dir := startDir
	for {
		path := filepath.Join(dir, workspace.ManifestFile)
		if m, _, err := workspace.ReadManifest(path); err == nil {
			if m.Workspace != nil {
				return dir
			}
			if nearest == "" {
				nearest = dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if nearest != "" {
		return nearest
	}
	return startDir
}

// loadEngine opens the database for root and brings it up to date with the
// manifests on disk. Loading is skipped when nothing changed.
func loadEngine(ctx context.Context, root string, force bool, progress func(done, total int)) (*cratescope.Engine, *cratescope.LoadStats, error) {
	dbPath := cfg.DBPath(root)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating %s: %w: %w", filepath.Dir(dbPath), cratescope.ErrIO, err)
	}

	loadOpts := cfg.ToLoadOptions()
	loadOpts.Progress = progress
	engine, err := cratescope.New(dbPath,
		cratescope.WithLoadOptions(loadOpts),
		cratescope.WithLogger(logger),
		cratescope.WithCacheSize(cfg.CacheSize),
	)
	if err != nil {
		return nil, nil, err
	}

	stats, err := engine.Load(ctx, root, force)
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	return engine, stats, nil
}
