package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Loader flags shared by every command that builds the database. Their
// values reach the loader through config.Load, which binds them by name.
var (
	flagManifestRoot      string
	flagLoadOutputDirs    bool
	flagWithProcMacro     bool
	flagFeatures          []string
	flagAllFeatures       bool
	flagNoDefaultFeatures bool
	flagCfg               []string
	flagIgnore            []string
	flagWorkers           int
)

// addLoadFlags registers the loader flags on fs.
func addLoadFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&flagLoadOutputDirs, "load-output-dirs", false, "include build script crates")
	fs.BoolVar(&flagWithProcMacro, "with-proc-macro", false, "request proc-macro expansion (accepted; macros are not expanded)")
	fs.StringSliceVar(&flagFeatures, "features", nil, "features to enable on workspace members")
	fs.BoolVar(&flagAllFeatures, "all-features", false, "enable every feature of workspace members")
	fs.BoolVar(&flagNoDefaultFeatures, "no-default-features", false, "do not enable the default feature")
	fs.StringSliceVar(&flagCfg, "cfg", nil, "extra cfg atoms, e.g. unix or feature=\"x\"")
	fs.StringSliceVar(&flagIgnore, "ignore", nil, "glob patterns of paths to skip")
	fs.IntVar(&flagWorkers, "workers", 0, "parallel module-tree walkers (0: one per CPU)")
}

// addManifestRootFlag registers --manifest-root on fs.
func addManifestRootFlag(fs *pflag.FlagSet) {
	fs.StringVar(&flagManifestRoot, "manifest-root", "", "workspace root (default: nearest Cargo workspace above the working directory)")
}

var (
	flagForce    bool
	flagProgress bool
)

var loadCmd = &cobra.Command{
	Use:   "load [root]",
	Short: "Build the project database for a Cargo workspace",
	Long: "Discovers the workspace's packages and targets, walks each crate's module tree and writes the " +
		"result to the SQLite database. The load is skipped when nothing changed since the last one.",
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().BoolVar(&flagForce, "force", false, "rebuild even if the workspace is unchanged")
	loadCmd.Flags().BoolVar(&flagProgress, "progress", false, "show a progress bar")
	addLoadFlags(loadCmd.Flags())
}

func runLoad(cmd *cobra.Command, args []string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()

	var progress func(done, total int)
	var bar *loadProgress
	if flagProgress {
		bar = newLoadProgress(errw)
		progress = bar.Update
	}

	engine, stats, err := loadEngine(cmd.Context(), rootDir, flagForce, progress)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return outputError(out, errw, "load", err)
	}
	defer engine.Close()

	metrics.Report("load_time", uint64(stats.Duration.Milliseconds()), "ms")
	if stats.Skipped {
		fmt.Fprintf(errw, "Database up to date: %s (%d files)\n", cfg.DBPath(rootDir), stats.Files)
		return nil
	}
	metrics.Report("crates", uint64(stats.Crates), "#")
	metrics.Report("files", uint64(stats.Files), "#")

	fmt.Fprintf(errw, "Loaded %s in %s (%d packages, %d crates, %d files)\n",
		stats.Root,
		stats.Duration.Round(time.Millisecond),
		stats.Packages, stats.Crates, stats.Files,
	)
	fmt.Fprintf(errw, "Database: %s\n", cfg.DBPath(rootDir))
	return nil
}
