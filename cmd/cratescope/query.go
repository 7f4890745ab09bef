package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/cratescope"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the project database",
	Long:  "Lists what the loader recorded. The database is loaded or refreshed first when needed.",
}

func init() {
	addManifestRootFlag(queryCmd.PersistentFlags())
	addLoadFlags(queryCmd.PersistentFlags())

	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(queryCratesCmd)
	queryCmd.AddCommand(summaryCmd)
}

var filesCmd = &cobra.Command{
	Use:   "files [file...]",
	Short: "List tracked files",
	Long:  "Lists every tracked file, or only the named files resolved against the working directory.",
	RunE:  runFiles,
}

var flagOrphans bool

func init() {
	filesCmd.Flags().BoolVar(&flagOrphans, "orphans", false, "only list files no crate includes")
}

func runFiles(cmd *cobra.Command, args []string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	engine, _, err := loadEngine(cmd.Context(), rootDir, false, nil)
	if err != nil {
		return outputError(out, errw, "files", err)
	}
	defer engine.Close()

	var files []*cratescope.File
	if len(args) == 0 {
		if files, err = engine.Files(); err != nil {
			return outputError(out, errw, "files", err)
		}
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return outputError(out, errw, "files", fmt.Errorf("getting cwd: %w: %w", cratescope.ErrIO, err))
		}
		for _, arg := range args {
			f, err := engine.File(cwd, arg)
			if err != nil {
				return outputError(out, errw, "files", err)
			}
			files = append(files, f)
		}
	}
	orphans, err := engine.Store().OrphanFiles()
	if err != nil {
		return outputError(out, errw, "files", err)
	}
	orphaned := make(map[int64]bool, len(orphans))
	for _, f := range orphans {
		orphaned[f.ID] = true
	}

	cliFiles := make([]CLIFile, 0, len(files))
	for _, f := range files {
		if flagOrphans && !orphaned[f.ID] {
			continue
		}
		cliFiles = append(cliFiles, toCLIFile(f, orphaned[f.ID]))
	}
	return outputResult(out, CLIResult{Command: "files", Results: cliFiles})
}

var queryCratesCmd = &cobra.Command{
	Use:   "crates",
	Short: "List crates in enumeration order",
	Args:  cobra.NoArgs,
	RunE:  runQueryCrates,
}

func runQueryCrates(cmd *cobra.Command, args []string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	engine, _, err := loadEngine(cmd.Context(), rootDir, false, nil)
	if err != nil {
		return outputError(out, errw, "crates", err)
	}
	defer engine.Close()

	crates, err := engine.Crates()
	if err != nil {
		return outputError(out, errw, "crates", err)
	}
	cliCrates := make([]CLICrate, len(crates))
	for i, c := range crates {
		cliCrates[i] = toCLICrate(c)
		n, err := engine.Store().CrateFileCount(c.ID)
		if err != nil {
			return outputError(out, errw, "crates", err)
		}
		cliCrates[i].FileCount = &n

		feats, err := engine.CrateFeatures(c.ID)
		if err != nil {
			return outputError(out, errw, "crates", err)
		}
		for _, f := range feats {
			cliCrates[i].Declared = append(cliCrates[i].Declared, CLIFeature{Name: f.Name, Enabled: f.Enabled})
		}
		deps, err := engine.CrateDeps(c.ID)
		if err != nil {
			return outputError(out, errw, "crates", err)
		}
		for _, d := range deps {
			cliCrates[i].Deps = append(cliCrates[i].Deps, d.Label())
		}
	}
	return outputResult(out, CLIResult{Command: "crates", Results: cliCrates})
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show workspace summary statistics",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	engine, _, err := loadEngine(cmd.Context(), rootDir, false, nil)
	if err != nil {
		return outputError(out, errw, "summary", err)
	}
	defer engine.Close()

	summary, err := engine.Workspace()
	if err != nil {
		return outputError(out, errw, "summary", err)
	}
	return outputResult(out, CLIResult{Command: "summary", Results: summary})
}
