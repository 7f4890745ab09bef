package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jward/cratescope"
)

// formatCrateOwnersText prints one "<display_name>: [feat, ...]" line per crate.
func formatCrateOwnersText(w io.Writer, crates []CLICrate) {
	for _, c := range crates {
		fmt.Fprintf(w, "%s: [%s]\n", c.DisplayName, strings.Join(c.Features, ", "))
	}
}

// formatCratesText formats CLICrate results as aligned columns.
func formatCratesText(w io.Writer, crates []CLICrate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ORD\tNAME\tKIND\tEDITION\tFILES\tFEATURES\tDISABLED\tDEPS")
	for _, c := range crates {
		files := "-"
		if c.FileCount != nil {
			files = fmt.Sprint(*c.FileCount)
		}
		var disabled []string
		for _, f := range c.Declared {
			if !f.Enabled {
				disabled = append(disabled, f.Name)
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Ordinal, c.DisplayName, c.Kind, c.Edition, files,
			strings.Join(c.Features, ","), strings.Join(disabled, ","), strings.Join(c.Deps, ","))
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tLINES\tORPHAN")
	for _, f := range files {
		orphan := ""
		if f.Orphan {
			orphan = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", f.ID, f.Path, f.LineCount, orphan)
	}
	tw.Flush()
}

// formatSummaryText formats a workspace summary as readable text.
func formatSummaryText(w io.Writer, s *cratescope.WorkspaceSummary) {
	fmt.Fprintln(w, "Workspace Summary")
	fmt.Fprintln(w, "=================")
	fmt.Fprintf(w, "Root: %s\n", s.Root)
	if s.LoadedAt != "" {
		fmt.Fprintf(w, "Loaded: %s\n", s.LoadedAt)
	}
	fmt.Fprintf(w, "Source roots: %d (%d members)\n", s.SourceRoots, s.Members)
	fmt.Fprintf(w, "Crates: %d\n", s.Crates)
	fmt.Fprintf(w, "Files: %d (%d orphaned)\n", s.Files, s.Orphans)
}

// formatSymbolsText prints one line per outline symbol.
func formatSymbolsText(w io.Writer, syms []cratescope.Symbol) {
	for _, s := range syms {
		fmt.Fprintln(w, s.String())
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLICratesForFile:
		formatCrateOwnersText(w, v.Crates)
	case []CLICrate:
		formatCratesText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case *cratescope.WorkspaceSummary:
		formatSummaryText(w, v)
	case []cratescope.Symbol:
		formatSymbolsText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult writes result in the configured format.
func outputResult(w io.Writer, result CLIResult) error {
	if cfg.Format == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(w, errw io.Writer, command string, err error) error {
	errorHandled = true
	if cfg == nil || cfg.Format == "text" {
		fmt.Fprintf(errw, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}
