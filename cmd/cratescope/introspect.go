package main

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/cratescope"
)

var (
	flagRainbow bool
	flagNoDump  bool
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Print the outline of Rust source read from stdin",
	Args:  cobra.NoArgs,
	RunE:  runSymbols,
}

var highlightCmd = &cobra.Command{
	Use:   "highlight",
	Short: "Render Rust source read from stdin as highlighted HTML",
	Args:  cobra.NoArgs,
	RunE:  runHighlight,
}

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Parse Rust source read from stdin and dump the syntax tree",
	Args:  cobra.NoArgs,
	RunE:  runParse,
}

func init() {
	highlightCmd.Flags().BoolVar(&flagRainbow, "rainbow", false, "color local bindings by name")
	parseCmd.Flags().BoolVar(&flagNoDump, "no-dump", false, "parse without printing the tree")
}

// readStdin reads the whole of the command's input.
func readStdin(cmd *cobra.Command) (string, error) {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w: %w", cratescope.ErrIO, err)
	}
	return string(data), nil
}

func runSymbols(cmd *cobra.Command, args []string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	text, err := readStdin(cmd)
	if err != nil {
		return outputError(out, errw, "symbols", err)
	}

	start := time.Now()
	syms := slices.Collect(cratescope.NewIntrospector(nil).Outline(text))
	if syms == nil {
		syms = []cratescope.Symbol{}
	}
	metrics.ReportSince("outline_time", start)
	metrics.Report("symbols", uint64(len(syms)), "#")

	return outputResult(out, CLIResult{Command: "symbols", Results: syms})
}

func runHighlight(cmd *cobra.Command, args []string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	text, err := readStdin(cmd)
	if err != nil {
		return outputError(out, errw, "highlight", err)
	}

	start := time.Now()
	html := cratescope.NewIntrospector(nil).RenderHighlight(text, flagRainbow)
	metrics.ReportSince("highlight_time", start)

	fmt.Fprintln(out, html)
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	out, errw := cmd.OutOrStdout(), cmd.ErrOrStderr()
	text, err := readStdin(cmd)
	if err != nil {
		return outputError(out, errw, "parse", err)
	}

	start := time.Now()
	tree := cratescope.NewIntrospector(nil).Parse(text)
	defer tree.Close()
	metrics.ReportSince("parse_time", start)
	metrics.Report("top_level", uint64(tree.TopLevel()), "#")

	if tree.HasErrors() {
		logger.Warn("source contains syntax errors")
	}
	if !flagNoDump {
		fmt.Fprint(out, tree.Dump())
	}
	return nil
}
