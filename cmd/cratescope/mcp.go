package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/cratescope/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve crate and introspection queries over MCP on stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	addManifestRootFlag(mcpCmd.Flags())
	addLoadFlags(mcpCmd.Flags())
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries the protocol; errors go to stderr only.
	engine, _, err := loadEngine(cmd.Context(), rootDir, false, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcp.NewServer(engine, engine.Introspector(), rootDir, logger)
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
