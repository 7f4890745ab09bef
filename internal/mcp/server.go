// Package mcp serves cratescope queries over the Model Context Protocol on
// stdio: crate ownership of files, outlines, highlighting and tree dumps.
package mcp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	cratescope "github.com/jward/cratescope"
)

// ServerName and ServerVersion identify the server to MCP clients.
const (
	ServerName    = "cratescope"
	ServerVersion = "0.1.0"
)

// Workspace is the loaded project database the tools query.
// *cratescope.Engine satisfies it.
type Workspace interface {
	ResolveFileCrates(cwd, file string) ([]cratescope.Crate, error)
	Workspace() (*cratescope.WorkspaceSummary, error)
}

// Server wraps an MCP server with every cratescope tool registered.
type Server struct {
	mcp    *server.MCPServer
	logger *slog.Logger
}

// NewServer registers the tools against ws and intro. Relative paths in
// requests resolve against root.
func NewServer(ws Workspace, intro *cratescope.Introspector, root string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	AddCratesForFileTool(s, ws, root)
	AddWorkspaceSummaryTool(s, ws)
	AddOutlineTool(s, intro)
	AddHighlightTool(s, intro)
	AddParseDumpTool(s, intro)

	return &Server{mcp: s, logger: logger}
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve runs the server on stdin/stdout until the client disconnects or
// ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO runs the server on in and out. Cancelling ctx stops the read
// loop and drains the tool workers before ServeIO returns.
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("serving MCP on stdio", "name", ServerName, "version", ServerVersion)

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	err := stdio.Listen(ctx, in, out)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("mcp: serve: %w", err)
	}
	return nil
}
