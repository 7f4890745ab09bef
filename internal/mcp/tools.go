package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	cratescope "github.com/jward/cratescope"
)

type toolHandler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// CratesForFileResponse is the crates_for_file result.
type CratesForFileResponse struct {
	Path   string             `json:"path"`
	Orphan bool               `json:"orphan"`
	Crates []cratescope.Crate `json:"crates"`
}

// AddCratesForFileTool registers crates_for_file.
func AddCratesForFileTool(s *server.MCPServer, ws Workspace, root string) {
	tool := mcp.NewTool(
		"crates_for_file",
		mcp.WithDescription("List every crate that includes a Rust source file, with each crate's enabled features. An empty list means the file is tracked but no crate includes it."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path, absolute or relative to cwd")),
		mcp.WithString("cwd",
			mcp.Description("Directory relative paths resolve against (default: the workspace root)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createCratesForFileHandler(ws, root))
}

func createCratesForFileHandler(ws Workspace, root string) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil || path == "" {
			return mcp.NewToolResultError("path parameter is required"), nil
		}
		cwd := request.GetString("cwd", root)

		crates, err := ws.ResolveFileCrates(cwd, path)
		if err != nil {
			if isUserError(err) {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return nil, err
		}
		for i := range crates {
			if crates[i].Features == nil {
				crates[i].Features = []string{}
			}
		}
		return marshalToolResponse(CratesForFileResponse{
			Path:   path,
			Orphan: len(crates) == 0,
			Crates: crates,
		})
	}
}

// AddWorkspaceSummaryTool registers workspace_summary.
func AddWorkspaceSummaryTool(s *server.MCPServer, ws Workspace) {
	tool := mcp.NewTool(
		"workspace_summary",
		mcp.WithDescription("Summarize the loaded workspace: root, source roots, member packages, crates, tracked files and orphaned files."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createWorkspaceSummaryHandler(ws))
}

func createWorkspaceSummaryHandler(ws Workspace) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sum, err := ws.Workspace()
		if err != nil {
			return nil, err
		}
		return marshalToolResponse(sum)
	}
}

// AddOutlineTool registers outline.
func AddOutlineTool(s *server.MCPServer, intro *cratescope.Introspector) {
	tool := mcp.NewTool(
		"outline",
		mcp.WithDescription("Outline Rust source text: modules, items, fields, variants and associated items with byte ranges, parent indices and nesting depth."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Rust source text")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createOutlineHandler(intro))
}

func createOutlineHandler(intro *cratescope.Introspector) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		src, errResult := sourceArgument(request)
		if errResult != nil {
			return errResult, nil
		}
		symbols := slices.Collect(intro.Outline(src))
		if symbols == nil {
			symbols = []cratescope.Symbol{}
		}
		return marshalToolResponse(symbols)
	}
}

// AddHighlightTool registers highlight.
func AddHighlightTool(s *server.MCPServer, intro *cratescope.Introspector) {
	tool := mcp.NewTool(
		"highlight",
		mcp.WithDescription("Render Rust source text as syntax-highlighted HTML."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Rust source text")),
		mcp.WithBoolean("rainbow",
			mcp.Description("Color each variable and parameter name by a hash of the name (default: false)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createHighlightHandler(intro))
}

func createHighlightHandler(intro *cratescope.Introspector) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		src, errResult := sourceArgument(request)
		if errResult != nil {
			return errResult, nil
		}
		rainbow := request.GetBool("rainbow", false)
		return mcp.NewToolResultText(intro.RenderHighlight(src, rainbow)), nil
	}
}

// AddParseDumpTool registers parse_dump.
func AddParseDumpTool(s *server.MCPServer, intro *cratescope.Introspector) {
	tool := mcp.NewTool(
		"parse_dump",
		mcp.WithDescription("Dump the concrete syntax tree of Rust source text, one node per line with byte ranges."),
		mcp.WithString("source",
			mcp.Required(),
			mcp.Description("Rust source text")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createParseDumpHandler(intro))
}

func createParseDumpHandler(intro *cratescope.Introspector) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		src, errResult := sourceArgument(request)
		if errResult != nil {
			return errResult, nil
		}
		return mcp.NewToolResultText(intro.DumpTree(src)), nil
	}
}

// sourceArgument extracts the source argument. Empty text is valid input.
func sourceArgument(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	src, err := request.RequireString("source")
	if err != nil {
		return "", mcp.NewToolResultError("source parameter is required")
	}
	return src, nil
}

// isUserError reports whether err describes a bad request rather than a
// server fault.
func isUserError(err error) bool {
	return errors.Is(err, cratescope.ErrUntrackedPath) || errors.Is(err, cratescope.ErrPathResolution)
}

// marshalToolResponse marshals a response object to JSON and returns it as
// an MCP tool result.
func marshalToolResponse(response any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
