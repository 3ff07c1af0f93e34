package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server exposing read-only pipeline tools
// over stdio.
func NewMCPServer(p Pipeline) *server.MCPServer {
	s := server.NewMCPServer(
		"cvsift",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("cvsift resume classification pipeline: inspect manifest state and trigger reconciliation."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_resumes",
			mcp.WithDescription("List every resume in the manifest with its current label."),
		),
		mcpListResumes(p),
	)

	s.AddTool(
		mcp.NewTool("resume_status",
			mcp.WithDescription("Return the current label of one resume."),
			mcp.WithString("filename", mcp.Description("Manifest filename, e.g. candidate.pdf"), mcp.Required()),
		),
		mcpResumeStatus(p),
	)

	s.AddTool(
		mcp.NewTool("trigger_reconcile",
			mcp.WithDescription("Run a reconciliation sweep: drop orphaned manifest entries and re-admit stuck jobs."),
			mcp.WithBoolean("force", mcp.Description("Also touch stuck files to regenerate watcher events")),
		),
		mcpTriggerReconcile(p),
	)

	return s
}

func mcpListResumes(p Pipeline) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entries, err := p.List()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list resumes: %v", err)), nil
		}

		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal entries: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResumeStatus(p Pipeline) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filename, err := req.RequireString("filename")
		if err != nil {
			return mcpError("filename is required"), nil
		}

		entries, err := p.List()
		if err != nil {
			return mcpError(fmt.Sprintf("failed to read manifest: %v", err)), nil
		}
		for _, e := range entries {
			if e.Filename == filename {
				return mcpText(string(e.Label)), nil
			}
		}
		return mcpError(fmt.Sprintf("no manifest entry for %s", filename)), nil
	}
}

func mcpTriggerReconcile(p Pipeline) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		force := req.GetBool("force", false)

		res, err := p.Reconcile(ctx, force)
		if err != nil {
			return mcpError(fmt.Sprintf("reconciliation failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("removed %d orphans, requeued %d, kept %d", res.Removed, res.Requeued, res.Kept)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
