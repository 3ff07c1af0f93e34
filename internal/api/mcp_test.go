package api

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/cvsift/internal/manifest"
	"github.com/kalambet/cvsift/internal/reconcile"
)

func callToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func TestMCPListResumes(t *testing.T) {
	p := &mockPipeline{
		listFn: func() ([]manifest.Entry, error) {
			return []manifest.Entry{{Filename: "a.pdf", Label: manifest.StatusExceeds}}, nil
		},
	}

	result, err := mcpListResumes(p)(context.Background(), callToolRequest("list_resumes", nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", textContent(t, result))
	}

	text := textContent(t, result)
	if !strings.Contains(text, "a.pdf") || !strings.Contains(text, "exceeds") {
		t.Errorf("text = %q, want entry with label", text)
	}
}

func TestMCPResumeStatus(t *testing.T) {
	p := &mockPipeline{
		listFn: func() ([]manifest.Entry, error) {
			return []manifest.Entry{{Filename: "a.pdf", Label: manifest.StatusRejected}}, nil
		},
	}

	result, err := mcpResumeStatus(p)(context.Background(), callToolRequest("resume_status", map[string]any{"filename": "a.pdf"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if got := textContent(t, result); got != "rejected" {
		t.Errorf("text = %q, want rejected", got)
	}

	result, err = mcpResumeStatus(p)(context.Background(), callToolRequest("resume_status", map[string]any{"filename": "ghost.pdf"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("unknown filename did not produce a tool error")
	}
}

func TestMCPTriggerReconcile(t *testing.T) {
	var gotForce bool
	p := &mockPipeline{
		reconcileFn: func(_ context.Context, force bool) (reconcile.Result, error) {
			gotForce = force
			return reconcile.Result{Removed: 2, Requeued: 1}, nil
		},
	}

	result, err := mcpTriggerReconcile(p)(context.Background(), callToolRequest("trigger_reconcile", map[string]any{"force": true}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", textContent(t, result))
	}
	if !gotForce {
		t.Error("force not propagated")
	}
	if text := textContent(t, result); !strings.Contains(text, "removed 2") {
		t.Errorf("text = %q", text)
	}
}
