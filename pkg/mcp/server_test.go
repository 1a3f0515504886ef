package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s := store.New()
	if _, err := s.CreateSheet("Sheet1", 10, 5); err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	return New(s, calc.New(), "test")
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is not TextContent type")
	}
	return text.Text
}

func decode(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %s", resultText(t, result))
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("failed to parse result JSON: %v", err)
	}
	return out
}

func TestHandleSetCellAndEvaluate(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	for cell, text := range map[string]string{"A1": "3", "A2": "4", "A3": "=A1*A2"} {
		result, err := srv.handleSetCell(ctx, call("set_cell", map[string]any{"cell": cell, "text": text}))
		if err != nil {
			t.Fatalf("handleSetCell returned error: %v", err)
		}
		decode(t, result)
	}

	tests := []struct {
		name       string
		args       map[string]any
		resultType string
		result     any
	}{
		{"reference", map[string]any{"formula": "=A1+A2"}, "number", 7.0},
		{"text", map[string]any{"formula": "=UPPER(\"ok\")"}, "string", "OK"},
		{"unknown function", map[string]any{"formula": "=FOOBAR(1)"}, "error", nil},
		{"anchored", map[string]any{"formula": "=ROW()", "anchor": "Sheet1!B9"}, "number", 9.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := srv.handleEvaluate(ctx, call("evaluate_formula", tt.args))
			if err != nil {
				t.Fatalf("handleEvaluate returned error: %v", err)
			}
			out := decode(t, result)
			if out["resultType"] != tt.resultType {
				t.Errorf("resultType: got %v, want %s", out["resultType"], tt.resultType)
			}
			if out["result"] != tt.result {
				t.Errorf("result: got %v, want %v", out["result"], tt.result)
			}
		})
	}
}

func TestHandleEvaluateInvalidArguments(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing formula", map[string]any{}},
		{"bad anchor", map[string]any{"formula": "=1", "anchor": "Sheet1!??"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := srv.handleEvaluate(context.Background(), call("evaluate_formula", tt.args))
			if err != nil {
				t.Fatalf("handleEvaluate returned error: %v", err)
			}
			if !result.IsError {
				t.Errorf("expected a tool error, got %s", resultText(t, result))
			}
		})
	}
}

func TestHandleDependencies(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleDependencies(context.Background(), call("formula_dependencies", map[string]any{
		"formula": "=A1+Sheet2!B2:B4",
	}))
	if err != nil {
		t.Fatalf("handleDependencies returned error: %v", err)
	}
	deps, _ := decode(t, result)["dependencies"].([]any)
	if len(deps) != 2 || deps[0] != "Sheet1!A1" || deps[1] != "Sheet2!B2:B4" {
		t.Errorf("got %v", deps)
	}
}

func TestHandleRecalculate(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	srv.handleSetCell(ctx, call("set_cell", map[string]any{"cell": "A1", "text": "5"}))
	srv.handleSetCell(ctx, call("set_cell", map[string]any{"cell": "B1", "text": "=A1*3"}))

	result, err := srv.handleRecalculate(ctx, call("recalculate", nil))
	if err != nil {
		t.Fatalf("handleRecalculate returned error: %v", err)
	}
	if report := decode(t, result); report["evaluated"] != 1.0 {
		t.Errorf("report: %v", report)
	}

	result, err = srv.handleGetCell(ctx, call("get_cell", map[string]any{"cell": "B1"}))
	if err != nil {
		t.Fatalf("handleGetCell returned error: %v", err)
	}
	if cell := decode(t, result); cell["result"] != 15.0 {
		t.Errorf("B1: got %v", cell)
	}

	result, err = srv.handleExport(ctx, call("export_workbook", nil))
	if err != nil {
		t.Fatalf("handleExport returned error: %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "B1:") {
		t.Errorf("export missing B1:\n%s", text)
	}
}

func TestHandleGetCellUnknownSheet(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleGetCell(context.Background(), call("get_cell", map[string]any{"sheet": "Nope", "cell": "A1"}))
	if err != nil {
		t.Fatalf("handleGetCell returned error: %v", err)
	}
	if !result.IsError {
		t.Errorf("expected a tool error, got %s", resultText(t, result))
	}
}
