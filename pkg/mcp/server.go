// Package mcp exposes the formula engine and an in-memory workbook as Model
// Context Protocol tools served over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/recalc"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/store"
	"github.com/onlyadaydreamer/grid/pkg/workbook"
)

// Server wraps the MCP server
type Server struct {
	mcpServer *server.MCPServer
	store     *store.Store
	calc      *calc.Calculator

	recalcMu sync.Mutex
}

// New creates a new MCP server with all tools registered
func New(s *store.Store, c *calc.Calculator, version string) *Server {
	ms := server.NewMCPServer(
		"gridcalc",
		version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{mcpServer: ms, store: s, calc: c}
	srv.registerTools()

	return srv
}

// Run starts the MCP server on stdio
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("evaluate_formula",
		mcp.WithDescription("Evaluate a spreadsheet formula against the workbook and return its typed result"),
		mcp.WithString("formula", mcp.Required(), mcp.Description("Formula text, e.g. =SUM(A1:A10)")),
		mcp.WithString("anchor", mcp.Description("Cell the formula sits in, e.g. Sheet1!B2 (default: Sheet1!A1)")),
	), s.handleEvaluate)

	s.mcpServer.AddTool(mcp.NewTool("formula_dependencies",
		mcp.WithDescription("List the cells and ranges a formula reads, without evaluating it"),
		mcp.WithString("formula", mcp.Required(), mcp.Description("Formula text")),
		mcp.WithString("anchor", mcp.Description("Cell the formula sits in (default: Sheet1!A1)")),
	), s.handleDependencies)

	s.mcpServer.AddTool(mcp.NewTool("set_cell",
		mcp.WithDescription("Write raw text to a cell. Text starting with = is stored as a formula"),
		mcp.WithString("sheet", mcp.Description("Sheet name (default: Sheet1)")),
		mcp.WithString("cell", mcp.Required(), mcp.Description("Cell address, e.g. A1")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw cell text; empty clears the cell")),
		mcp.WithString("datatype", mcp.Description("number, string, boolean, formula or hyperlink (default: inferred)")),
	), s.handleSetCell)

	s.mcpServer.AddTool(mcp.NewTool("get_cell",
		mcp.WithDescription("Read a cell's raw text and its last computed result"),
		mcp.WithString("sheet", mcp.Description("Sheet name (default: Sheet1)")),
		mcp.WithString("cell", mcp.Required(), mcp.Description("Cell address, e.g. A1")),
	), s.handleGetCell)

	s.mcpServer.AddTool(mcp.NewTool("recalculate",
		mcp.WithDescription("Recompute every formula cell in dependency order and store the results"),
	), s.handleRecalculate)

	s.mcpServer.AddTool(mcp.NewTool("export_workbook",
		mcp.WithDescription("Return the workbook as YAML"),
	), s.handleExport)
}

func (s *Server) handleEvaluate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("formula", "")
	if text == "" {
		return mcp.NewToolResultError("formula is required"), nil
	}
	anchor, err := anchorArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.calc.Parse(text, anchor, s.store))
}

func (s *Server) handleDependencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("formula", "")
	if text == "" {
		return mcp.NewToolResultError("formula is required"), nil
	}
	anchor, err := anchorArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	refs, err := s.calc.Dependencies(text, anchor)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	deps := make([]string, len(refs))
	for i, ref := range refs {
		deps[i] = ref.String()
	}
	return jsonResult(map[string]any{"dependencies": deps})
}

func (s *Server) handleSetCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pos, err := cellArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := request.GetString("text", "")

	snap := sheet.CellSnapshot{
		Text:     text,
		DataType: sheet.DataType(request.GetString("datatype", "")),
	}
	if snap.DataType == "" {
		snap.DataType = sheet.InferDataType(text)
	}
	if err := s.store.SetCell(pos, snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(store.Cell{Position: pos, CellSnapshot: snap})
}

func (s *Server) handleGetCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pos, err := cellArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.store.GetSheet(pos.Sheet); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, _ := s.store.Get(pos)
	return jsonResult(store.Cell{Position: pos, CellSnapshot: snap})
}

func (s *Server) handleRecalculate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.recalcMu.Lock()
	defer s.recalcMu.Unlock()

	report, err := recalc.New(s.calc, s.store).Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(report)
}

func (s *Server) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := workbook.Marshal(s.store)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func anchorArg(request mcp.CallToolRequest) (sheet.CellPosition, error) {
	a := request.GetString("anchor", "")
	if a == "" {
		return calc.BasePosition, nil
	}
	return sheet.ParsePosition(a, calc.BasePosition.Sheet)
}

func cellArg(request mcp.CallToolRequest) (sheet.CellPosition, error) {
	addr := request.GetString("cell", "")
	if addr == "" {
		return sheet.CellPosition{}, errors.New("cell is required")
	}
	row, col, err := sheet.ParseA1(addr)
	if err != nil {
		return sheet.CellPosition{}, err
	}
	return sheet.CellPosition{
		Sheet: request.GetString("sheet", calc.BasePosition.Sheet),
		Row:   row,
		Col:   col,
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("JSON encoding error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
