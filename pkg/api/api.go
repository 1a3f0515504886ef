// Package api implements the REST host contract: formula evaluation,
// dependency queries, sheet and cell management, the pending-value overlay
// and workbook recalculation.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/recalc"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/store"
	"github.com/onlyadaydreamer/grid/pkg/workbook"
)

// Server is the HTTP API server.
type Server struct {
	app   *fiber.App
	store *store.Store
	calc  *calc.Calculator

	// Serializes recalculations; each one clears the shared overlay.
	recalcMu sync.Mutex
}

// New creates a new API server over s. Formulas read cells from s through
// c's pending-value overlay.
func New(s *store.Store, c *calc.Calculator) *Server {
	srv := &Server{
		store: s,
		calc:  c,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	// Formula API
	app.Post("/v1/formulas\\:evaluate", srv.evaluate)
	app.Post("/v1/formulas\\:dependencies", srv.dependencies)
	app.Get("/v1/functions", srv.listFunctions)

	// Sheets API
	app.Post("/v1/sheets", srv.createSheet)
	app.Get("/v1/sheets", srv.listSheets)
	app.Get("/v1/sheets/:sheet", srv.getSheet)
	app.Patch("/v1/sheets/:sheet", srv.resizeSheet)
	app.Delete("/v1/sheets/:sheet", srv.deleteSheet)

	// Cells API
	app.Get("/v1/sheets/:sheet/cells", srv.listCells)
	app.Get("/v1/sheets/:sheet/cells/:cell", srv.getCell)
	app.Put("/v1/sheets/:sheet/cells/:cell", srv.setCell)
	app.Delete("/v1/sheets/:sheet/cells/:cell", srv.clearCell)

	// Overlay and workbook API
	app.Get("/v1/overlay", srv.getOverlay)
	app.Post("/v1/overlay\\:cache", srv.cacheValues)
	app.Post("/v1/overlay\\:clear", srv.clearOverlay)
	app.Post("/v1/workbook\\:recalculate", srv.recalculate)
	app.Get("/v1/workbook", srv.exportWorkbook)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Serve serves HTTP on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// --- Formula Handlers ---

type formulaRequest struct {
	Formula string `json:"formula"`
	// Anchor is the cell the formula sits in, e.g. "Sheet1!B2". Defaults
	// to Sheet1!A1.
	Anchor string `json:"anchor"`
}

func (s *Server) evaluate(c *fiber.Ctx) error {
	req, anchor, err := parseFormulaRequest(c)
	if err != nil {
		return err
	}
	return c.JSON(s.calc.Parse(req.Formula, anchor, s.store))
}

func (s *Server) dependencies(c *fiber.Ctx) error {
	req, anchor, err := parseFormulaRequest(c)
	if err != nil {
		return err
	}

	refs, err := s.calc.Dependencies(req.Formula, anchor)
	if err != nil {
		return invalidArgument(err.Error())
	}
	return c.JSON(fiber.Map{
		"dependencies": referencesToJSON(refs),
	})
}

func parseFormulaRequest(c *fiber.Ctx) (formulaRequest, sheet.CellPosition, error) {
	var req formulaRequest
	if err := c.BodyParser(&req); err != nil {
		return req, sheet.CellPosition{}, invalidArgument(fmt.Sprintf("invalid request body: %v", err))
	}

	anchor := calc.BasePosition
	if req.Anchor != "" {
		var err error
		anchor, err = sheet.ParsePosition(req.Anchor, calc.BasePosition.Sheet)
		if err != nil {
			return req, sheet.CellPosition{}, invalidArgument(fmt.Sprintf("invalid anchor: %v", err))
		}
	}
	return req, anchor, nil
}

func (s *Server) listFunctions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"functions": s.calc.Functions(),
	})
}

// --- Sheet Handlers ---

type sheetRequest struct {
	Name        string `json:"name"`
	RowCount    int    `json:"rowCount"`
	ColumnCount int    `json:"columnCount"`
}

func (s *Server) createSheet(c *fiber.Ctx) error {
	var req sheetRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidArgument(fmt.Sprintf("invalid request body: %v", err))
	}

	sh, err := s.store.CreateSheet(req.Name, req.RowCount, req.ColumnCount)
	if err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(sh)
}

func (s *Server) listSheets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"sheets": s.store.ListSheets(),
	})
}

func (s *Server) getSheet(c *fiber.Ctx) error {
	sh, err := s.store.GetSheet(c.Params("sheet"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(sh)
}

func (s *Server) resizeSheet(c *fiber.Ctx) error {
	var req sheetRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidArgument(fmt.Sprintf("invalid request body: %v", err))
	}

	sh, err := s.store.ResizeSheet(c.Params("sheet"), req.RowCount, req.ColumnCount)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(sh)
}

func (s *Server) deleteSheet(c *fiber.Ctx) error {
	if err := s.store.DeleteSheet(c.Params("sheet")); err != nil {
		return storeError(err)
	}
	return c.JSON(fiber.Map{})
}

// --- Cell Handlers ---

func (s *Server) listCells(c *fiber.Ctx) error {
	cells, err := s.store.Cells(c.Params("sheet"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(fiber.Map{
		"cells": cells,
	})
}

func (s *Server) getCell(c *fiber.Ctx) error {
	pos, err := cellPosition(c)
	if err != nil {
		return err
	}

	snap, ok := s.store.Get(pos)
	if !ok {
		if _, err := s.store.GetSheet(pos.Sheet); err != nil {
			return storeError(err)
		}
		return &apiError{Code: fiber.StatusNotFound, Status: "NOT_FOUND", Message: fmt.Sprintf("cell %s is empty", pos)}
	}
	return c.JSON(store.Cell{Position: pos, CellSnapshot: snap})
}

func (s *Server) setCell(c *fiber.Ctx) error {
	pos, err := cellPosition(c)
	if err != nil {
		return err
	}

	var snap sheet.CellSnapshot
	if err := c.BodyParser(&snap); err != nil {
		return invalidArgument(fmt.Sprintf("invalid request body: %v", err))
	}
	if snap.DataType == "" {
		snap.DataType = sheet.InferDataType(snap.Text)
	}

	if err := s.store.SetCell(pos, snap); err != nil {
		return storeError(err)
	}
	return c.JSON(store.Cell{Position: pos, CellSnapshot: snap})
}

func (s *Server) clearCell(c *fiber.Ctx) error {
	pos, err := cellPosition(c)
	if err != nil {
		return err
	}
	if err := s.store.ClearCell(pos); err != nil {
		return storeError(err)
	}
	return c.JSON(fiber.Map{})
}

func cellPosition(c *fiber.Ctx) (sheet.CellPosition, error) {
	row, col, err := sheet.ParseA1(c.Params("cell"))
	if err != nil {
		return sheet.CellPosition{}, invalidArgument(fmt.Sprintf("invalid cell address %q", c.Params("cell")))
	}
	return sheet.CellPosition{Sheet: c.Params("sheet"), Row: row, Col: col}, nil
}

// --- Overlay and Workbook Handlers ---

type cacheRequest struct {
	Changes sheet.Changes `json:"changes"`
}

func (s *Server) getOverlay(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"pending": s.calc.PendingCount(),
	})
}

func (s *Server) cacheValues(c *fiber.Ctx) error {
	var req cacheRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidArgument(fmt.Sprintf("invalid request body: %v", err))
	}
	s.calc.CacheValues(req.Changes)
	return c.JSON(fiber.Map{
		"pending": s.calc.PendingCount(),
	})
}

func (s *Server) clearOverlay(c *fiber.Ctx) error {
	s.calc.ClearCachedValues()
	return c.JSON(fiber.Map{
		"pending": 0,
	})
}

func (s *Server) recalculate(c *fiber.Ctx) error {
	s.recalcMu.Lock()
	defer s.recalcMu.Unlock()

	ctx, cancel := context.WithTimeout(c.UserContext(), time.Minute)
	defer cancel()

	report, err := recalc.New(s.calc, s.store).Run(ctx)
	if err != nil {
		log.Printf("api: recalculation failed: %v", err)
		return internal(err)
	}
	return c.JSON(report)
}

func (s *Server) exportWorkbook(c *fiber.Ctx) error {
	out, err := workbook.Marshal(s.store)
	if err != nil {
		return internal(err)
	}
	c.Set(fiber.HeaderContentType, "application/yaml")
	return c.Send(out)
}

// --- Helpers ---

// apiError is rendered as {"error":{"code","message","status"}}.
type apiError struct {
	Code    int
	Status  string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func invalidArgument(message string) error {
	return &apiError{Code: fiber.StatusBadRequest, Status: "INVALID_ARGUMENT", Message: message}
}

func internal(err error) error {
	return &apiError{Code: fiber.StatusInternalServerError, Status: "INTERNAL", Message: err.Error()}
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrSheetNotFound):
		return &apiError{Code: fiber.StatusNotFound, Status: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, store.ErrSheetExists):
		return &apiError{Code: fiber.StatusConflict, Status: "ALREADY_EXISTS", Message: err.Error()}
	case errors.Is(err, store.ErrInvalidName):
		return invalidArgument(err.Error())
	}
	return internal(err)
}

func errorHandler(c *fiber.Ctx, err error) error {
	var ae *apiError
	if !errors.As(err, &ae) {
		ae = &apiError{Code: fiber.StatusInternalServerError, Status: "INTERNAL", Message: err.Error()}
		var fe *fiber.Error
		if errors.As(err, &fe) {
			ae.Code = fe.Code
			ae.Status = statusName(fe.Code)
		}
	}
	return c.Status(ae.Code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    ae.Code,
			"message": ae.Message,
			"status":  ae.Status,
		},
	})
}

func statusName(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "UNIMPLEMENTED"
	}
	return "INTERNAL"
}

func referencesToJSON(refs []sheet.Reference) []fiber.Map {
	items := make([]fiber.Map, len(refs))
	for i, ref := range refs {
		item := fiber.Map{
			"reference": ref.String(),
			"sheet":     ref.SheetName(),
		}
		switch ref := ref.(type) {
		case sheet.CellPosition:
			item["type"] = "cell"
			item["row"] = ref.Row
			item["col"] = ref.Col
		case sheet.CellRange:
			item["type"] = "range"
			item["from"] = ref.From
			item["to"] = ref.To
		}
		items[i] = item
	}
	return items
}
