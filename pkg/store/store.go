// Package store provides the in-memory workbook that formulas read from.
package store

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/onlyadaydreamer/grid/pkg/sheet"
)

var (
	// ErrSheetNotFound is returned for operations on an unknown sheet.
	ErrSheetNotFound = errors.New("sheet not found")
	// ErrSheetExists is returned when creating a sheet whose name is taken.
	ErrSheetExists = errors.New("sheet already exists")
	// ErrInvalidName is returned for empty sheet or range names.
	ErrInvalidName = errors.New("invalid name")
)

// Sheet describes a stored sheet.
type Sheet struct {
	Name        string    `json:"name"`
	RowCount    int       `json:"rowCount"`
	ColumnCount int       `json:"columnCount"`
	CreateTime  time.Time `json:"createTime"`
	UpdateTime  time.Time `json:"updateTime"`
}

// Cell is a stored cell with its position.
type Cell struct {
	Position sheet.CellPosition `json:"position"`
	sheet.CellSnapshot
}

type sheetData struct {
	meta  Sheet
	cells map[sheet.Coord]sheet.CellSnapshot
}

// Store is a thread-safe workbook. It implements sheet.Accessor and
// sheet.NameResolver.
type Store struct {
	mu     sync.RWMutex
	sheets *orderedmap.OrderedMap[string, *sheetData]
	names  map[string]sheet.Reference

	// Incremented on every mutation.
	revision int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		sheets: orderedmap.NewOrderedMap[string, *sheetData](),
		names:  make(map[string]sheet.Reference),
	}
}

// CreateSheet adds a sheet with the given declared size.
func (s *Store) CreateSheet(name string, rows, cols int) (*Sheet, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("sheet name: %w", ErrInvalidName)
	}
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("sheet '%s': size %dx%d is negative", name, rows, cols)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sheets.Get(name); exists {
		return nil, fmt.Errorf("sheet '%s': %w", name, ErrSheetExists)
	}
	now := time.Now()
	data := &sheetData{
		meta: Sheet{
			Name:        name,
			RowCount:    rows,
			ColumnCount: cols,
			CreateTime:  now,
			UpdateTime:  now,
		},
		cells: make(map[sheet.Coord]sheet.CellSnapshot),
	}
	s.sheets.Set(name, data)
	s.revision++
	meta := data.meta
	return &meta, nil
}

// GetSheet returns a copy of a sheet's metadata.
func (s *Store) GetSheet(name string) (*Sheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sheets.Get(name)
	if !ok {
		return nil, fmt.Errorf("sheet '%s': %w", name, ErrSheetNotFound)
	}
	meta := data.meta
	return &meta, nil
}

// ListSheets returns every sheet in creation order.
func (s *Store) ListSheets() []*Sheet {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Sheet, 0, s.sheets.Len())
	for _, data := range s.sheets.AllFromFront() {
		meta := data.meta
		result = append(result, &meta)
	}
	return result
}

// ResizeSheet changes a sheet's declared size. Cells outside the new size
// are kept but no longer read through ranges.
func (s *Store) ResizeSheet(name string, rows, cols int) (*Sheet, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("sheet '%s': size %dx%d is negative", name, rows, cols)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sheets.Get(name)
	if !ok {
		return nil, fmt.Errorf("sheet '%s': %w", name, ErrSheetNotFound)
	}
	data.meta.RowCount = rows
	data.meta.ColumnCount = cols
	data.meta.UpdateTime = time.Now()
	s.revision++
	meta := data.meta
	return &meta, nil
}

// DeleteSheet removes a sheet and its cells.
func (s *Store) DeleteSheet(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sheets.Delete(name) {
		return fmt.Errorf("sheet '%s': %w", name, ErrSheetNotFound)
	}
	s.revision++
	return nil
}

// SetCell stores snap at pos, growing the sheet's declared size to cover
// it. An empty snapshot clears the cell.
func (s *Store) SetCell(pos sheet.CellPosition, snap sheet.CellSnapshot) error {
	if pos.Row < 1 || pos.Col < 1 {
		return fmt.Errorf("cell %s: row and column must be positive", pos)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.sheets.Get(pos.Sheet)
	if !ok {
		return fmt.Errorf("sheet '%s': %w", pos.Sheet, ErrSheetNotFound)
	}
	key := sheet.Coord{Row: pos.Row, Col: pos.Col}
	if snap == (sheet.CellSnapshot{}) {
		delete(data.cells, key)
	} else {
		data.cells[key] = snap
		data.meta.RowCount = max(data.meta.RowCount, pos.Row)
		data.meta.ColumnCount = max(data.meta.ColumnCount, pos.Col)
	}
	data.meta.UpdateTime = time.Now()
	s.revision++
	return nil
}

// ClearCell removes the cell at pos.
func (s *Store) ClearCell(pos sheet.CellPosition) error {
	return s.SetCell(pos, sheet.CellSnapshot{})
}

// Get implements sheet.Accessor.
func (s *Store) Get(pos sheet.CellPosition) (sheet.CellSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sheets.Get(pos.Sheet)
	if !ok {
		return sheet.CellSnapshot{}, false
	}
	snap, ok := data.cells[sheet.Coord{Row: pos.Row, Col: pos.Col}]
	return snap, ok
}

// SheetBounds implements sheet.Accessor.
func (s *Store) SheetBounds(name string) (sheet.Bounds, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sheets.Get(name)
	if !ok {
		return sheet.Bounds{}, false
	}
	return sheet.Bounds{RowCount: data.meta.RowCount, ColumnCount: data.meta.ColumnCount}, true
}

// Cells returns the cells of a sheet ordered by row, then column.
func (s *Store) Cells(name string) ([]Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sheets.Get(name)
	if !ok {
		return nil, fmt.Errorf("sheet '%s': %w", name, ErrSheetNotFound)
	}
	return sortedCells(name, data.cells, nil), nil
}

// FormulaCells returns every formula cell, sheet by sheet in creation
// order and row-major within a sheet.
func (s *Store) FormulaCells() []Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Cell
	for name, data := range s.sheets.AllFromFront() {
		result = append(result, sortedCells(name, data.cells, func(c sheet.CellSnapshot) bool {
			return c.DataType == sheet.DataFormula
		})...)
	}
	return result
}

func sortedCells(name string, cells map[sheet.Coord]sheet.CellSnapshot, keep func(sheet.CellSnapshot) bool) []Cell {
	result := make([]Cell, 0, len(cells))
	for coord, snap := range cells {
		if keep != nil && !keep(snap) {
			continue
		}
		result = append(result, Cell{
			Position:     sheet.CellPosition{Sheet: name, Row: coord.Row, Col: coord.Col},
			CellSnapshot: snap,
		})
	}
	slices.SortFunc(result, func(a, b Cell) int {
		if c := cmp.Compare(a.Position.Row, b.Position.Row); c != 0 {
			return c
		}
		return cmp.Compare(a.Position.Col, b.Position.Col)
	})
	return result
}

// CommitResults records computed results on existing cells. Only Result
// and ResultType are taken from changes; entries for missing cells or
// sheets are skipped. It returns the number of cells updated.
func (s *Store) CommitResults(changes sheet.Changes) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for name, rows := range changes {
		data, ok := s.sheets.Get(name)
		if !ok {
			continue
		}
		for row, cols := range rows {
			for col, computed := range cols {
				key := sheet.Coord{Row: row, Col: col}
				snap, ok := data.cells[key]
				if !ok {
					continue
				}
				snap.Result = computed.Result
				snap.ResultType = computed.ResultType
				data.cells[key] = snap
				n++
			}
		}
	}
	if n > 0 {
		s.revision++
	}
	return n
}

// DefineName binds a case-insensitive name to a reference.
func (s *Store) DefineName(name string, ref sheet.Reference) error {
	if strings.TrimSpace(name) == "" || ref == nil {
		return fmt.Errorf("named range: %w", ErrInvalidName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sheets.Get(ref.SheetName()); !ok {
		return fmt.Errorf("named range '%s' refers to sheet '%s': %w", name, ref.SheetName(), ErrSheetNotFound)
	}
	s.names[strings.ToLower(name)] = ref
	s.revision++
	return nil
}

// ResolveName implements sheet.NameResolver.
func (s *Store) ResolveName(name string) (sheet.Reference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.names[strings.ToLower(name)]
	return ref, ok
}

// Names returns a copy of every named range, keyed by lower-case name.
func (s *Store) Names() map[string]sheet.Reference {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]sheet.Reference, len(s.names))
	for k, v := range s.names {
		out[k] = v
	}
	return out
}

// Revision returns a counter that changes on every mutation.
func (s *Store) Revision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}
