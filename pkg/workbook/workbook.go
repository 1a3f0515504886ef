// Package workbook reads and writes YAML workbook files.
//
// A workbook lists sheets in order, each with an optional declared size and
// a mapping of A1 addresses to cell values, plus optional named ranges:
//
//	sheets:
//	  - name: Sheet1
//	    rows: 20
//	    columns: 5
//	    cells:
//	      A1: 10
//	      A2: label
//	      B1: =SUM(A1:A10)
//	      C1: {text: "https://example.com", datatype: hyperlink}
//	names:
//	  totals: Sheet1!A1:A10
package workbook

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/store"
)

// MaxSourceSize is the maximum workbook size in bytes (4 MB).
const MaxSourceSize = 4 * 1024 * 1024

// ParseError is an error encountered while reading a workbook.
type ParseError struct {
	Message  string
	Location string // e.g., "cell 'B2' in sheet 'Sheet1'"
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("workbook error at %s: %s", e.Location, e.Message)
	}
	return fmt.Sprintf("workbook error: %s", e.Message)
}

// Workbook is a parsed workbook file.
type Workbook struct {
	Sheets []Sheet
	Names  []Name
}

// Sheet is one sheet of a workbook file.
type Sheet struct {
	Name    string
	Rows    int
	Columns int
	Cells   []Cell
}

// Cell is one cell of a sheet.
type Cell struct {
	Position sheet.CellPosition
	Snapshot sheet.CellSnapshot
}

// Name is a named range definition.
type Name struct {
	Name      string
	Reference sheet.Reference
}

// Parse parses a YAML workbook.
func Parse(source []byte) (*Workbook, error) {
	if len(source) > MaxSourceSize {
		return nil, &ParseError{Message: fmt.Sprintf("workbook size %d exceeds maximum %d bytes", len(source), MaxSourceSize)}
	}

	var raw yaml.Node
	if err := yaml.Unmarshal(source, &raw); err != nil {
		return nil, &ParseError{Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if raw.Kind != yaml.DocumentNode || len(raw.Content) == 0 {
		return nil, &ParseError{Message: "empty workbook"}
	}
	root := raw.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "workbook must be a mapping"}
	}

	wb := &Workbook{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		val := root.Content[i+1]

		switch key {
		case "sheets":
			sheets, err := parseSheets(val)
			if err != nil {
				return nil, err
			}
			wb.Sheets = sheets
		case "names":
			names, err := parseNames(val, wb.defaultSheet())
			if err != nil {
				return nil, err
			}
			wb.Names = names
		default:
			return nil, &ParseError{Message: fmt.Sprintf("unknown key '%s'", key)}
		}
	}

	if len(wb.Sheets) == 0 {
		return nil, &ParseError{Message: "workbook must have at least one sheet"}
	}
	return wb, nil
}

// defaultSheet qualifies unqualified named-range addresses.
func (wb *Workbook) defaultSheet() string {
	if len(wb.Sheets) > 0 {
		return wb.Sheets[0].Name
	}
	return "Sheet1"
}

func parseSheets(node *yaml.Node) ([]Sheet, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, &ParseError{Message: "sheets must be a list"}
	}

	seen := make(map[string]bool)
	sheets := make([]Sheet, 0, len(node.Content))
	for i, item := range node.Content {
		sh, err := parseSheet(item, i)
		if err != nil {
			return nil, err
		}
		if seen[sh.Name] {
			return nil, &ParseError{Message: "duplicate sheet name", Location: fmt.Sprintf("sheet '%s'", sh.Name)}
		}
		seen[sh.Name] = true
		sheets = append(sheets, sh)
	}
	return sheets, nil
}

func parseSheet(node *yaml.Node, index int) (Sheet, error) {
	loc := fmt.Sprintf("sheet #%d", index+1)
	if node.Kind != yaml.MappingNode {
		return Sheet{}, &ParseError{Message: "sheet must be a mapping", Location: loc}
	}

	sh := Sheet{}
	var cells *yaml.Node
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]

		switch key {
		case "name":
			sh.Name = val.Value
			loc = fmt.Sprintf("sheet '%s'", sh.Name)
		case "rows":
			n, err := sizeFromNode(val, "rows", loc)
			if err != nil {
				return Sheet{}, err
			}
			sh.Rows = n
		case "columns":
			n, err := sizeFromNode(val, "columns", loc)
			if err != nil {
				return Sheet{}, err
			}
			sh.Columns = n
		case "cells":
			cells = val
		default:
			return Sheet{}, &ParseError{Message: fmt.Sprintf("unknown key '%s'", key), Location: loc}
		}
	}
	if strings.TrimSpace(sh.Name) == "" {
		return Sheet{}, &ParseError{Message: "sheet must have a 'name'", Location: loc}
	}

	if cells != nil {
		parsed, err := parseCells(cells, sh.Name)
		if err != nil {
			return Sheet{}, err
		}
		sh.Cells = parsed
	}
	return sh, nil
}

func sizeFromNode(node *yaml.Node, field, loc string) (int, error) {
	var n int
	if node.Kind != yaml.ScalarNode || node.Decode(&n) != nil || n < 0 {
		return 0, &ParseError{Message: fmt.Sprintf("'%s' must be a non-negative integer", field), Location: loc}
	}
	return n, nil
}

func parseCells(node *yaml.Node, sheetName string) ([]Cell, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "cells must be a mapping of addresses", Location: fmt.Sprintf("sheet '%s'", sheetName)}
	}

	cells := make([]Cell, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		addr := node.Content[i].Value
		loc := fmt.Sprintf("cell '%s' in sheet '%s'", addr, sheetName)

		row, col, err := sheet.ParseA1(addr)
		if err != nil {
			return nil, &ParseError{Message: "invalid cell address", Location: loc}
		}
		snap, ok, err := snapshotFromNode(node.Content[i+1], loc)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cells = append(cells, Cell{
			Position: sheet.CellPosition{Sheet: sheetName, Row: row, Col: col},
			Snapshot: snap,
		})
	}
	return cells, nil
}

// snapshotFromNode converts a cell value. Scalars are typed by their YAML
// tag, with strings starting with '=' read as formulas. A mapping spells
// the snapshot out. ok is false for null cells.
func snapshotFromNode(node *yaml.Node, loc string) (sheet.CellSnapshot, bool, error) {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}

	switch node.Kind {
	case yaml.ScalarNode:
		switch node.ShortTag() {
		case "!!null":
			return sheet.CellSnapshot{}, false, nil
		case "!!int", "!!float":
			return sheet.CellSnapshot{Text: node.Value, DataType: sheet.DataNumber}, true, nil
		case "!!bool":
			var b bool
			if err := node.Decode(&b); err != nil {
				return sheet.CellSnapshot{}, false, &ParseError{Message: err.Error(), Location: loc}
			}
			return sheet.CellSnapshot{Text: strings.ToUpper(fmt.Sprint(b)), DataType: sheet.DataBoolean}, true, nil
		}
		if strings.HasPrefix(node.Value, "=") {
			return sheet.CellSnapshot{Text: node.Value, DataType: sheet.DataFormula}, true, nil
		}
		return sheet.CellSnapshot{Text: node.Value, DataType: sheet.DataString}, true, nil

	case yaml.MappingNode:
		var snap sheet.CellSnapshot
		if err := node.Decode(&snap); err != nil {
			return sheet.CellSnapshot{}, false, &ParseError{Message: fmt.Sprintf("invalid cell: %v", err), Location: loc}
		}
		if snap.DataType == "" {
			snap.DataType = sheet.DataString
			if strings.HasPrefix(snap.Text, "=") {
				snap.DataType = sheet.DataFormula
			}
		}
		return snap, true, nil
	}
	return sheet.CellSnapshot{}, false, &ParseError{Message: "cell must be a scalar or a mapping", Location: loc}
}

func parseNames(node *yaml.Node, defaultSheet string) ([]Name, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ParseError{Message: "names must be a mapping"}
	}

	names := make([]Name, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		ref, err := sheet.ParseReference(node.Content[i+1].Value, defaultSheet)
		if err != nil {
			return nil, &ParseError{Message: err.Error(), Location: fmt.Sprintf("name '%s'", name)}
		}
		names = append(names, Name{Name: name, Reference: ref})
	}
	return names, nil
}

// Load creates the workbook's sheets, cells and names in s.
func (wb *Workbook) Load(s *store.Store) error {
	for _, sh := range wb.Sheets {
		if _, err := s.CreateSheet(sh.Name, sh.Rows, sh.Columns); err != nil {
			return fmt.Errorf("loading workbook: %w", err)
		}
		for _, c := range sh.Cells {
			if err := s.SetCell(c.Position, c.Snapshot); err != nil {
				return fmt.Errorf("loading workbook: %w", err)
			}
		}
	}
	for _, n := range wb.Names {
		if err := s.DefineName(n.Name, n.Reference); err != nil {
			return fmt.Errorf("loading workbook: %w", err)
		}
	}
	return nil
}

// LoadFile reads a workbook file into a new store.
func LoadFile(path string) (*store.Store, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workbook: %w", err)
	}
	wb, err := Parse(source)
	if err != nil {
		return nil, err
	}
	s := store.New()
	if err := wb.Load(s); err != nil {
		return nil, err
	}
	return s, nil
}
