// Package sheet holds the host-facing cell model: positions, ranges, the
// read-only cell snapshot the engine consumes, the accessor through which it
// reads sheet data, and the pending-value overlay used during recalculation.
package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Reference is either a CellPosition or a CellRange.
type Reference interface {
	// SheetName returns the sheet the reference points into.
	SheetName() string
	// String returns the sheet-qualified A1 form, e.g. "Sheet1!A1".
	String() string
	reference()
}

// CellPosition identifies one cell. Rows and columns are 1-based.
type CellPosition struct {
	Sheet string `json:"sheet"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
}

// Coord is a sheet-less row/column pair used inside a CellRange.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// CellRange is a rectangular block of cells. From and To are not required to
// be ordered; call Normalize before iterating.
type CellRange struct {
	Sheet string `json:"sheet"`
	From  Coord  `json:"from"`
	To    Coord  `json:"to"`
}

// Bounds is the declared size of a sheet.
type Bounds struct {
	RowCount    int `json:"rowCount"`
	ColumnCount int `json:"columnCount"`
}

func (p CellPosition) reference() {}
func (r CellRange) reference()    {}

// SheetName implements Reference.
func (p CellPosition) SheetName() string { return p.Sheet }

// SheetName implements Reference.
func (r CellRange) SheetName() string { return r.Sheet }

// A1 returns the unqualified address, e.g. "B3".
func (p CellPosition) A1() string {
	name, err := excelize.CoordinatesToCellName(p.Col, p.Row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", p.Row, p.Col)
	}
	return name
}

func (p CellPosition) String() string {
	return qualify(p.Sheet) + "!" + p.A1()
}

func (r CellRange) String() string {
	from := CellPosition{Row: r.From.Row, Col: r.From.Col}
	to := CellPosition{Row: r.To.Row, Col: r.To.Col}
	return qualify(r.Sheet) + "!" + from.A1() + ":" + to.A1()
}

// Normalize returns r with From at the top-left and To at the bottom-right.
func (r CellRange) Normalize() CellRange {
	out := r
	out.From.Row, out.To.Row = minMax(r.From.Row, r.To.Row)
	out.From.Col, out.To.Col = minMax(r.From.Col, r.To.Col)
	return out
}

// Clip normalizes r and clamps both corners to b. A range lying entirely
// past the bounds collapses onto the last row or column, matching how a
// spreadsheet resolves an overhanging reference.
func (r CellRange) Clip(b Bounds) CellRange {
	out := r.Normalize()
	out.From.Row = min(out.From.Row, b.RowCount)
	out.To.Row = min(out.To.Row, b.RowCount)
	out.From.Col = min(out.From.Col, b.ColumnCount)
	out.To.Col = min(out.To.Col, b.ColumnCount)
	return out
}

// Contains reports whether p lies inside r (after normalization).
func (r CellRange) Contains(p CellPosition) bool {
	if p.Sheet != r.Sheet {
		return false
	}
	n := r.Normalize()
	return p.Row >= n.From.Row && p.Row <= n.To.Row && p.Col >= n.From.Col && p.Col <= n.To.Col
}

// ParseA1 parses an unqualified cell address such as "B3" or "$B$3".
func ParseA1(addr string) (row, col int, err error) {
	clean := strings.ReplaceAll(addr, "$", "")
	col, row, err = excelize.CellNameToCoordinates(clean)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid cell address %q: %w", addr, err)
	}
	return row, col, nil
}

// ParsePosition parses "Sheet1!A1", "'My Sheet'!A1" or "A1". An unqualified
// address takes defaultSheet.
func ParsePosition(s, defaultSheet string) (CellPosition, error) {
	sheetName, addr := splitQualified(s, defaultSheet)
	row, col, err := ParseA1(addr)
	if err != nil {
		return CellPosition{}, err
	}
	return CellPosition{Sheet: sheetName, Row: row, Col: col}, nil
}

// ParseReference parses a position or a range ("Sheet1!A1:B2").
func ParseReference(s, defaultSheet string) (Reference, error) {
	sheetName, addr := splitQualified(s, defaultSheet)
	from, to, isRange := strings.Cut(addr, ":")
	r1, c1, err := ParseA1(from)
	if err != nil {
		return nil, err
	}
	if !isRange {
		return CellPosition{Sheet: sheetName, Row: r1, Col: c1}, nil
	}
	r2, c2, err := ParseA1(to)
	if err != nil {
		return nil, err
	}
	return CellRange{Sheet: sheetName, From: Coord{Row: r1, Col: c1}, To: Coord{Row: r2, Col: c2}}, nil
}

// ColumnName converts a 1-based column number to letters.
func ColumnName(col int) (string, error) {
	return excelize.ColumnNumberToName(col)
}

// ColumnNumber converts column letters to a 1-based number.
func ColumnNumber(name string) (int, error) {
	return excelize.ColumnNameToNumber(name)
}

func splitQualified(s, defaultSheet string) (string, string) {
	idx := strings.LastIndex(s, "!")
	if idx < 0 {
		return defaultSheet, s
	}
	name := s[:idx]
	if len(name) >= 2 && name[0] == '\'' && name[len(name)-1] == '\'' {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name, s[idx+1:]
}

// qualify quotes a sheet name when it is not a plain identifier.
func qualify(name string) string {
	for _, ch := range name {
		if !(ch == '_' || ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z') {
			return "'" + strings.ReplaceAll(name, "'", "''") + "'"
		}
	}
	return name
}

func minMax(a, b int) (int, int) {
	if a <= b {
		return a, b
	}
	return b, a
}
