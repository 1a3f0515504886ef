package functions

import (
	"fmt"
	"strings"

	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// registerLookup registers lookup and reference functions.
func (r *Registry) registerLookup() {
	r.Register("VLOOKUP", lookupV)
	r.Register("HLOOKUP", lookupH)
	r.Register("INDEX", lookupIndex)
	r.Register("MATCH", lookupMatch)
	r.RegisterRaw("CHOOSE", lookupChoose)
	r.Register("ROWS", shape("ROWS", func(rows, _ int) int { return rows }))
	r.Register("COLUMNS", shape("COLUMNS", func(_, cols int) int { return cols }))
	r.RegisterRaw("ROW", position("ROW", func(c sheet.Coord) int { return c.Row }))
	r.RegisterRaw("COLUMN", position("COLUMN", func(c sheet.Coord) int { return c.Col }))
	r.Register("TRANSPOSE", lookupTranspose)
}

func lookupV(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("VLOOKUP", args, 3, 4); err != nil {
		return types.Empty, err
	}
	return tableLookup("VLOOKUP", args, grid(args[1]))
}

func lookupH(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("HLOOKUP", args, 3, 4); err != nil {
		return types.Empty, err
	}
	return tableLookup("HLOOKUP", args, transpose(grid(args[1])))
}

// tableLookup searches the first column of table for the key and returns
// the cell in the requested column of the matching row.
func tableLookup(name string, args []types.Value, table [][]types.Value) (types.Value, error) {
	key := first(args[0])
	idx, err := numberArg(name, args, 2)
	if err != nil {
		return types.Empty, err
	}
	sorted, err := optBool(args, 3, true)
	if err != nil {
		return types.Empty, err
	}
	col := toIndex(idx)
	if col < 1 {
		return types.Empty, types.NewValueError(fmt.Sprintf("%s: index must be at least 1", name))
	}
	if len(table) == 0 || col > len(table[0]) {
		return types.Empty, types.NewRefError(fmt.Sprintf("%s: index %v is outside the range", name, idx))
	}

	keys := make([]types.Value, len(table))
	for i, row := range table {
		keys[i] = row[0]
	}
	row := find(keys, key, sortedMode(sorted))
	if row < 0 {
		return types.Empty, types.NewNotAvailableError(fmt.Sprintf("%s: %s not found", name, key))
	}
	return table[row][col-1], nil
}

type matchMode int

const (
	matchExact      matchMode = 0
	matchAscending  matchMode = 1
	matchDescending matchMode = -1
)

func sortedMode(sorted bool) matchMode {
	if sorted {
		return matchAscending
	}
	return matchExact
}

// find returns the index of key in values, or -1. Ascending mode returns
// the last value not greater than key, descending the last value not less
// than key; both assume sorted input and stop at the first overshoot.
// Cells of a different kind than the key are skipped.
func find(values []types.Value, key types.Value, mode matchMode) int {
	var pattern criterion
	if mode == matchExact && key.Type() == types.TypeString && strings.ContainsAny(key.AsString(), "*?") {
		re := wildcardPattern(key.AsString())
		pattern = func(v types.Value) bool {
			s, _ := v.ToText()
			return re.MatchString(s)
		}
	}

	best := -1
	for i, v := range values {
		if v.IsError() || v.IsEmpty() || !types.SameKind(v, key) {
			continue
		}
		if pattern != nil {
			if pattern(v) {
				return i
			}
			continue
		}
		n := types.Compare(v, key)
		switch mode {
		case matchExact:
			if n == 0 {
				return i
			}
		case matchAscending:
			if n > 0 {
				return best
			}
			best = i
		case matchDescending:
			if n < 0 {
				return best
			}
			best = i
		}
	}
	return best
}

// lookupIndex returns the cell at (row, col) of a range. A zero row or
// column selects the whole column or row. A single-row range accepts the
// column as the only index.
func lookupIndex(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("INDEX", args, 2, 3); err != nil {
		return types.Empty, err
	}
	rows := grid(args[0])
	row, err := optNumber("INDEX", args, 1, 0)
	if err != nil {
		return types.Empty, err
	}
	col, err := optNumber("INDEX", args, 2, 0)
	if err != nil {
		return types.Empty, err
	}
	if len(args) == 2 && len(rows) == 1 {
		row, col = 1, row
	}
	r, c := toIndex(row), toIndex(col)
	if r < 0 || c < 0 || len(rows) == 0 || r > len(rows) || c > len(rows[0]) {
		return types.Empty, types.NewRefError("INDEX: position is outside the range")
	}

	switch {
	case r > 0 && c > 0:
		return rows[r-1][c-1], nil
	case r > 0:
		return types.NewArray([][]types.Value{rows[r-1]}), nil
	case c > 0:
		out := make([][]types.Value, len(rows))
		for i := range rows {
			out[i] = []types.Value{rows[i][c-1]}
		}
		return types.NewArray(out), nil
	}
	return args[0], nil
}

func lookupMatch(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("MATCH", args, 2, 3); err != nil {
		return types.Empty, err
	}
	key := first(args[0])
	mode, err := optNumber("MATCH", args, 2, 1)
	if err != nil {
		return types.Empty, err
	}

	rows, cols := dims(args[1])
	var values []types.Value
	switch {
	case rows == 1:
		values = grid(args[1])[0]
	case cols == 1:
		values = cells(args[1])
	default:
		return types.Empty, types.NewNotAvailableError("MATCH: range must be a single row or column")
	}

	m := matchExact
	switch {
	case mode > 0:
		m = matchAscending
	case mode < 0:
		m = matchDescending
	}
	i := find(values, key, m)
	if i < 0 {
		return types.Empty, types.NewNotAvailableError(fmt.Sprintf("MATCH: %s not found", key))
	}
	return types.NewNumber(float64(i + 1)), nil
}

func lookupChoose(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("CHOOSE", args, 2, unbounded); err != nil {
		return types.Empty, err
	}
	if args[0].IsError() {
		return args[0], nil
	}
	idx, err := numberArg("CHOOSE", args, 0)
	if err != nil {
		return types.Empty, err
	}
	i := toIndex(idx)
	if i < 1 || i >= len(args) {
		return types.Empty, types.NewValueError(fmt.Sprintf("CHOOSE: index %v is out of range", idx))
	}
	return args[i], nil
}

func shape(name string, pick func(rows, cols int) int) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, 1); err != nil {
			return types.Empty, err
		}
		rows, cols := dims(args[0])
		return types.NewNumber(float64(pick(rows, cols))), nil
	}
}

// position builds ROW and COLUMN. Without arguments they describe the
// anchor cell; otherwise the argument must be written as a reference.
func position(name string, pick func(sheet.Coord) int) Func {
	return func(ctx *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 0, 1); err != nil {
			return types.Empty, err
		}
		if len(args) == 0 {
			if ctx == nil {
				return types.Empty, types.NewValueError(name + ": no anchor cell")
			}
			return types.NewNumber(float64(pick(sheet.Coord{Row: ctx.Anchor.Row, Col: ctx.Anchor.Col}))), nil
		}
		ref, ok := ctx.Ref(0)
		if !ok {
			return types.Empty, types.NewValueError(name + ": argument must be a reference")
		}
		switch r := ref.(type) {
		case sheet.CellPosition:
			return types.NewNumber(float64(pick(sheet.Coord{Row: r.Row, Col: r.Col}))), nil
		case sheet.CellRange:
			return types.NewNumber(float64(pick(r.Normalize().From))), nil
		}
		return types.Empty, types.NewValueError(name + ": argument must be a reference")
	}
}

func lookupTranspose(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("TRANSPOSE", args, 1, 1); err != nil {
		return types.Empty, err
	}
	return types.NewArray(transpose(grid(args[0]))), nil
}

func transpose(rows [][]types.Value) [][]types.Value {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]types.Value, len(rows[0]))
	for j := range out {
		out[j] = make([]types.Value, len(rows))
		for i := range rows {
			out[j][i] = rows[i][j]
		}
	}
	return out
}
