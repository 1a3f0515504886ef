package formula

import (
	"testing"
	"time"

	"github.com/onlyadaydreamer/grid/pkg/functions"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// testCells implements sheet.Accessor and sheet.NameResolver for testing.
type testCells struct {
	cells  map[sheet.CellPosition]sheet.CellSnapshot
	bounds map[string]sheet.Bounds
	names  map[string]sheet.Reference
}

func newTestCells() *testCells {
	return &testCells{
		cells:  make(map[sheet.CellPosition]sheet.CellSnapshot),
		bounds: map[string]sheet.Bounds{"Sheet1": {RowCount: 10, ColumnCount: 5}},
		names:  make(map[string]sheet.Reference),
	}
}

func (c *testCells) set(addr string, snap sheet.CellSnapshot) {
	pos, err := sheet.ParsePosition(addr, "Sheet1")
	if err != nil {
		panic(err)
	}
	c.cells[pos] = snap
}

func (c *testCells) Get(pos sheet.CellPosition) (sheet.CellSnapshot, bool) {
	snap, ok := c.cells[pos]
	return snap, ok
}

func (c *testCells) SheetBounds(name string) (sheet.Bounds, bool) {
	b, ok := c.bounds[name]
	return b, ok
}

func (c *testCells) ResolveName(name string) (sheet.Reference, bool) {
	ref, ok := c.names[name]
	return ref, ok
}

func num(text string) sheet.CellSnapshot {
	return sheet.CellSnapshot{Text: text, DataType: sheet.DataNumber}
}

func fixtureCells() *testCells {
	c := newTestCells()
	c.set("A1", num("50"))
	c.set("A2", sheet.CellSnapshot{Text: "hello", DataType: sheet.DataString})
	c.set("B1", num("1"))
	c.set("C1", num("2"))
	c.set("D1", num("3"))
	c.set("E1", num("4"))
	c.set("F1", num("100")) // past the declared column count
	c.set("B2", sheet.CellSnapshot{Text: "=B1*10", DataType: sheet.DataFormula, Result: 10.0, ResultType: "number"})
	c.names["scores"] = sheet.CellRange{Sheet: "Sheet1", From: sheet.Coord{Row: 1, Col: 2}, To: sheet.Coord{Row: 1, Col: 5}}
	return c
}

func evalText(t *testing.T, text string, cells sheet.Accessor) types.Value {
	t.Helper()
	node, err := ParseFormula(text, anchor)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	env := &Env{
		Anchor:    anchor,
		Cells:     cells,
		Functions: functions.NewRegistry(),
		Clock:     functions.FixedClock(time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)),
	}
	return Evaluate(node, env)
}

func TestEvaluate(t *testing.T) {
	cells := fixtureCells()

	tests := []struct {
		input string
		want  types.Value
	}{
		{"=1+2*3", types.NewNumber(7)},
		{"=(1+2)*3", types.NewNumber(9)},
		{"=-2^2", types.NewNumber(-4)},
		{"=2^3^2", types.NewNumber(512)},
		{"=2^-1", types.NewNumber(0.5)},
		{"=10%", types.NewNumber(0.1)},
		{"=A1%", types.NewNumber(0.5)},
		{"=7-2-1", types.NewNumber(4)},
		{"=8/2/2", types.NewNumber(2)},
		{`="a"&1&TRUE`, types.NewString("a1TRUE")},
		{`="1"+1`, types.NewNumber(2)},
		{"=1<2", types.NewBool(true)},
		{`="abc"="ABC"`, types.NewBool(true)},
		{`=1<"a"`, types.NewBool(true)},
		{"=TRUE>1", types.NewBool(true)},
		{"=A9=0", types.NewBool(true)},
		{`=A9=""`, types.NewBool(true)},
		{"=A1+A9", types.NewNumber(50)},
		{`=A9&"x"`, types.NewString("x")},
		{"=B2+1", types.NewNumber(11)},
		{"=SUM(B1:Z1)", types.NewNumber(10)},
		{"=SUM(Z1:B1)", types.NewNumber(10)},
		{"=COLUMNS(B1:Z1)", types.NewNumber(4)},
		{"=SUM(scores)", types.NewNumber(10)},
		{"=sum(1,2)", types.NewNumber(3)},
		{"=ROW()", types.NewNumber(3)},
		{"=COLUMN(D7)", types.NewNumber(4)},
		{`=IFERROR(1/0,"x")`, types.NewString("x")},
		{"=IF(A1>10,\"big\",\"small\")", types.NewString("big")},
		{"=TODAY()", types.NewNumber(45366)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := evalText(t, tt.input, cells)
			if !got.Equal(tt.want) {
				t.Errorf("got %v (%s), want %v", got, got.Type(), tt.want)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	cells := fixtureCells()

	tests := []struct {
		input string
		code  types.ErrorCode
	}{
		{"=1/0", types.CodeDivByZero},
		{"=A9/0", types.CodeDivByZero},
		{"=0^-1", types.CodeDivByZero},
		{"=NOSUCH(1)", types.CodeName},
		{"=nosuchname+1", types.CodeName},
		{"=Other!A1", types.CodeRef},
		{"=SUM(Other!A1:B2)", types.CodeRef},
		{"=A2+1", types.CodeValue},
		{"={1,2}+{1,2,3}", types.CodeValue},
		{"=(1/0)=1", types.CodeDivByZero},
		{"=1<(1/0)", types.CodeDivByZero},
		{"=IF(1/0>1,1,2)", types.CodeDivByZero},
		{"=SUM(1,#N/A)", types.CodeNotAvailable},
		{"=SQRT(-1)", types.CodeNum},
		{"=ABS()", types.CodeValue},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := evalText(t, tt.input, cells)
			if !got.IsError() {
				t.Fatalf("got %v (%s), want %s", got, got.Type(), tt.code)
			}
			if got.AsError().Code != tt.code {
				t.Errorf("got %s (%s), want %s", got.AsError().Code, got.AsError().Message, tt.code)
			}
		})
	}
}

func TestEvaluateArrays(t *testing.T) {
	cells := fixtureCells()

	tests := []struct {
		input string
		want  [][]types.Value
	}{
		{"={1,2;3,4}*2", [][]types.Value{
			{types.NewNumber(2), types.NewNumber(4)},
			{types.NewNumber(6), types.NewNumber(8)},
		}},
		{"={1,2}+{10,20}", [][]types.Value{{types.NewNumber(11), types.NewNumber(22)}}},
		{"=-{1,2}", [][]types.Value{{types.NewNumber(-1), types.NewNumber(-2)}}},
		{"=B1:C1", [][]types.Value{{types.NewNumber(1), types.NewNumber(2)}}},
		{"=B1:C1>1", [][]types.Value{{types.NewBool(false), types.NewBool(true)}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := evalText(t, tt.input, cells)
			want := types.NewArray(tt.want)
			if !got.Equal(want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}
}

func TestEvaluateRangeOnEmptySheet(t *testing.T) {
	cells := newTestCells()
	cells.bounds["Blank"] = sheet.Bounds{}
	got := evalText(t, "=SUM(Blank!A1:C3)", cells)
	if !got.Equal(types.NewNumber(0)) {
		t.Errorf("got %v, want 0", got)
	}
}

func TestEvaluateHostFunction(t *testing.T) {
	node, err := ParseFormula("=DOUBLE(A1)+ANCHOR()", anchor)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	reg := functions.NewRegistry()
	reg.Register("double", func(_ *functions.Context, args []types.Value) (types.Value, error) {
		f, ferr := args[0].ToNumber()
		if ferr != nil {
			return types.Empty, ferr
		}
		return types.NewNumber(f * 2), nil
	})
	reg.Register("ANCHOR", func(ctx *functions.Context, _ []types.Value) (types.Value, error) {
		return types.NewNumber(float64(ctx.Anchor.Row)), nil
	})

	got := Evaluate(node, &Env{Anchor: anchor, Cells: fixtureCells(), Functions: reg})
	if !got.Equal(types.NewNumber(103)) {
		t.Errorf("got %v, want 103", got)
	}
}

func TestEvaluateReadsOverlayFirst(t *testing.T) {
	base := fixtureCells()
	overlay := sheet.NewOverlay()
	changes := make(sheet.Changes)
	changes.Add(sheet.CellPosition{Sheet: "Sheet1", Row: 1, Col: 1}, num("7"))
	overlay.Merge(changes)

	got := evalText(t, "=A1+B1", sheet.Layered{Overlay: overlay, Base: base})
	if !got.Equal(types.NewNumber(8)) {
		t.Errorf("got %v, want 8", got)
	}

	overlay.Clear()
	got = evalText(t, "=A1+B1", sheet.Layered{Overlay: overlay, Base: base})
	if !got.Equal(types.NewNumber(51)) {
		t.Errorf("after clear: got %v, want 51", got)
	}
}
