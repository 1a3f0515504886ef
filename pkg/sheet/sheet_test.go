package sheet

import (
	"testing"

	"github.com/onlyadaydreamer/grid/pkg/types"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    CellPosition
		wantErr bool
	}{
		{"A1", CellPosition{Sheet: "Sheet1", Row: 1, Col: 1}, false},
		{"$C$7", CellPosition{Sheet: "Sheet1", Row: 7, Col: 3}, false},
		{"Data!AA10", CellPosition{Sheet: "Data", Row: 10, Col: 27}, false},
		{"'My Sheet'!B2", CellPosition{Sheet: "My Sheet", Row: 2, Col: 2}, false},
		{"'Bob''s'!B2", CellPosition{Sheet: "Bob's", Row: 2, Col: 2}, false},
		{"B", CellPosition{}, true},
		{"1A", CellPosition{}, true},
		{"", CellPosition{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePosition(tt.in, "Sheet1")
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseReference(t *testing.T) {
	ref, err := ParseReference("Sheet2!B4:A1", "Sheet1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	r, ok := ref.(CellRange)
	if !ok {
		t.Fatalf("got %T, want CellRange", ref)
	}
	if r.Sheet != "Sheet2" || r.From != (Coord{Row: 4, Col: 2}) || r.To != (Coord{Row: 1, Col: 1}) {
		t.Errorf("got %+v", r)
	}

	ref, err = ParseReference("C3", "Sheet1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := ref.(CellPosition); !ok {
		t.Errorf("got %T, want CellPosition", ref)
	}

	if _, err := ParseReference("A1:??", "Sheet1"); err == nil {
		t.Error("expected error for bad range end")
	}
}

func TestReferenceString(t *testing.T) {
	tests := []struct {
		ref  Reference
		want string
	}{
		{CellPosition{Sheet: "Sheet1", Row: 3, Col: 2}, "Sheet1!B3"},
		{CellPosition{Sheet: "My Sheet", Row: 1, Col: 1}, "'My Sheet'!A1"},
		{CellPosition{Sheet: "it's", Row: 1, Col: 1}, "'it''s'!A1"},
		{CellPosition{Sheet: "2024", Row: 4, Col: 2}, "2024!B4"},
		{CellRange{Sheet: "Data", From: Coord{Row: 1, Col: 1}, To: Coord{Row: 10, Col: 28}}, "Data!A1:AB10"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.ref.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			back, err := ParseReference(tt.ref.String(), "")
			if err != nil {
				t.Fatalf("reparse: %v", err)
			}
			if back != tt.ref {
				t.Errorf("reparse: got %+v, want %+v", back, tt.ref)
			}
		})
	}
}

func TestCellRange(t *testing.T) {
	r := CellRange{Sheet: "S", From: Coord{Row: 5, Col: 4}, To: Coord{Row: 2, Col: 1}}

	n := r.Normalize()
	if n.From != (Coord{Row: 2, Col: 1}) || n.To != (Coord{Row: 5, Col: 4}) {
		t.Errorf("Normalize: got %+v", n)
	}

	c := r.Clip(Bounds{RowCount: 3, ColumnCount: 10})
	if c.From != (Coord{Row: 2, Col: 1}) || c.To != (Coord{Row: 3, Col: 4}) {
		t.Errorf("Clip: got %+v", c)
	}

	contains := []struct {
		pos  CellPosition
		want bool
	}{
		{CellPosition{Sheet: "S", Row: 3, Col: 2}, true},
		{CellPosition{Sheet: "S", Row: 5, Col: 4}, true},
		{CellPosition{Sheet: "S", Row: 6, Col: 4}, false},
		{CellPosition{Sheet: "T", Row: 3, Col: 2}, false},
	}
	for _, tt := range contains {
		if got := r.Contains(tt.pos); got != tt.want {
			t.Errorf("Contains(%v) = %v, want %v", tt.pos, got, tt.want)
		}
	}
}

func TestColumnNames(t *testing.T) {
	for col, name := range map[int]string{1: "A", 26: "Z", 27: "AA", 703: "AAA"} {
		got, err := ColumnName(col)
		if err != nil || got != name {
			t.Errorf("ColumnName(%d) = %q, %v, want %q", col, got, err, name)
		}
		back, err := ColumnNumber(name)
		if err != nil || back != col {
			t.Errorf("ColumnNumber(%q) = %d, %v, want %d", name, back, err, col)
		}
	}
}

func TestCellSnapshotValue(t *testing.T) {
	tests := []struct {
		name string
		snap CellSnapshot
		want types.Value
	}{
		{"number", CellSnapshot{Text: "12.5", DataType: DataNumber}, types.NewNumber(12.5)},
		{"blank number", CellSnapshot{DataType: DataNumber}, types.NewNumber(0)},
		{"bad number", CellSnapshot{Text: "x", DataType: DataNumber}, types.NewValueError("").ToValue()},
		{"boolean", CellSnapshot{Text: "true", DataType: DataBoolean}, types.NewBool(true)},
		{"string", CellSnapshot{Text: "hello", DataType: DataString}, types.NewString("hello")},
		{"untyped text", CellSnapshot{Text: "hi"}, types.NewString("hi")},
		{"empty", CellSnapshot{}, types.Empty},
		{"formula without result", CellSnapshot{Text: "=A1", DataType: DataFormula}, types.Empty},
		{"formula result", CellSnapshot{Text: "=A1", DataType: DataFormula, Result: 3.0, ResultType: "number"}, types.NewNumber(3)},
		{"numeric text result", CellSnapshot{Text: "=A1", DataType: DataFormula, Result: "4", ResultType: "number"}, types.NewNumber(4)},
		{"error result", CellSnapshot{Text: "=1/0", DataType: DataFormula, Result: "#DIV/0!", ResultType: "error"}, types.NewDivByZeroError().ToValue()},
		{"array result", CellSnapshot{DataType: DataFormula, Result: []any{[]any{1.0, 2.0}}, ResultType: "array"}, types.NewArray([][]types.Value{{types.NewNumber(1), types.NewNumber(2)}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.Value(); !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInferDataType(t *testing.T) {
	tests := []struct {
		text string
		want DataType
	}{
		{"", DataEmpty},
		{"   ", DataEmpty},
		{"=SUM(A1:A3)", DataFormula},
		{"true", DataBoolean},
		{"FALSE", DataBoolean},
		{"-3.5e2", DataNumber},
		{"12 apples", DataString},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := InferDataType(tt.text); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type mapAccessor map[CellPosition]CellSnapshot

func (m mapAccessor) Get(pos CellPosition) (CellSnapshot, bool) {
	c, ok := m[pos]
	return c, ok
}

func (m mapAccessor) SheetBounds(name string) (Bounds, bool) {
	return Bounds{RowCount: 100, ColumnCount: 26}, name == "Sheet1"
}

func TestOverlay(t *testing.T) {
	a1 := CellPosition{Sheet: "Sheet1", Row: 1, Col: 1}
	a2 := CellPosition{Sheet: "Sheet1", Row: 2, Col: 1}

	o := NewOverlay()
	first := make(Changes)
	first.Add(a1, CellSnapshot{Text: "=1", DataType: DataFormula, Result: 1.0, ResultType: "number"})
	o.Merge(first)

	second := make(Changes)
	second.Add(a1, CellSnapshot{Text: "=2", DataType: DataFormula})
	second.Add(a2, CellSnapshot{Text: "x", DataType: DataString})
	o.Merge(second)

	if o.Len() != 2 {
		t.Errorf("Len() = %d, want 2", o.Len())
	}
	// A later merge replaces the whole snapshot, including its result.
	got, ok := o.Get(a1)
	if !ok || got.Text != "=2" || got.Result != nil {
		t.Errorf("a1: got %+v, %v", got, ok)
	}

	o.Clear()
	if o.Len() != 0 {
		t.Errorf("Len() after Clear = %d", o.Len())
	}
	if _, ok := o.Get(a2); ok {
		t.Error("a2 should be gone after Clear")
	}
}

func TestLayered(t *testing.T) {
	a1 := CellPosition{Sheet: "Sheet1", Row: 1, Col: 1}
	b1 := CellPosition{Sheet: "Sheet1", Row: 1, Col: 2}
	base := mapAccessor{
		a1: {Text: "1", DataType: DataNumber},
		b1: {Text: "2", DataType: DataNumber},
	}

	o := NewOverlay()
	pending := make(Changes)
	pending.Add(a1, CellSnapshot{Text: "10", DataType: DataNumber})
	o.Merge(pending)

	l := Layered{Overlay: o, Base: base}
	if c, _ := l.Get(a1); c.Text != "10" {
		t.Errorf("overlay should win: got %+v", c)
	}
	if c, _ := l.Get(b1); c.Text != "2" {
		t.Errorf("base should serve b1: got %+v", c)
	}
	if _, ok := l.Get(CellPosition{Sheet: "Sheet1", Row: 9, Col: 9}); ok {
		t.Error("missing cell reported present")
	}
	if _, ok := l.SheetBounds("Other"); ok {
		t.Error("unknown sheet reported present")
	}
	if _, ok := l.ResolveName("anything"); ok {
		t.Error("base without names resolved a name")
	}

	var bare Layered
	if _, ok := bare.Get(a1); ok {
		t.Error("empty Layered returned a cell")
	}
}
