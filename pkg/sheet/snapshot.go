package sheet

import (
	"strconv"
	"strings"

	"github.com/onlyadaydreamer/grid/pkg/types"
)

// DataType is the declared type of a cell's raw text.
type DataType string

const (
	DataEmpty     DataType = "empty"
	DataNumber    DataType = "number"
	DataString    DataType = "string"
	DataBoolean   DataType = "boolean"
	DataFormula   DataType = "formula"
	DataHyperlink DataType = "hyperlink"
)

// CellSnapshot is the read-only projection of a host cell. Result and
// ResultType carry the cached outcome of a previous evaluation, when any.
// An empty Text stands for a null raw value.
type CellSnapshot struct {
	Text       string   `json:"text,omitempty" yaml:"text,omitempty"`
	DataType   DataType `json:"datatype,omitempty" yaml:"datatype,omitempty"`
	Result     any      `json:"result,omitempty" yaml:"result,omitempty"`
	ResultType string   `json:"resultType,omitempty" yaml:"resultType,omitempty"`
}

// Value resolves the snapshot to the value a formula sees when it references
// the cell. Formula cells and cells with a cached result yield the result;
// other cells yield their raw text, typed by DataType.
func (c CellSnapshot) Value() types.Value {
	if c.DataType == DataFormula || c.ResultType != "" {
		return c.resultValue()
	}
	switch c.DataType {
	case DataNumber:
		return numberFromText(c.Text)
	case DataBoolean:
		switch strings.ToUpper(strings.TrimSpace(c.Text)) {
		case "TRUE":
			return types.NewBool(true)
		case "FALSE":
			return types.NewBool(false)
		}
		return types.NewString(c.Text)
	case DataEmpty:
		return types.Empty
	}
	if c.Text == "" {
		return types.Empty
	}
	return types.NewString(c.Text)
}

func (c CellSnapshot) resultValue() types.Value {
	if c.Result == nil {
		return types.Empty
	}
	if c.ResultType == string(DataNumber) {
		switch r := c.Result.(type) {
		case string:
			return numberFromText(r)
		case types.Value:
			return r
		}
	}
	if c.ResultType == "error" {
		if s, ok := c.Result.(string); ok {
			if code, ok := types.CodeFromDisplay(strings.ToUpper(s)); ok {
				return types.NewError(types.NewFormulaError(code, s))
			}
			return types.NewError(types.NewFormulaError(types.ErrorCode(s), s))
		}
	}
	v, ok := types.FromGo(c.Result)
	if !ok {
		return types.NewValueError("cached result has an unsupported shape").ToValue()
	}
	return v
}

func numberFromText(text string) types.Value {
	s := strings.TrimSpace(text)
	if s == "" {
		return types.NewNumber(0)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return types.NewValueError("cell text " + strconv.Quote(text) + " is not a number").ToValue()
	}
	return types.NewNumber(f)
}

// InferDataType picks the data type of raw cell text entered without one.
func InferDataType(text string) DataType {
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return DataEmpty
	case strings.HasPrefix(trimmed, "="):
		return DataFormula
	case strings.EqualFold(trimmed, "TRUE"), strings.EqualFold(trimmed, "FALSE"):
		return DataBoolean
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return DataNumber
	}
	return DataString
}

// Accessor is the pull-based view of host-owned sheet data.
type Accessor interface {
	// Get returns the snapshot at pos and false when the cell does not exist.
	Get(pos CellPosition) (CellSnapshot, bool)
	// SheetBounds returns the declared size of a sheet and false when the
	// sheet is unknown.
	SheetBounds(name string) (Bounds, bool)
}

// NameResolver is implemented by accessors that know named ranges.
type NameResolver interface {
	ResolveName(name string) (Reference, bool)
}

// Layered reads through an overlay before falling back to a base accessor.
type Layered struct {
	Overlay *Overlay
	Base    Accessor
}

// Get implements Accessor: overlay entries take precedence.
func (l Layered) Get(pos CellPosition) (CellSnapshot, bool) {
	if l.Overlay != nil {
		if c, ok := l.Overlay.Get(pos); ok {
			return c, true
		}
	}
	if l.Base == nil {
		return CellSnapshot{}, false
	}
	return l.Base.Get(pos)
}

// SheetBounds implements Accessor.
func (l Layered) SheetBounds(name string) (Bounds, bool) {
	if l.Base == nil {
		return Bounds{}, false
	}
	return l.Base.SheetBounds(name)
}

// ResolveName forwards to the base accessor when it resolves names.
func (l Layered) ResolveName(name string) (Reference, bool) {
	if nr, ok := l.Base.(NameResolver); ok {
		return nr.ResolveName(name)
	}
	return nil, false
}
