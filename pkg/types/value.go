// Package types defines the value model shared by the formula engine.
// A Value is a tagged union over the kinds a spreadsheet cell or formula
// result can take: empty, number, string, bool, error, array and hyperlink.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueType represents the kind of a Value.
type ValueType int

const (
	TypeEmpty     ValueType = iota
	TypeNumber              // float64
	TypeString              // string
	TypeBool                // bool
	TypeError               // *FormulaError
	TypeArray               // [][]Value, row-major
	TypeHyperlink           // Hyperlink
)

// String returns the result type name reported to hosts.
func (t ValueType) String() string {
	switch t {
	case TypeEmpty:
		return "empty"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeBool:
		return "boolean"
	case TypeError:
		return "error"
	case TypeArray:
		return "array"
	case TypeHyperlink:
		return "hyperlink"
	default:
		return "unknown"
	}
}

// Hyperlink is the payload produced by HYPERLINK and by decoded
// {"datatype":"hyperlink"} results.
type Hyperlink struct {
	URL   string
	Title string
}

// Value represents a formula runtime value.
type Value struct {
	typ       ValueType
	numVal    float64
	strVal    string
	boolVal   bool
	errVal    *FormulaError
	arrVal    [][]Value
	hyperlink Hyperlink
}

// Empty is the value of a blank cell.
var Empty = Value{typ: TypeEmpty}

// NewNumber creates a number value.
func NewNumber(v float64) Value {
	return Value{typ: TypeNumber, numVal: v}
}

// NewString creates a string value.
func NewString(v string) Value {
	return Value{typ: TypeString, strVal: v}
}

// NewBool creates a boolean value.
func NewBool(v bool) Value {
	return Value{typ: TypeBool, boolVal: v}
}

// NewError wraps a FormulaError as a value. A nil error yields a GenericError.
func NewError(e *FormulaError) Value {
	if e == nil {
		e = NewGenericError("unknown error")
	}
	return Value{typ: TypeError, errVal: e}
}

// NewArray creates an array value. Rows are not copied.
func NewArray(rows [][]Value) Value {
	return Value{typ: TypeArray, arrVal: rows}
}

// NewHyperlink creates a hyperlink value.
func NewHyperlink(url, title string) Value {
	return Value{typ: TypeHyperlink, hyperlink: Hyperlink{URL: url, Title: title}}
}

// Type returns the value's kind.
func (v Value) Type() ValueType {
	return v.typ
}

// IsEmpty reports whether v is the empty value.
func (v Value) IsEmpty() bool {
	return v.typ == TypeEmpty
}

// IsError reports whether v carries a FormulaError.
func (v Value) IsError() bool {
	return v.typ == TypeError
}

// AsNumber returns the number value. Panics if not a number.
func (v Value) AsNumber() float64 {
	if v.typ != TypeNumber {
		panic(fmt.Sprintf("AsNumber called on %s value", v.typ))
	}
	return v.numVal
}

// AsString returns the string value. Panics if not a string.
func (v Value) AsString() string {
	if v.typ != TypeString {
		panic(fmt.Sprintf("AsString called on %s value", v.typ))
	}
	return v.strVal
}

// AsBool returns the boolean value. Panics if not a bool.
func (v Value) AsBool() bool {
	if v.typ != TypeBool {
		panic(fmt.Sprintf("AsBool called on %s value", v.typ))
	}
	return v.boolVal
}

// AsError returns the error value. Panics if not an error.
func (v Value) AsError() *FormulaError {
	if v.typ != TypeError {
		panic(fmt.Sprintf("AsError called on %s value", v.typ))
	}
	return v.errVal
}

// AsArray returns the rows of an array value. Panics if not an array.
func (v Value) AsArray() [][]Value {
	if v.typ != TypeArray {
		panic(fmt.Sprintf("AsArray called on %s value", v.typ))
	}
	return v.arrVal
}

// AsHyperlink returns the hyperlink payload. Panics if not a hyperlink.
func (v Value) AsHyperlink() Hyperlink {
	if v.typ != TypeHyperlink {
		panic(fmt.Sprintf("AsHyperlink called on %s value", v.typ))
	}
	return v.hyperlink
}

// ToNumber coerces v using arithmetic rules: empty is 0, booleans are 1/0,
// numeric strings parse. Anything else is a ValueError.
func (v Value) ToNumber() (float64, *FormulaError) {
	switch v.typ {
	case TypeEmpty:
		return 0, nil
	case TypeNumber:
		return v.numVal, nil
	case TypeBool:
		if v.boolVal {
			return 1, nil
		}
		return 0, nil
	case TypeString:
		s := strings.TrimSpace(v.strVal)
		if s == "" {
			return 0, nil
		}
		if strings.HasSuffix(s, "%") {
			f, err := strconv.ParseFloat(strings.TrimSpace(s[:len(s)-1]), 64)
			if err == nil {
				return f / 100, nil
			}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, NewValueError(fmt.Sprintf("cannot convert %q to a number", v.strVal))
		}
		return f, nil
	case TypeError:
		return 0, v.errVal
	case TypeHyperlink:
		return 0, NewValueError("cannot convert a hyperlink to a number")
	case TypeArray:
		if len(v.arrVal) == 1 && len(v.arrVal[0]) == 1 {
			return v.arrVal[0][0].ToNumber()
		}
		return 0, NewValueError("cannot convert a range to a number")
	}
	return 0, NewValueError("unsupported value")
}

// ToText coerces v using concatenation rules: empty is "", booleans are
// TRUE/FALSE and numbers use their shortest decimal form.
func (v Value) ToText() (string, *FormulaError) {
	switch v.typ {
	case TypeEmpty:
		return "", nil
	case TypeNumber:
		return FormatNumber(v.numVal), nil
	case TypeString:
		return v.strVal, nil
	case TypeBool:
		if v.boolVal {
			return "TRUE", nil
		}
		return "FALSE", nil
	case TypeError:
		return "", v.errVal
	case TypeHyperlink:
		if v.hyperlink.Title != "" {
			return v.hyperlink.Title, nil
		}
		return v.hyperlink.URL, nil
	case TypeArray:
		if len(v.arrVal) == 1 && len(v.arrVal[0]) == 1 {
			return v.arrVal[0][0].ToText()
		}
		return "", NewValueError("cannot convert a range to text")
	}
	return "", NewValueError("unsupported value")
}

// ToBool coerces v using logical rules: numbers are true when non-zero,
// "TRUE"/"FALSE" strings parse case-insensitively, empty is false.
func (v Value) ToBool() (bool, *FormulaError) {
	switch v.typ {
	case TypeEmpty:
		return false, nil
	case TypeBool:
		return v.boolVal, nil
	case TypeNumber:
		return v.numVal != 0, nil
	case TypeString:
		switch strings.ToUpper(strings.TrimSpace(v.strVal)) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
		return false, NewValueError(fmt.Sprintf("cannot convert %q to a boolean", v.strVal))
	case TypeError:
		return false, v.errVal
	case TypeArray:
		if len(v.arrVal) == 1 && len(v.arrVal[0]) == 1 {
			return v.arrVal[0][0].ToBool()
		}
	}
	return false, NewValueError(fmt.Sprintf("cannot convert %s to a boolean", v.typ))
}

// FormatNumber renders a float the way a cell displays it in text context.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', 15, 64)
}

// Equal tests deep equality. Strings compare case-sensitively here; the
// formula `=` operator applies its own case folding.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeEmpty:
		return true
	case TypeNumber:
		return v.numVal == other.numVal
	case TypeString:
		return v.strVal == other.strVal
	case TypeBool:
		return v.boolVal == other.boolVal
	case TypeError:
		return v.errVal.Code == other.errVal.Code
	case TypeHyperlink:
		return v.hyperlink == other.hyperlink
	case TypeArray:
		if len(v.arrVal) != len(other.arrVal) {
			return false
		}
		for i := range v.arrVal {
			if len(v.arrVal[i]) != len(other.arrVal[i]) {
				return false
			}
			for j := range v.arrVal[i] {
				if !v.arrVal[i][j].Equal(other.arrVal[i][j]) {
					return false
				}
			}
		}
		return true
	}
	return false
}

// String returns a human-readable representation for debugging and the REPL.
func (v Value) String() string {
	switch v.typ {
	case TypeEmpty:
		return ""
	case TypeError:
		return v.errVal.Display()
	case TypeArray:
		rows := make([]string, len(v.arrVal))
		for i, row := range v.arrVal {
			cells := make([]string, len(row))
			for j, c := range row {
				cells[j] = c.String()
			}
			rows[i] = strings.Join(cells, ", ")
		}
		return "{" + strings.Join(rows, "; ") + "}"
	case TypeHyperlink:
		if v.hyperlink.Title != "" {
			return v.hyperlink.Title + " <" + v.hyperlink.URL + ">"
		}
		return v.hyperlink.URL
	}
	s, _ := v.ToText()
	return s
}

// ToGoValue converts v to a plain Go value suitable for JSON marshaling.
// Empty becomes nil, arrays become [][]any, errors their display string.
func (v Value) ToGoValue() any {
	switch v.typ {
	case TypeNumber:
		return v.numVal
	case TypeString:
		return v.strVal
	case TypeBool:
		return v.boolVal
	case TypeError:
		return v.errVal.Display()
	case TypeHyperlink:
		return map[string]any{
			"datatype":  "hyperlink",
			"hyperlink": v.hyperlink.URL,
			"title":     v.hyperlink.Title,
		}
	case TypeArray:
		rows := make([][]any, len(v.arrVal))
		for i, row := range v.arrVal {
			rows[i] = make([]any, len(row))
			for j, c := range row {
				rows[i][j] = c.ToGoValue()
			}
		}
		return rows
	}
	return nil
}

// MarshalJSON encodes v via ToGoValue.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.ToGoValue())
}

// FromGo converts a decoded JSON value (or a plain Go scalar) into a Value.
// Maps tagged {"datatype":"hyperlink"} become hyperlinks, slices of slices
// become arrays and a flat slice becomes a single-row array. ok is false for
// shapes that have no Value equivalent (untagged maps, ragged nesting).
func FromGo(raw any) (Value, bool) {
	switch val := raw.(type) {
	case nil:
		return Empty, true
	case Value:
		return val, true
	case bool:
		return NewBool(val), true
	case float64:
		return NewNumber(val), true
	case float32:
		return NewNumber(float64(val)), true
	case int:
		return NewNumber(float64(val)), true
	case int64:
		return NewNumber(float64(val)), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return NewString(val.String()), true
		}
		return NewNumber(f), true
	case string:
		return NewString(val), true
	case *FormulaError:
		return NewError(val), true
	case Hyperlink:
		return NewHyperlink(val.URL, val.Title), true
	case map[string]any:
		if dt, _ := val["datatype"].(string); dt == "hyperlink" {
			url, _ := val["hyperlink"].(string)
			title, _ := val["title"].(string)
			return NewHyperlink(url, title), true
		}
		return Empty, false
	case [][]any:
		return arrayFromRows(val)
	case []any:
		if len(val) == 0 {
			return NewArray(nil), true
		}
		if _, nested := val[0].([]any); nested {
			rows := make([][]any, len(val))
			for i, r := range val {
				row, ok := r.([]any)
				if !ok {
					return Empty, false
				}
				rows[i] = row
			}
			return arrayFromRows(rows)
		}
		return arrayFromRows([][]any{val})
	}
	return Empty, false
}

func arrayFromRows(rows [][]any) (Value, bool) {
	out := make([][]Value, len(rows))
	for i, row := range rows {
		if i > 0 && len(row) != len(rows[0]) {
			return Empty, false
		}
		out[i] = make([]Value, len(row))
		for j, c := range row {
			cv, ok := FromGo(c)
			if !ok || cv.typ == TypeArray {
				return Empty, false
			}
			out[i][j] = cv
		}
	}
	return NewArray(out), true
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
