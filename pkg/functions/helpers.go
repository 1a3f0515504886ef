package functions

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/onlyadaydreamer/grid/pkg/types"
)

// unbounded marks a variadic upper argument limit.
const unbounded = -1

// requireArgs checks that the number of args is in range.
func requireArgs(name string, args []types.Value, min, max int) error {
	if len(args) < min || max != unbounded && len(args) > max {
		switch {
		case min == max:
			return types.NewValueError(fmt.Sprintf("%s expects %d argument(s), got %d", name, min, len(args)))
		case max == unbounded:
			return types.NewValueError(fmt.Sprintf("%s expects at least %d argument(s), got %d", name, min, len(args)))
		}
		return types.NewValueError(fmt.Sprintf("%s expects %d-%d arguments, got %d", name, min, max, len(args)))
	}
	return nil
}

// numberArg coerces args[i] to a number.
func numberArg(name string, args []types.Value, i int) (float64, error) {
	f, ferr := args[i].ToNumber()
	if ferr != nil {
		if ferr.Code == types.CodeValue {
			return 0, types.NewValueError(fmt.Sprintf("%s: argument %d must be a number", name, i+1))
		}
		return 0, ferr
	}
	return f, nil
}

// optNumber returns args[i] as a number, or def when absent or empty.
func optNumber(name string, args []types.Value, i int, def float64) (float64, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return def, nil
	}
	return numberArg(name, args, i)
}

// maxIndex caps counts and positions taken from numeric arguments.
const maxIndex = math.MaxInt32

// toIndex truncates f toward zero, saturating at ±maxIndex so that huge
// arguments land in the caller's range checks instead of wrapping.
func toIndex(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f > maxIndex:
		return maxIndex
	case f < -maxIndex:
		return -maxIndex
	}
	return int(f)
}

// textArg coerces args[i] to text.
func textArg(args []types.Value, i int) (string, error) {
	s, ferr := args[i].ToText()
	if ferr != nil {
		return "", ferr
	}
	return s, nil
}

// boolArg coerces args[i] to a boolean.
func boolArg(args []types.Value, i int) (bool, error) {
	b, ferr := args[i].ToBool()
	if ferr != nil {
		return false, ferr
	}
	return b, nil
}

// optBool returns args[i] as a boolean, or def when absent or empty.
func optBool(args []types.Value, i int, def bool) (bool, error) {
	if i >= len(args) || args[i].IsEmpty() {
		return def, nil
	}
	return boolArg(args, i)
}

// grid returns v as rows, treating a scalar as a 1x1 array.
func grid(v types.Value) [][]types.Value {
	if v.Type() == types.TypeArray {
		return v.AsArray()
	}
	return [][]types.Value{{v}}
}

// dims returns the row and column count of v.
func dims(v types.Value) (int, int) {
	rows := grid(v)
	if len(rows) == 0 {
		return 0, 0
	}
	return len(rows), len(rows[0])
}

// cells flattens v row-major.
func cells(v types.Value) []types.Value {
	var out []types.Value
	for _, row := range grid(v) {
		out = append(out, row...)
	}
	return out
}

// first returns the top-left cell of an array, or v itself.
func first(v types.Value) types.Value {
	if v.Type() != types.TypeArray {
		return v
	}
	rows := v.AsArray()
	if len(rows) == 0 || len(rows[0]) == 0 {
		return types.Empty
	}
	return rows[0][0]
}

// visit calls fn for every scalar in args. direct is false for values that
// came out of an array or range.
func visit(args []types.Value, fn func(v types.Value, direct bool) error) error {
	for _, a := range args {
		if a.Type() != types.TypeArray {
			if err := fn(a, true); err != nil {
				return err
			}
			continue
		}
		for _, c := range cells(a) {
			if err := fn(c, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// collectNumbers gathers numeric arguments. Direct arguments are coerced;
// values from ranges count only when they are numbers. Any error value
// stops collection.
func collectNumbers(name string, args []types.Value) ([]float64, error) {
	var nums []float64
	err := visit(args, func(v types.Value, direct bool) error {
		switch v.Type() {
		case types.TypeError:
			return v.AsError()
		case types.TypeNumber:
			nums = append(nums, v.AsNumber())
		case types.TypeEmpty:
		default:
			if !direct {
				return nil
			}
			f, ferr := v.ToNumber()
			if ferr != nil {
				return types.NewValueError(fmt.Sprintf("%s: %s", name, ferr.Message))
			}
			nums = append(nums, f)
		}
		return nil
	})
	return nums, err
}

// criterion is a compiled COUNTIF/SUMIF condition.
type criterion func(v types.Value) bool

var criterionOps = []string{"<=", ">=", "<>", "<", ">", "="}

// newCriterion compiles a condition such as 5, ">3", "<>done" or "ap*".
// Text comparisons are case-insensitive and "=" matches support the
// wildcards * and ?.
func newCriterion(c types.Value) criterion {
	if c.Type() != types.TypeString {
		return func(v types.Value) bool {
			return !v.IsError() && types.SameKind(v, c) && !v.IsEmpty() && types.Compare(v, c) == 0
		}
	}

	text := c.AsString()
	op := "="
	for _, candidate := range criterionOps {
		if strings.HasPrefix(text, candidate) {
			op = candidate
			text = text[len(candidate):]
			break
		}
	}

	operand := types.NewString(text)
	if f, ferr := operand.ToNumber(); ferr == nil && strings.TrimSpace(text) != "" {
		operand = types.NewNumber(f)
	} else if strings.EqualFold(text, "TRUE") || strings.EqualFold(text, "FALSE") {
		operand = types.NewBool(strings.EqualFold(text, "TRUE"))
	}

	var pattern *regexp.Regexp
	if operand.Type() == types.TypeString && strings.ContainsAny(text, "*?") {
		pattern = wildcardPattern(text)
	}

	return func(v types.Value) bool {
		if v.IsError() {
			return false
		}
		if op == "=" && text == "" {
			return v.IsEmpty() || v.Type() == types.TypeString && v.AsString() == ""
		}
		if op == "<>" && text == "" {
			return !(v.IsEmpty() || v.Type() == types.TypeString && v.AsString() == "")
		}
		if pattern != nil && (op == "=" || op == "<>") {
			s, _ := v.ToText()
			matched := v.Type() == types.TypeString && pattern.MatchString(s)
			return matched == (op == "=")
		}
		if v.IsEmpty() || !types.SameKind(v, operand) {
			return op == "<>"
		}
		n := types.Compare(v, operand)
		switch op {
		case "=":
			return n == 0
		case "<>":
			return n != 0
		case "<":
			return n < 0
		case "<=":
			return n <= 0
		case ">":
			return n > 0
		case ">=":
			return n >= 0
		}
		return false
	}
}

// wildcardPattern converts a spreadsheet wildcard (*, ?, ~ escapes) into an
// anchored case-insensitive regular expression.
func wildcardPattern(s string) *regexp.Regexp {
	return regexp.MustCompile("(?is)^" + wildcardExpr(s) + "$")
}

func wildcardExpr(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch == '~' && i+1 < len(s):
			i++
			sb.WriteString(regexp.QuoteMeta(s[i : i+1]))
		case ch == '*':
			sb.WriteString(".*")
		case ch == '?':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(s[i : i+1]))
		}
	}
	return sb.String()
}
