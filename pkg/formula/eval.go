package formula

import (
	"errors"
	"fmt"

	"github.com/onlyadaydreamer/grid/pkg/functions"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// Env is everything one evaluation reads: the anchor cell, the cell data
// and the function table.
type Env struct {
	Anchor    sheet.CellPosition
	Cells     sheet.Accessor
	Functions *functions.Registry
	Clock     functions.Clock
}

// Evaluate evaluates a formula AST. It is total: every failure comes back
// as an error value.
func Evaluate(node Node, env *Env) types.Value {
	switch n := node.(type) {
	case *LiteralNode:
		return n.Value
	case *ReferenceNode:
		return env.cell(n.Position)
	case *RangeNode:
		return env.rangeValue(n.Range)
	case *NameNode:
		return env.name(n.Name)
	case *UnaryNode:
		return evalUnary(n, env)
	case *BinaryNode:
		return evalBinary(n, env)
	case *CallNode:
		return evalCall(n, env)
	case *ArrayNode:
		return evalArray(n, env)
	default:
		return types.NewGenericError(fmt.Sprintf("unsupported formula node %T", node)).ToValue()
	}
}

// cell resolves one position. A missing cell on a known sheet is empty.
func (env *Env) cell(pos sheet.CellPosition) types.Value {
	if env.Cells == nil {
		return types.NewRefError(fmt.Sprintf("unknown sheet %q", pos.Sheet)).ToValue()
	}
	if _, ok := env.Cells.SheetBounds(pos.Sheet); !ok {
		return types.NewRefError(fmt.Sprintf("unknown sheet %q", pos.Sheet)).ToValue()
	}
	snap, ok := env.Cells.Get(pos)
	if !ok {
		return types.Empty
	}
	return snap.Value()
}

// rangeValue builds the 2-D array for r, normalized and clipped to the
// sheet's bounds.
func (env *Env) rangeValue(r sheet.CellRange) types.Value {
	if env.Cells == nil {
		return types.NewRefError(fmt.Sprintf("unknown sheet %q", r.Sheet)).ToValue()
	}
	bounds, ok := env.Cells.SheetBounds(r.Sheet)
	if !ok {
		return types.NewRefError(fmt.Sprintf("unknown sheet %q", r.Sheet)).ToValue()
	}
	if bounds.RowCount < 1 || bounds.ColumnCount < 1 {
		return types.NewArray(nil)
	}

	clipped := r.Clip(bounds)
	rows := make([][]types.Value, 0, clipped.To.Row-clipped.From.Row+1)
	for row := clipped.From.Row; row <= clipped.To.Row; row++ {
		line := make([]types.Value, 0, clipped.To.Col-clipped.From.Col+1)
		for col := clipped.From.Col; col <= clipped.To.Col; col++ {
			line = append(line, env.cell(sheet.CellPosition{Sheet: r.Sheet, Row: row, Col: col}))
		}
		rows = append(rows, line)
	}
	return types.NewArray(rows)
}

func (env *Env) name(name string) types.Value {
	if ref, ok := env.resolveName(name); ok {
		switch r := ref.(type) {
		case sheet.CellPosition:
			return env.cell(r)
		case sheet.CellRange:
			return env.rangeValue(r)
		}
	}
	return types.NewNameError(fmt.Sprintf("unknown name %q", name)).ToValue()
}

func (env *Env) resolveName(name string) (sheet.Reference, bool) {
	resolver, ok := env.Cells.(sheet.NameResolver)
	if !ok {
		return nil, false
	}
	return resolver.ResolveName(name)
}

func evalUnary(n *UnaryNode, env *Env) types.Value {
	operand := Evaluate(n.Operand, env)
	return mapValue(operand, func(v types.Value) types.Value {
		f, ferr := v.ToNumber()
		if ferr != nil {
			return ferr.ToValue()
		}
		switch n.Op {
		case TokenMinus:
			return types.NewNumber(-f)
		case TokenPercent:
			return types.NewNumber(f / 100)
		}
		return types.NewNumber(f)
	})
}

func evalBinary(n *BinaryNode, env *Env) types.Value {
	left := Evaluate(n.Left, env)
	right := Evaluate(n.Right, env)
	return broadcast(left, right, func(a, b types.Value) types.Value {
		if a.IsError() {
			return a
		}
		if b.IsError() {
			return b
		}
		switch n.Op {
		case TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenCaret:
			return arithmetic(n.Op, a, b)
		case TokenAmp:
			sa, _ := a.ToText()
			sb, _ := b.ToText()
			return types.NewString(sa + sb)
		default:
			return compare(n.Op, a, b)
		}
	})
}

func arithmetic(op TokenType, a, b types.Value) types.Value {
	x, ferr := a.ToNumber()
	if ferr != nil {
		return ferr.ToValue()
	}
	y, ferr := b.ToNumber()
	if ferr != nil {
		return ferr.ToValue()
	}

	var v types.Value
	var err error
	switch op {
	case TokenPlus:
		v, err = functions.Number(x + y)
	case TokenMinus:
		v, err = functions.Number(x - y)
	case TokenStar:
		v, err = functions.Number(x * y)
	case TokenSlash:
		if y == 0 {
			return types.NewDivByZeroError().ToValue()
		}
		v, err = functions.Number(x / y)
	case TokenCaret:
		v, err = functions.Power(x, y)
	}
	if err != nil {
		var fe *types.FormulaError
		if errors.As(err, &fe) {
			return fe.ToValue()
		}
		return types.NewGenericError(err.Error()).ToValue()
	}
	return v
}

func compare(op TokenType, a, b types.Value) types.Value {
	c := types.Compare(a, b)
	switch op {
	case TokenEq:
		return types.NewBool(c == 0)
	case TokenNeq:
		return types.NewBool(c != 0)
	case TokenLt:
		return types.NewBool(c < 0)
	case TokenGt:
		return types.NewBool(c > 0)
	case TokenLte:
		return types.NewBool(c <= 0)
	case TokenGte:
		return types.NewBool(c >= 0)
	}
	return types.NewGenericError("unknown operator " + op.String()).ToValue()
}

// evalCall evaluates arguments eagerly and dispatches by name. Arguments
// written as plain references are passed along so ROW and COLUMN can see
// where they point.
func evalCall(n *CallNode, env *Env) types.Value {
	if env.Functions == nil {
		return types.NewNameError(fmt.Sprintf("unknown function %q", n.Name)).ToValue()
	}

	args := make([]types.Value, len(n.Args))
	refs := make([]sheet.Reference, len(n.Args))
	for i, arg := range n.Args {
		args[i] = Evaluate(arg, env)
		switch a := arg.(type) {
		case *ReferenceNode:
			refs[i] = a.Position
		case *RangeNode:
			refs[i] = a.Range
		case *NameNode:
			if ref, ok := env.resolveName(a.Name); ok {
				refs[i] = ref
			}
		}
	}

	ctx := &functions.Context{Anchor: env.Anchor, Clock: env.Clock, Refs: refs}
	return env.Functions.Call(ctx, n.Name, args)
}

// evalArray builds an array literal. Each element must reduce to a scalar.
func evalArray(n *ArrayNode, env *Env) types.Value {
	rows := make([][]types.Value, len(n.Rows))
	for i, row := range n.Rows {
		rows[i] = make([]types.Value, len(row))
		for j, elem := range row {
			v := Evaluate(elem, env)
			if v.Type() == types.TypeArray {
				inner := v.AsArray()
				if len(inner) != 1 || len(inner[0]) != 1 {
					return types.NewValueError("array literal elements must be single values").ToValue()
				}
				v = inner[0][0]
			}
			rows[i][j] = v
		}
	}
	return types.NewArray(rows)
}

// mapValue applies fn to v, or element-wise when v is an array.
func mapValue(v types.Value, fn func(types.Value) types.Value) types.Value {
	if v.Type() != types.TypeArray {
		return fn(v)
	}
	in := v.AsArray()
	out := make([][]types.Value, len(in))
	for i, row := range in {
		out[i] = make([]types.Value, len(row))
		for j, c := range row {
			out[i][j] = fn(c)
		}
	}
	return types.NewArray(out)
}

// broadcast applies fn element-wise. A scalar or 1x1 array pairs with every
// element of the other side; two larger arrays must have the same shape.
func broadcast(a, b types.Value, fn func(a, b types.Value) types.Value) types.Value {
	aArr, bArr := a.Type() == types.TypeArray, b.Type() == types.TypeArray
	if aArr && isSingle(a) {
		a, aArr = a.AsArray()[0][0], false
	}
	if bArr && isSingle(b) {
		b, bArr = b.AsArray()[0][0], false
	}

	switch {
	case !aArr && !bArr:
		return fn(a, b)
	case aArr && !bArr:
		return mapValue(a, func(x types.Value) types.Value { return fn(x, b) })
	case !aArr && bArr:
		return mapValue(b, func(y types.Value) types.Value { return fn(a, y) })
	}

	ra, rb := a.AsArray(), b.AsArray()
	if !sameShape(ra, rb) {
		return types.NewValueError("array arguments have different sizes").ToValue()
	}
	out := make([][]types.Value, len(ra))
	for i := range ra {
		out[i] = make([]types.Value, len(ra[i]))
		for j := range ra[i] {
			out[i][j] = fn(ra[i][j], rb[i][j])
		}
	}
	return types.NewArray(out)
}

func isSingle(v types.Value) bool {
	rows := v.AsArray()
	return len(rows) == 1 && len(rows[0]) == 1
}

func sameShape(a, b [][]types.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
	}
	return true
}
