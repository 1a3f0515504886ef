package functions

import (
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// registerLogical registers boolean functions. IF, IFERROR and IFNA see
// error arguments unfiltered.
func (r *Registry) registerLogical() {
	r.RegisterRaw("IF", logicalIf)
	r.RegisterRaw("IFERROR", logicalIfError)
	r.RegisterRaw("IFNA", logicalIfNA)
	r.Register("AND", combine("AND", func(acc, b bool) bool { return acc && b }, true))
	r.Register("OR", combine("OR", func(acc, b bool) bool { return acc || b }, false))
	r.Register("XOR", combine("XOR", func(acc, b bool) bool { return acc != b }, false))
	r.Register("NOT", logicalNot)
	r.Register("TRUE", constant("TRUE", types.NewBool(true)))
	r.Register("FALSE", constant("FALSE", types.NewBool(false)))
}

func logicalIf(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("IF", args, 2, 3); err != nil {
		return types.Empty, err
	}
	cond := first(args[0])
	if cond.IsError() {
		return cond, nil
	}
	ok, err := cond.ToBool()
	if err != nil {
		return types.Empty, err
	}
	if ok {
		return args[1], nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return types.NewBool(false), nil
}

func logicalIfError(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("IFERROR", args, 1, 2); err != nil {
		return types.Empty, err
	}
	if !args[0].IsError() {
		return args[0], nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return types.Empty, nil
}

func logicalIfNA(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("IFNA", args, 2, 2); err != nil {
		return types.Empty, err
	}
	if args[0].IsError() && args[0].AsError().Code == types.CodeNotAvailable {
		return args[1], nil
	}
	return args[0], nil
}

// combine folds every logical argument. Text and empty cells inside ranges
// are ignored; an error anywhere is returned.
func combine(name string, op func(acc, b bool) bool, seed bool) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, unbounded); err != nil {
			return types.Empty, err
		}
		acc, seen := seed, false
		err := visit(args, func(v types.Value, direct bool) error {
			switch v.Type() {
			case types.TypeError:
				return v.AsError()
			case types.TypeEmpty:
				return nil
			case types.TypeString:
				if !direct {
					return nil
				}
			}
			b, ferr := v.ToBool()
			if ferr != nil {
				return ferr
			}
			acc, seen = op(acc, b), true
			return nil
		})
		if err != nil {
			return types.Empty, err
		}
		if !seen {
			return types.Empty, types.NewValueError(name + ": no logical values")
		}
		return types.NewBool(acc), nil
	}
}

func logicalNot(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("NOT", args, 1, 1); err != nil {
		return types.Empty, err
	}
	b, err := boolArg(args, 0)
	if err != nil {
		return types.Empty, err
	}
	return types.NewBool(!b), nil
}

func constant(name string, v types.Value) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 0, 0); err != nil {
			return types.Empty, err
		}
		return v, nil
	}
}
