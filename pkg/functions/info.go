package functions

import (
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// registerInfo registers the IS* predicates and NA. The predicates are raw
// so they can look at error arguments.
func (r *Registry) registerInfo() {
	r.RegisterRaw("ISERROR", predicate("ISERROR", func(v types.Value) bool { return v.IsError() }))
	r.RegisterRaw("ISERR", predicate("ISERR", func(v types.Value) bool {
		return v.IsError() && v.AsError().Code != types.CodeNotAvailable
	}))
	r.RegisterRaw("ISNA", predicate("ISNA", func(v types.Value) bool {
		return v.IsError() && v.AsError().Code == types.CodeNotAvailable
	}))
	r.RegisterRaw("ISBLANK", predicate("ISBLANK", func(v types.Value) bool { return v.IsEmpty() }))
	r.RegisterRaw("ISNUMBER", predicate("ISNUMBER", func(v types.Value) bool { return v.Type() == types.TypeNumber }))
	r.RegisterRaw("ISTEXT", predicate("ISTEXT", func(v types.Value) bool { return v.Type() == types.TypeString }))
	r.RegisterRaw("ISLOGICAL", predicate("ISLOGICAL", func(v types.Value) bool { return v.Type() == types.TypeBool }))
	r.Register("NA", infoNA)
}

func predicate(name string, test func(types.Value) bool) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, 1); err != nil {
			return types.Empty, err
		}
		return types.NewBool(test(first(args[0]))), nil
	}
}

func infoNA(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("NA", args, 0, 0); err != nil {
		return types.Empty, err
	}
	return types.NewNotAvailableError("value not available").ToValue(), nil
}
