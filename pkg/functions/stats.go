package functions

import (
	"math"
	"sort"

	"github.com/onlyadaydreamer/grid/pkg/types"
)

// registerStats registers aggregate and counting functions.
func (r *Registry) registerStats() {
	r.Register("AVERAGE", statAverage)
	r.Register("MIN", extreme("MIN", math.Min))
	r.Register("MAX", extreme("MAX", math.Max))
	r.RegisterRaw("COUNT", statCount)
	r.RegisterRaw("COUNTA", statCountA)
	r.RegisterRaw("COUNTBLANK", statCountBlank)
	r.Register("MEDIAN", statMedian)
	r.Register("COUNTIF", statCountIf)
	r.Register("SUMIF", statSumIf)
}

func statAverage(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("AVERAGE", args, 1, unbounded); err != nil {
		return types.Empty, err
	}
	nums, err := collectNumbers("AVERAGE", args)
	if err != nil {
		return types.Empty, err
	}
	if len(nums) == 0 {
		return types.Empty, types.NewDivByZeroError()
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return Number(total / float64(len(nums)))
}

func extreme(name string, pick func(a, b float64) float64) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, unbounded); err != nil {
			return types.Empty, err
		}
		nums, err := collectNumbers(name, args)
		if err != nil {
			return types.Empty, err
		}
		if len(nums) == 0 {
			return types.NewNumber(0), nil
		}
		out := nums[0]
		for _, n := range nums[1:] {
			out = pick(out, n)
		}
		return types.NewNumber(out), nil
	}
}

// statCount counts numbers. Errors are skipped, not propagated.
func statCount(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("COUNT", args, 1, unbounded); err != nil {
		return types.Empty, err
	}
	n := 0
	_ = visit(args, func(v types.Value, direct bool) error {
		switch v.Type() {
		case types.TypeNumber:
			n++
		case types.TypeString, types.TypeBool:
			if _, ferr := v.ToNumber(); direct && ferr == nil {
				n++
			}
		}
		return nil
	})
	return types.NewNumber(float64(n)), nil
}

func statCountA(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("COUNTA", args, 1, unbounded); err != nil {
		return types.Empty, err
	}
	n := 0
	_ = visit(args, func(v types.Value, direct bool) error {
		if !v.IsEmpty() || direct {
			n++
		}
		return nil
	})
	return types.NewNumber(float64(n)), nil
}

func statCountBlank(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("COUNTBLANK", args, 1, 1); err != nil {
		return types.Empty, err
	}
	n := 0
	for _, c := range cells(args[0]) {
		if c.IsEmpty() || c.Type() == types.TypeString && c.AsString() == "" {
			n++
		}
	}
	return types.NewNumber(float64(n)), nil
}

func statMedian(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("MEDIAN", args, 1, unbounded); err != nil {
		return types.Empty, err
	}
	nums, err := collectNumbers("MEDIAN", args)
	if err != nil {
		return types.Empty, err
	}
	if len(nums) == 0 {
		return types.Empty, types.NewNumError("MEDIAN: no numeric values")
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 1 {
		return types.NewNumber(nums[mid]), nil
	}
	return types.NewNumber((nums[mid-1] + nums[mid]) / 2), nil
}

func statCountIf(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("COUNTIF", args, 2, 2); err != nil {
		return types.Empty, err
	}
	match := newCriterion(first(args[1]))
	n := 0
	for _, c := range cells(args[0]) {
		if match(c) {
			n++
		}
	}
	return types.NewNumber(float64(n)), nil
}

// statSumIf sums the cells of the sum range (default: the tested range) at
// the positions where the tested range matches.
func statSumIf(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("SUMIF", args, 2, 3); err != nil {
		return types.Empty, err
	}
	match := newCriterion(first(args[1]))
	tested := grid(args[0])
	sumRange := tested
	if len(args) == 3 && !args[2].IsEmpty() {
		sumRange = grid(args[2])
	}

	total := 0.0
	for i, row := range tested {
		for j, c := range row {
			if !match(c) || i >= len(sumRange) || j >= len(sumRange[i]) {
				continue
			}
			switch v := sumRange[i][j]; v.Type() {
			case types.TypeNumber:
				total += v.AsNumber()
			case types.TypeError:
				return types.Empty, v.AsError()
			}
		}
	}
	return Number(total)
}
