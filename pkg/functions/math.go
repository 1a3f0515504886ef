package functions

import (
	"math"
	"strconv"

	"github.com/onlyadaydreamer/grid/pkg/types"
)

// registerMath registers arithmetic and rounding functions.
func (r *Registry) registerMath() {
	r.Register("SUM", mathSum)
	r.Register("PRODUCT", mathProduct)
	r.Register("ABS", unaryMath("ABS", math.Abs))
	r.Register("ROUND", rounding("ROUND", math.Round))
	r.Register("ROUNDUP", rounding("ROUNDUP", roundAway))
	r.Register("ROUNDDOWN", rounding("ROUNDDOWN", math.Trunc))
	r.Register("INT", unaryMath("INT", math.Floor))
	r.Register("MOD", mathMod)
	r.Register("POWER", mathPower)
	r.Register("SQRT", mathSqrt)
	r.Register("EXP", unaryMath("EXP", math.Exp))
	r.Register("LN", mathLn)
	r.Register("LOG", mathLog)
	r.Register("LOG10", mathLog10)
	r.Register("PI", mathPi)
	r.Register("SIGN", unaryMath("SIGN", sign))
	r.Register("CEILING", multiple("CEILING", math.Ceil))
	r.Register("FLOOR", multiple("FLOOR", math.Floor))
}

// Number checks a numeric result for overflow and NaN.
func Number(f float64) (types.Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return types.Empty, types.NewNumError("result is not a finite number")
	}
	return types.NewNumber(f), nil
}

func mathSum(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("SUM", args, 1, unbounded); err != nil {
		return types.Empty, err
	}
	nums, err := collectNumbers("SUM", args)
	if err != nil {
		return types.Empty, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return Number(total)
}

func mathProduct(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("PRODUCT", args, 1, unbounded); err != nil {
		return types.Empty, err
	}
	nums, err := collectNumbers("PRODUCT", args)
	if err != nil {
		return types.Empty, err
	}
	if len(nums) == 0 {
		return types.NewNumber(0), nil
	}
	total := 1.0
	for _, n := range nums {
		total *= n
	}
	return Number(total)
}

func unaryMath(name string, fn func(float64) float64) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, 1); err != nil {
			return types.Empty, err
		}
		x, err := numberArg(name, args, 0)
		if err != nil {
			return types.Empty, err
		}
		return Number(fn(x))
	}
}

func rounding(name string, fn func(float64) float64) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, 2); err != nil {
			return types.Empty, err
		}
		x, err := numberArg(name, args, 0)
		if err != nil {
			return types.Empty, err
		}
		places, err := optNumber(name, args, 1, 0)
		if err != nil {
			return types.Empty, err
		}
		p := math.Pow(10, math.Abs(math.Trunc(places)))
		if places < 0 {
			return Number(fn(significant(x/p)) * p)
		}
		return Number(fn(significant(x*p)) / p)
	}
}

// significant trims binary noise below 15 significant digits so that
// 2.345*100 rounds as 234.5.
func significant(x float64) float64 {
	f, err := strconv.ParseFloat(strconv.FormatFloat(x, 'g', 15, 64), 64)
	if err != nil {
		return x
	}
	return f
}

func roundAway(x float64) float64 {
	if x < 0 {
		return -math.Ceil(-x)
	}
	return math.Ceil(x)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func mathMod(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("MOD", args, 2, 2); err != nil {
		return types.Empty, err
	}
	a, err := numberArg("MOD", args, 0)
	if err != nil {
		return types.Empty, err
	}
	b, err := numberArg("MOD", args, 1)
	if err != nil {
		return types.Empty, err
	}
	if b == 0 {
		return types.Empty, types.NewDivByZeroError()
	}
	return Number(a - b*math.Floor(a/b))
}

// Power raises base to exp with spreadsheet error semantics.
func Power(base, exp float64) (types.Value, error) {
	if base == 0 && exp < 0 {
		return types.Empty, types.NewDivByZeroError()
	}
	return Number(math.Pow(base, exp))
}

func mathPower(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("POWER", args, 2, 2); err != nil {
		return types.Empty, err
	}
	base, err := numberArg("POWER", args, 0)
	if err != nil {
		return types.Empty, err
	}
	exp, err := numberArg("POWER", args, 1)
	if err != nil {
		return types.Empty, err
	}
	return Power(base, exp)
}

func mathSqrt(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("SQRT", args, 1, 1); err != nil {
		return types.Empty, err
	}
	x, err := numberArg("SQRT", args, 0)
	if err != nil {
		return types.Empty, err
	}
	if x < 0 {
		return types.Empty, types.NewNumError("SQRT: argument must not be negative")
	}
	return types.NewNumber(math.Sqrt(x)), nil
}

func mathLn(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("LN", args, 1, 1); err != nil {
		return types.Empty, err
	}
	x, err := numberArg("LN", args, 0)
	if err != nil {
		return types.Empty, err
	}
	if x <= 0 {
		return types.Empty, types.NewNumError("LN: argument must be positive")
	}
	return types.NewNumber(math.Log(x)), nil
}

func mathLog(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("LOG", args, 1, 2); err != nil {
		return types.Empty, err
	}
	x, err := numberArg("LOG", args, 0)
	if err != nil {
		return types.Empty, err
	}
	base, err := optNumber("LOG", args, 1, 10)
	if err != nil {
		return types.Empty, err
	}
	if x <= 0 || base <= 0 {
		return types.Empty, types.NewNumError("LOG: arguments must be positive")
	}
	switch base {
	case 1:
		return types.Empty, types.NewDivByZeroError()
	case 10:
		return Number(math.Log10(x))
	case 2:
		return Number(math.Log2(x))
	}
	return Number(math.Log(x) / math.Log(base))
}

func mathLog10(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("LOG10", args, 1, 1); err != nil {
		return types.Empty, err
	}
	x, err := numberArg("LOG10", args, 0)
	if err != nil {
		return types.Empty, err
	}
	if x <= 0 {
		return types.Empty, types.NewNumError("LOG10: argument must be positive")
	}
	return types.NewNumber(math.Log10(x)), nil
}

func mathPi(_ *Context, args []types.Value) (types.Value, error) {
	if err := requireArgs("PI", args, 0, 0); err != nil {
		return types.Empty, err
	}
	return types.NewNumber(math.Pi), nil
}

// multiple builds CEILING and FLOOR, which round to a multiple of an
// optional significance (default 1).
func multiple(name string, fn func(float64) float64) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		if err := requireArgs(name, args, 1, 2); err != nil {
			return types.Empty, err
		}
		x, err := numberArg(name, args, 0)
		if err != nil {
			return types.Empty, err
		}
		sig, err := optNumber(name, args, 1, 1)
		if err != nil {
			return types.Empty, err
		}
		if sig == 0 {
			return types.NewNumber(0), nil
		}
		if x > 0 && sig < 0 {
			return types.Empty, types.NewNumError(name + ": significance must be positive for a positive value")
		}
		return Number(fn(x/sig) * sig)
	}
}
