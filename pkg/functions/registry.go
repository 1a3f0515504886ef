// Package functions implements the built-in spreadsheet function library
// and the registry hosts extend with their own functions.
package functions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// Func is the calling convention shared by built-ins and host functions.
// A returned *types.FormulaError becomes that error value; any other error
// becomes a GenericError carrying its message.
type Func func(ctx *Context, args []types.Value) (types.Value, error)

// Clock supplies the current time to TODAY and NOW.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now implements Clock.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Context is the evaluation context passed to every call.
type Context struct {
	// Anchor is the cell whose formula is being evaluated.
	Anchor sheet.CellPosition
	// Clock defaults to SystemClock when nil.
	Clock Clock
	// Refs holds, per argument, the reference it was written as, or nil
	// when the argument was not a plain cell or range reference.
	Refs []sheet.Reference
}

// Now returns the context clock's time.
func (c *Context) Now() time.Time {
	if c == nil || c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

// Ref returns the reference argument i was written as.
func (c *Context) Ref(i int) (sheet.Reference, bool) {
	if c == nil || i < 0 || i >= len(c.Refs) || c.Refs[i] == nil {
		return nil, false
	}
	return c.Refs[i], true
}

type entry struct {
	fn  Func
	raw bool
}

// Registry maps case-insensitive function names to implementations. It is
// safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]entry
}

// NewRegistry creates a registry with every built-in function registered.
func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]entry),
	}
	r.registerMath()
	r.registerStats()
	r.registerLogical()
	r.registerText()
	r.registerLookup()
	r.registerDate()
	r.registerInfo()
	r.registerWeb()
	return r
}

// Register adds fn under name. Before fn runs, the first error value among
// its arguments is returned in its place.
func (r *Registry) Register(name string, fn Func) {
	r.set(name, entry{fn: fn})
}

// RegisterRaw adds fn under name without error propagation, for functions
// that inspect or absorb error arguments.
func (r *Registry) RegisterRaw(name string, fn Func) {
	r.set(name, entry{fn: fn, raw: true})
}

func (r *Registry) set(name string, e entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToUpper(name)] = e
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[strings.ToUpper(name)]
	return ok
}

// Names returns all registered names in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes name with args. It always returns a value: an unknown name
// is a NameError and a failing function yields an error value.
func (r *Registry) Call(ctx *Context, name string, args []types.Value) types.Value {
	r.mu.RLock()
	e, ok := r.funcs[strings.ToUpper(name)]
	r.mu.RUnlock()
	if !ok {
		return types.NewNameError(fmt.Sprintf("unknown function %q", name)).ToValue()
	}

	if !e.raw {
		for _, a := range args {
			if a.IsError() {
				return a
			}
		}
	}

	v, err := e.fn(ctx, args)
	if err != nil {
		return errorValue(err)
	}
	return v
}

func errorValue(err error) types.Value {
	var fe *types.FormulaError
	if errors.As(err, &fe) {
		return fe.ToValue()
	}
	return types.NewGenericError(err.Error()).ToValue()
}
