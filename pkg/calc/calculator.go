// Package calc is the host-facing formula engine: it parses and evaluates
// formula text against host cells and reports ParseResults.
package calc

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/onlyadaydreamer/grid/pkg/formula"
	"github.com/onlyadaydreamer/grid/pkg/functions"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// BasePosition is the anchor used when a caller passes none.
var BasePosition = sheet.CellPosition{Sheet: "Sheet1", Row: 1, Col: 1}

// Option configures a Calculator.
type Option func(*Calculator)

// WithRegistry evaluates calls against reg instead of a fresh built-in
// registry.
func WithRegistry(reg *functions.Registry) Option {
	return func(c *Calculator) { c.functions = reg }
}

// WithFunctions registers host functions by name.
func WithFunctions(fns map[string]functions.Func) Option {
	return func(c *Calculator) {
		for name, fn := range fns {
			c.functions.Register(name, fn)
		}
	}
}

// WithClock sets the clock used by TODAY and NOW.
func WithClock(clock functions.Clock) Option {
	return func(c *Calculator) { c.clock = clock }
}

// WithCells sets the accessor used when Parse is given none.
func WithCells(cells sheet.Accessor) Option {
	return func(c *Calculator) { c.cells = cells }
}

// Calculator evaluates formulas. Parse and Dependencies are safe for
// concurrent use; the pending-value overlay is shared by all calls.
type Calculator struct {
	functions *functions.Registry
	clock     functions.Clock
	cells     sheet.Accessor
	overlay   *sheet.Overlay
}

// New creates a Calculator with the built-in function library.
func New(opts ...Option) *Calculator {
	c := &Calculator{
		functions: functions.NewRegistry(),
		clock:     functions.SystemClock{},
		overlay:   sheet.NewOverlay(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parse evaluates text at anchor and classifies the result. Empty text
// means no formula and yields empty ParseResults. A zero anchor defaults
// to BasePosition and a nil accessor to the one set with WithCells.
func (c *Calculator) Parse(text string, anchor sheet.CellPosition, cells sheet.Accessor) ParseResults {
	if strings.TrimSpace(text) == "" {
		return ParseResults{}
	}
	return Classify(c.Evaluate(text, anchor, cells))
}

// Evaluate parses and evaluates text, returning the raw value. Parse
// failures and panics inside functions come back as error values.
func (c *Calculator) Evaluate(text string, anchor sheet.CellPosition, cells sheet.Accessor) (result types.Value) {
	anchor = orBase(anchor)
	if cells == nil {
		cells = c.cells
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("calc: recovered panic evaluating %q at %s: %v", text, anchor, r)
			result = types.NewGenericError(fmt.Sprint(r)).ToValue()
		}
	}()

	node, err := formula.ParseFormula(text, anchor)
	if err != nil {
		return types.NewError(asFormulaError(err))
	}

	env := &formula.Env{
		Anchor:    anchor,
		Functions: c.functions,
		Clock:     c.clock,
	}
	if cells != nil {
		env.Cells = sheet.Layered{Overlay: c.overlay, Base: cells}
	}
	return formula.Evaluate(node, env)
}

// Dependencies lists the references text reads, in source order.
func (c *Calculator) Dependencies(text string, anchor sheet.CellPosition) ([]sheet.Reference, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return formula.ExtractDependencies(text, orBase(anchor))
}

// ResolvedDependencies is Dependencies with named ranges expanded through
// names. Names that do not resolve are dropped.
func (c *Calculator) ResolvedDependencies(text string, anchor sheet.CellPosition, names sheet.NameResolver) ([]sheet.Reference, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	node, err := formula.ParseFormula(text, orBase(anchor))
	if err != nil {
		return nil, err
	}
	refs := formula.References(node)
	if names == nil {
		return refs, nil
	}
	for _, name := range formula.NamesUsed(node) {
		if ref, ok := names.ResolveName(name); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// CacheValues merges freshly computed cells into the pending-value overlay.
// Later reads see them ahead of the host accessor.
func (c *Calculator) CacheValues(changes sheet.Changes) {
	c.overlay.Merge(changes)
}

// ClearCachedValues drops every pending value.
func (c *Calculator) ClearCachedValues() {
	c.overlay.Clear()
}

// PendingCount returns the number of cells held in the overlay.
func (c *Calculator) PendingCount() int {
	return c.overlay.Len()
}

// Register adds a host function. Its arguments' errors propagate before
// it is called.
func (c *Calculator) Register(name string, fn functions.Func) {
	c.functions.Register(name, fn)
}

// RegisterRaw adds a host function that receives error arguments as-is.
func (c *Calculator) RegisterRaw(name string, fn functions.Func) {
	c.functions.RegisterRaw(name, fn)
}

// Functions lists every callable function name.
func (c *Calculator) Functions() []string {
	return c.functions.Names()
}

func orBase(anchor sheet.CellPosition) sheet.CellPosition {
	if anchor == (sheet.CellPosition{}) {
		return BasePosition
	}
	if anchor.Sheet == "" {
		anchor.Sheet = BasePosition.Sheet
	}
	return anchor
}

func asFormulaError(err error) *types.FormulaError {
	var fe *types.FormulaError
	if errors.As(err, &fe) {
		return fe
	}
	return types.NewGenericError(err.Error())
}
