// Package recalc recomputes every formula cell of a workbook in dependency
// order.
package recalc

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/elliotchance/orderedmap/v3"
	"golang.org/x/sync/errgroup"

	"github.com/onlyadaydreamer/grid/pkg/calc"
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/store"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// Workbook is the cell source a recalculation reads and commits to.
type Workbook interface {
	sheet.Accessor
	sheet.NameResolver
	FormulaCells() []store.Cell
	CommitResults(changes sheet.Changes) int
}

// CellResult is the outcome for one formula cell.
type CellResult struct {
	Position sheet.CellPosition `json:"position"`
	calc.ParseResults
}

// Report summarizes a recalculation.
type Report struct {
	Evaluated int                  `json:"evaluated"`
	Levels    int                  `json:"levels"`
	Errors    int                  `json:"errors"`
	Circular  []sheet.CellPosition `json:"circular,omitempty"`
	Results   []CellResult         `json:"results"`
	Duration  time.Duration        `json:"duration"`
}

// Recalculator schedules formula evaluation over a workbook.
type Recalculator struct {
	calc *calc.Calculator
	book Workbook

	// Parallelism bounds concurrent evaluations within a level.
	Parallelism int
}

// New creates a Recalculator.
func New(c *calc.Calculator, book Workbook) *Recalculator {
	return &Recalculator{
		calc:        c,
		book:        book,
		Parallelism: runtime.GOMAXPROCS(0),
	}
}

type node struct {
	cell       store.Cell
	dependents []sheet.CellPosition
	pending    int
	done       bool
}

// Run evaluates every formula cell. Cells are grouped into levels whose
// members depend only on earlier levels; a level is evaluated
// concurrently and its results are cached before the next level starts.
// Cells on a dependency cycle get a CircularRef error. All results are
// committed to the workbook and the calculator's cache is cleared before
// Run returns.
func (r *Recalculator) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	graph := r.buildGraph()
	defer r.calc.ClearCachedValues()

	report := &Report{}
	committed := make(sheet.Changes)

	remaining := graph.Len()
	ready := readyCells(graph)
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("recalculation cancelled after %d levels: %w", report.Levels, err)
		}

		var results []CellResult
		if len(ready) > 0 {
			var err error
			results, err = r.evaluateLevel(ctx, ready)
			if err != nil {
				return nil, err
			}
			report.Levels++
		} else {
			results = circularResults(graph)
			if len(results) == 0 {
				return nil, fmt.Errorf("recalculation stalled with %d cells left", remaining)
			}
			for _, res := range results {
				report.Circular = append(report.Circular, res.Position)
			}
		}

		level := make(sheet.Changes)
		for _, res := range results {
			n, _ := graph.Get(res.Position)
			snap := res.Snapshot(n.cell.Text)
			level.Add(res.Position, snap)
			committed.Add(res.Position, snap)
			if res.ResultType == calc.ResultError {
				report.Errors++
			}
		}
		r.calc.CacheValues(level)
		report.Results = append(report.Results, results...)
		report.Evaluated += len(results)
		remaining -= len(results)

		ready = release(graph, results)
	}

	r.book.CommitResults(committed)
	report.Duration = time.Since(start)
	log.Printf("recalc: evaluated %d cells in %d levels (%d errors, %d circular) in %s",
		report.Evaluated, report.Levels, report.Errors, len(report.Circular), report.Duration)
	return report, nil
}

// buildGraph links every formula cell to the formula cells it reads.
func (r *Recalculator) buildGraph() *orderedmap.OrderedMap[sheet.CellPosition, *node] {
	graph := orderedmap.NewOrderedMap[sheet.CellPosition, *node]()
	bySheet := make(map[string][]sheet.CellPosition)
	for _, cell := range r.book.FormulaCells() {
		graph.Set(cell.Position, &node{cell: cell})
		bySheet[cell.Position.Sheet] = append(bySheet[cell.Position.Sheet], cell.Position)
	}

	for pos, n := range graph.AllFromFront() {
		refs, err := r.calc.ResolvedDependencies(n.cell.Text, pos, r.book)
		if err != nil {
			// Evaluation reports the parse error; the cell reads nothing.
			continue
		}
		seen := make(map[sheet.CellPosition]bool)
		for _, ref := range refs {
			for _, dep := range formulaCellsIn(ref, bySheet) {
				if seen[dep] {
					continue
				}
				seen[dep] = true
				upstream, _ := graph.Get(dep)
				upstream.dependents = append(upstream.dependents, pos)
				n.pending++
			}
		}
	}
	return graph
}

func formulaCellsIn(ref sheet.Reference, bySheet map[string][]sheet.CellPosition) []sheet.CellPosition {
	switch ref := ref.(type) {
	case sheet.CellPosition:
		for _, p := range bySheet[ref.Sheet] {
			if p == ref {
				return []sheet.CellPosition{p}
			}
		}
	case sheet.CellRange:
		var out []sheet.CellPosition
		rng := ref.Normalize()
		for _, p := range bySheet[ref.Sheet] {
			if rng.Contains(p) {
				out = append(out, p)
			}
		}
		return out
	}
	return nil
}

func readyCells(graph *orderedmap.OrderedMap[sheet.CellPosition, *node]) []*node {
	var ready []*node
	for _, n := range graph.AllFromFront() {
		if n.pending == 0 {
			ready = append(ready, n)
		}
	}
	return ready
}

func (r *Recalculator) evaluateLevel(ctx context.Context, level []*node) ([]CellResult, error) {
	results := make([]CellResult, len(level))
	g, ctx := errgroup.WithContext(ctx)
	if r.Parallelism > 0 {
		g.SetLimit(r.Parallelism)
	}
	for i, n := range level {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = CellResult{
				Position:     n.cell.Position,
				ParseResults: r.calc.Parse(n.cell.Text, n.cell.Position, r.book),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("evaluating level: %w", err)
	}
	return results, nil
}

// circularResults marks the cells that lie on a cycle among the cells not
// yet evaluated.
func circularResults(graph *orderedmap.OrderedMap[sheet.CellPosition, *node]) []CellResult {
	var results []CellResult
	for _, pos := range cycleMembers(graph) {
		results = append(results, CellResult{
			Position:     pos,
			ParseResults: calc.Classify(types.NewCircularRefError(fmt.Sprintf("%s is part of a circular reference", pos)).ToValue()),
		})
	}
	return results
}

// release marks results done and returns the dependents that became ready,
// in graph order.
func release(graph *orderedmap.OrderedMap[sheet.CellPosition, *node], results []CellResult) []*node {
	became := make(map[sheet.CellPosition]bool)
	for _, res := range results {
		n, _ := graph.Get(res.Position)
		n.done = true
		for _, dep := range n.dependents {
			d, _ := graph.Get(dep)
			d.pending--
			if d.pending == 0 && !d.done {
				became[dep] = true
			}
		}
	}

	var ready []*node
	for pos, n := range graph.AllFromFront() {
		if became[pos] && !n.done {
			ready = append(ready, n)
		}
	}
	return ready
}
