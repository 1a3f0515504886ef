package recalc

import (
	"github.com/elliotchance/orderedmap/v3"

	"github.com/onlyadaydreamer/grid/pkg/sheet"
)

// cycleMembers returns the unevaluated cells that lie on a cycle: members
// of a strongly connected component with more than one cell, or cells that
// read themselves. Cells that only depend on a cycle are not included.
func cycleMembers(graph *orderedmap.OrderedMap[sheet.CellPosition, *node]) []sheet.CellPosition {
	t := &tarjan{
		graph:   graph,
		index:   make(map[sheet.CellPosition]int),
		low:     make(map[sheet.CellPosition]int),
		onStack: make(map[sheet.CellPosition]bool),
		member:  make(map[sheet.CellPosition]bool),
	}
	for pos, n := range graph.AllFromFront() {
		if n.done {
			continue
		}
		if _, visited := t.index[pos]; !visited {
			t.connect(pos)
		}
	}

	var out []sheet.CellPosition
	for pos := range graph.AllFromFront() {
		if t.member[pos] {
			out = append(out, pos)
		}
	}
	return out
}

type tarjan struct {
	graph   *orderedmap.OrderedMap[sheet.CellPosition, *node]
	next    int
	index   map[sheet.CellPosition]int
	low     map[sheet.CellPosition]int
	stack   []sheet.CellPosition
	onStack map[sheet.CellPosition]bool
	member  map[sheet.CellPosition]bool
}

func (t *tarjan) connect(pos sheet.CellPosition) {
	t.index[pos] = t.next
	t.low[pos] = t.next
	t.next++
	t.stack = append(t.stack, pos)
	t.onStack[pos] = true

	n, _ := t.graph.Get(pos)
	selfLoop := false
	for _, dep := range n.dependents {
		d, _ := t.graph.Get(dep)
		if d.done {
			continue
		}
		if dep == pos {
			selfLoop = true
		}
		if _, visited := t.index[dep]; !visited {
			t.connect(dep)
			t.low[pos] = min(t.low[pos], t.low[dep])
		} else if t.onStack[dep] {
			t.low[pos] = min(t.low[pos], t.index[dep])
		}
	}

	if t.low[pos] != t.index[pos] {
		return
	}
	var component []sheet.CellPosition
	for {
		top := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[top] = false
		component = append(component, top)
		if top == pos {
			break
		}
	}
	if len(component) > 1 || selfLoop {
		for _, p := range component {
			t.member[p] = true
		}
	}
}
