package formula

import (
	"github.com/onlyadaydreamer/grid/pkg/sheet"
)

// Walk visits node and its descendants depth-first, left to right.
func Walk(node Node, fn func(Node)) {
	if node == nil {
		return
	}
	fn(node)
	switch n := node.(type) {
	case *UnaryNode:
		Walk(n.Operand, fn)
	case *BinaryNode:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *CallNode:
		for _, arg := range n.Args {
			Walk(arg, fn)
		}
	case *ArrayNode:
		for _, row := range n.Rows {
			for _, elem := range row {
				Walk(elem, fn)
			}
		}
	}
}

// ExtractDependencies parses text and returns every cell and range it
// references, qualified with the anchor's sheet when written without one.
// Nothing is evaluated and ranges are not clipped. Results are in order of
// appearance and may repeat. Named ranges are not expanded.
func ExtractDependencies(text string, anchor sheet.CellPosition) ([]sheet.Reference, error) {
	node, err := ParseFormula(text, anchor)
	if err != nil {
		return nil, err
	}
	return References(node), nil
}

// References collects the reference and range nodes of an AST.
func References(node Node) []sheet.Reference {
	var refs []sheet.Reference
	Walk(node, func(n Node) {
		switch r := n.(type) {
		case *ReferenceNode:
			refs = append(refs, r.Position)
		case *RangeNode:
			refs = append(refs, r.Range)
		}
	})
	return refs
}

// FunctionNames returns the names of every function called in node, in
// order of first appearance.
func FunctionNames(node Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(node, func(n Node) {
		if c, ok := n.(*CallNode); ok && !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	})
	return names
}

// NamesUsed returns the named ranges node refers to, in order of first
// appearance.
func NamesUsed(node Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(node, func(n Node) {
		if nn, ok := n.(*NameNode); ok && !seen[nn.Name] {
			seen[nn.Name] = true
			names = append(names, nn.Name)
		}
	})
	return names
}
