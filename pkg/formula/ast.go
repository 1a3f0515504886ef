package formula

import (
	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// Node is the interface for all formula AST nodes. Nodes form a tree; no
// node is shared between parents.
type Node interface {
	nodeType() string
}

// LiteralNode is a constant number, string, boolean or error literal.
type LiteralNode struct {
	Value types.Value
}

func (n *LiteralNode) nodeType() string { return "Literal" }

// ReferenceNode is a single-cell reference, already qualified with a sheet.
type ReferenceNode struct {
	Position sheet.CellPosition
	Image    string
}

func (n *ReferenceNode) nodeType() string { return "Reference" }

// RangeNode is a rectangular range reference. The range is kept as written;
// normalization and clipping happen at evaluation time.
type RangeNode struct {
	Range sheet.CellRange
	Image string
}

func (n *RangeNode) nodeType() string { return "Range" }

// NameNode is a bare identifier resolved as a named range.
type NameNode struct {
	Name string
}

func (n *NameNode) nodeType() string { return "Name" }

// UnaryNode is prefix + / - or postfix %.
type UnaryNode struct {
	Op      TokenType
	Operand Node
}

func (n *UnaryNode) nodeType() string { return "Unary" }

// BinaryNode is an arithmetic, concatenation or comparison operation.
type BinaryNode struct {
	Op    TokenType
	Left  Node
	Right Node
}

func (n *BinaryNode) nodeType() string { return "Binary" }

// CallNode is a function call. Name is upper-cased.
type CallNode struct {
	Name string
	Args []Node
}

func (n *CallNode) nodeType() string { return "Call" }

// ArrayNode is an array literal such as {1, 2; 3, 4}. All rows have the same
// length.
type ArrayNode struct {
	Rows [][]Node
}

func (n *ArrayNode) nodeType() string { return "Array" }
