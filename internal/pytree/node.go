package pytree

import "fmt"

// NodeID addresses a node inside a Tree's arena.
type NodeID int32

// NoNode is the parent of the root node.
const NoNode NodeID = -1

// Kind is the closed set of node kinds the analyzer distinguishes.
type Kind uint8

const (
	KindOther Kind = iota
	KindCall
	KindFunctionDef
	KindAsyncFunctionDef
	KindClassDef
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindFunctionDef:
		return "def"
	case KindAsyncFunctionDef:
		return "async def"
	case KindClassDef:
		return "class"
	default:
		return "other"
	}
}

// IsDefinition reports whether the kind opens a new lexical scope.
func (k Kind) IsDefinition() bool {
	return k == KindFunctionDef || k == KindAsyncFunctionDef || k == KindClassDef
}

// Position is a source location. Line is 1-based, Column is a 0-based byte offset.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Less orders positions by line, then column.
func (p Position) Less(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// Callee describes the target of a call expression.
//
// For `open(...)` Name is "open". For `requests.get(...)` Attribute is true,
// Name is "get" and Object is "requests". Object stays empty when the object
// is not a bare identifier, as in `self.session.get(...)` or `open(p).read()`.
type Callee struct {
	Name      string
	Object    string
	Attribute bool
}

// Dotted renders the callee the way it appears in source, with "<expr>" for
// complex objects.
func (c Callee) Dotted() string {
	if !c.Attribute {
		return c.Name
	}
	if c.Object == "" {
		return "<expr>." + c.Name
	}
	return c.Object + "." + c.Name
}

// Node is a single arena element.
type Node struct {
	ID       NodeID
	Kind     Kind
	Type     string // tree-sitter grammar type
	Pos      Position
	Name     string // set for definitions
	Callee   Callee // set for calls
	Parent   NodeID
	Children []NodeID
}
