// Package pytree turns Python source into a flat, index-addressed syntax tree.
//
// Parsing is delegated to the tree-sitter Python grammar. The concrete syntax
// tree is then reduced to the handful of node kinds the analyzer needs and
// stored in an arena so that node identity is a plain integer.
package pytree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// DefaultMaxFileSize bounds the size of a single source file.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var ErrFileTooLarge = errors.New("file exceeds maximum size")

// ParseError is returned for malformed source.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Msg)
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxFileSize sets the maximum accepted source size in bytes.
func WithMaxFileSize(n int64) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxFileSize = n
		}
	}
}

// Parser produces Trees from Python source. It is safe for concurrent use;
// every call creates its own tree-sitter parser.
type Parser struct {
	maxFileSize int64
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{maxFileSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses src, attributing positions and errors to path.
// Invalid UTF-8 sequences are replaced rather than rejected.
func (p *Parser) Parse(ctx context.Context, path string, src []byte) (*Tree, error) {
	if int64(len(src)) > p.maxFileSize {
		return nil, fmt.Errorf("%s: %w (%d > %d bytes)", path, ErrFileTooLarge, len(src), p.maxFileSize)
	}
	src = bytes.ToValidUTF8(src, []byte("\uFFFD"))

	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tsTree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse of %s failed: %w", path, err)
	}
	defer tsTree.Close()

	root := tsTree.RootNode()
	if root == nil {
		return nil, &ParseError{Path: path, Line: 1, Msg: "empty syntax tree"}
	}
	if root.HasError() {
		return nil, syntaxError(path, root)
	}

	b := &builder{
		src: src,
		tree: &Tree{
			Path:     path,
			Comments: make(map[int][]Comment),
		},
	}
	b.tree.Root = b.convert(root, NoNode)
	return b.tree, nil
}

// syntaxError locates the first ERROR or MISSING node in document order.
func syntaxError(path string, root *sitter.Node) *ParseError {
	bad := firstError(root)
	if bad == nil {
		return &ParseError{Path: path, Line: 1, Msg: "invalid syntax"}
	}
	pt := bad.StartPoint()
	msg := "invalid syntax"
	if bad.IsMissing() {
		msg = fmt.Sprintf("invalid syntax: missing %q", bad.Type())
	}
	return &ParseError{Path: path, Line: int(pt.Row) + 1, Column: int(pt.Column), Msg: msg}
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if found := firstError(n.Child(i)); found != nil {
			return found
		}
	}
	return nil
}

type builder struct {
	src  []byte
	tree *Tree
}

func (b *builder) add(n Node) NodeID {
	id := NodeID(len(b.tree.Nodes))
	n.ID = id
	b.tree.Nodes = append(b.tree.Nodes, n)
	if n.Parent != NoNode {
		parent := &b.tree.Nodes[n.Parent]
		parent.Children = append(parent.Children, id)
	}
	return id
}

// convert appends n and its named descendants to the arena and returns the
// id of n. Comments are recorded in Tree.Comments and do not become nodes.
func (b *builder) convert(n *sitter.Node, parent NodeID) NodeID {
	switch n.Type() {
	case "comment":
		line := int(n.StartPoint().Row) + 1
		b.tree.Comments[line] = append(b.tree.Comments[line], Comment{
			Text:       n.Content(b.src),
			Standalone: b.startsLine(n),
		})
		return NoNode
	case "decorated_definition":
		return b.convertDecorated(n, parent)
	}

	id := b.add(b.describe(n, parent))
	b.convertChildren(n, id, nil)
	return id
}

// convertDecorated folds a decorated_definition into its definition so that,
// as in Python's own ast, the decorators are children of the def or class.
func (b *builder) convertDecorated(n *sitter.Node, parent NodeID) NodeID {
	def := n.ChildByFieldName("definition")
	if def == nil {
		id := b.add(b.describe(n, parent))
		b.convertChildren(n, id, nil)
		return id
	}

	id := b.add(b.describe(def, parent))
	b.convertChildren(n, id, def)
	b.convertChildren(def, id, nil)
	return id
}

func (b *builder) convertChildren(n *sitter.Node, parent NodeID, skip *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if skip != nil && sameNode(child, skip) {
			continue
		}
		b.convert(child, parent)
	}
}

func (b *builder) describe(n *sitter.Node, parent NodeID) Node {
	pt := n.StartPoint()
	node := Node{
		Kind:   KindOther,
		Type:   n.Type(),
		Pos:    Position{Line: int(pt.Row) + 1, Column: int(pt.Column)},
		Parent: parent,
	}

	switch n.Type() {
	case "call":
		node.Kind = KindCall
		node.Callee = b.callee(n.ChildByFieldName("function"))
	case "function_definition":
		node.Kind = KindFunctionDef
		if isAsync(n) {
			node.Kind = KindAsyncFunctionDef
		}
		node.Name = b.content(n.ChildByFieldName("name"))
	case "class_definition":
		node.Kind = KindClassDef
		node.Name = b.content(n.ChildByFieldName("name"))
	}
	return node
}

// isAsync reports whether a function_definition carries the async keyword,
// which tree-sitter-python exposes as an anonymous leading child.
func isAsync(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "async":
			return true
		case "def":
			return false
		}
	}
	return false
}

func (b *builder) callee(fn *sitter.Node) Callee {
	fn = unparen(fn)
	if fn == nil {
		return Callee{}
	}
	switch fn.Type() {
	case "identifier":
		return Callee{Name: b.content(fn)}
	case "attribute":
		c := Callee{Attribute: true, Name: b.content(fn.ChildByFieldName("attribute"))}
		if obj := unparen(fn.ChildByFieldName("object")); obj != nil && obj.Type() == "identifier" {
			c.Object = b.content(obj)
		}
		return c
	}
	return Callee{}
}

func (b *builder) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Content(b.src))
}

// startsLine reports whether only whitespace precedes n on its line.
func (b *builder) startsLine(n *sitter.Node) bool {
	start := int(n.StartByte())
	lineStart := bytes.LastIndexByte(b.src[:start], '\n') + 1
	return len(bytes.TrimSpace(b.src[lineStart:start])) == 0
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// unparen strips redundant parentheses, which Python's ast does not keep.
func unparen(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" && n.NamedChildCount() == 1 {
		n = n.NamedChild(0)
	}
	return n
}
