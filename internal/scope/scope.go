// Package scope decides which nodes of an async function body belong to it.
//
// Nested definitions open their own scope. Their subtrees are excluded from
// the enclosing async function, so each call is attributed to exactly one
// function: the nearest enclosing one.
package scope

import (
	"github.com/scan-io-git/blockscan/internal/pytree"
)

// NodeSet is a bitset over the node ids of one tree.
type NodeSet struct {
	words []uint64
}

// NewNodeSet returns a set sized for n nodes.
func NewNodeSet(n int) NodeSet {
	return NodeSet{words: make([]uint64, (n+63)/64)}
}

// Add marks id as a member. Ids outside the sized range are ignored.
func (s NodeSet) Add(id pytree.NodeID) {
	if id < 0 || int(id)/64 >= len(s.words) {
		return
	}
	s.words[id/64] |= 1 << (uint(id) % 64)
}

// Has reports whether id is a member.
func (s NodeSet) Has(id pytree.NodeID) bool {
	if id < 0 || int(id)/64 >= len(s.words) {
		return false
	}
	return s.words[id/64]&(1<<(uint(id)%64)) != 0
}

// Len counts the members.
func (s NodeSet) Len() int {
	n := 0
	for _, w := range s.words {
		for ; w != 0; w &= w - 1 {
			n++
		}
	}
	return n
}

// Scope is one async function together with the nodes excluded from it.
type Scope struct {
	Func     pytree.NodeID
	Name     string
	Excluded NodeSet
}

// Resolve computes the scope of the async function fn. Every nested
// function, async function or class is excluded along with its whole subtree.
func Resolve(tree *pytree.Tree, fn pytree.NodeID) Scope {
	s := Scope{
		Func:     fn,
		Name:     tree.Node(fn).Name,
		Excluded: NewNodeSet(tree.Len()),
	}
	tree.Walk(fn, func(n *pytree.Node) bool {
		if n.ID == fn || !n.Kind.IsDefinition() {
			return true
		}
		tree.Walk(n.ID, func(inner *pytree.Node) bool {
			s.Excluded.Add(inner.ID)
			return true
		})
		return false
	})
	return s
}

// Contains reports whether id is analyzed as part of this scope.
func (s Scope) Contains(tree *pytree.Tree, id pytree.NodeID) bool {
	if s.Excluded.Has(id) {
		return false
	}
	for cur := id; cur != pytree.NoNode; cur = tree.Node(cur).Parent {
		if cur == s.Func {
			return true
		}
	}
	return false
}

// EnclosingAsync returns the nearest async function lexically containing id,
// or NoNode when a sync function or class boundary comes first.
// A definition node is not its own encloser; decorators and default
// arguments of a def are treated as part of it.
func EnclosingAsync(tree *pytree.Tree, id pytree.NodeID) pytree.NodeID {
	for cur := tree.Node(id).Parent; cur != pytree.NoNode; cur = tree.Node(cur).Parent {
		switch tree.Node(cur).Kind {
		case pytree.KindAsyncFunctionDef:
			return cur
		case pytree.KindFunctionDef, pytree.KindClassDef:
			return pytree.NoNode
		}
	}
	return pytree.NoNode
}
