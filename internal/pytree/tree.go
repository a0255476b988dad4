package pytree

// Tree is a parsed Python module flattened into an arena.
// Nodes are stored in pre-order, so a node's index is always greater than
// its parent's.
type Tree struct {
	Path     string
	Nodes    []Node
	Root     NodeID
	Comments map[int][]Comment // keyed by line
}

// Comment is a `#` comment. Standalone comments are alone on their line.
type Comment struct {
	Text       string
	Standalone bool
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// Node returns the node with the given id.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Walk visits the subtree rooted at id in pre-order. Returning false from fn
// skips the children of the current node.
func (t *Tree) Walk(id NodeID, fn func(n *Node) bool) {
	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.Nodes[cur]
		if !fn(n) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Find returns the ids of all nodes satisfying match, in pre-order.
func (t *Tree) Find(match func(n *Node) bool) []NodeID {
	var ids []NodeID
	for i := range t.Nodes {
		if match(&t.Nodes[i]) {
			ids = append(ids, t.Nodes[i].ID)
		}
	}
	return ids
}

// AsyncFunctions returns every `async def` in the module at any depth,
// including methods and functions nested in other functions.
func (t *Tree) AsyncFunctions() []NodeID {
	return t.Find(func(n *Node) bool { return n.Kind == KindAsyncFunctionDef })
}
