package nodetree

import (
	"fmt"
	"sync"
)

// Graph is the read interface the walker consumes.
type Graph interface {
	// Node looks a node up by its unique name.
	Node(name string) (*Node, bool)
	// Source follows an input socket of n to the producing node.
	Source(n *Node, socket int) (*Node, bool)
}

// Annotator attaches warning messages to nodes.
type Annotator interface {
	SetWarning(node, msg string)
	ClearWarning(node string)
}

// Tree is the node graph of one document.
type Tree struct {
	nodes map[string]*Node
	order []string

	mu       sync.RWMutex
	warnings map[string]string
}

var (
	_ Graph     = (*Tree)(nil)
	_ Annotator = (*Tree)(nil)
)

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		nodes:    make(map[string]*Node),
		warnings: make(map[string]string),
	}
}

// Add inserts a node. Node names are unique within a tree.
func (t *Tree) Add(n *Node) error {
	if n.Name == "" {
		return fmt.Errorf("node name cannot be empty")
	}
	if _, exists := t.nodes[n.Name]; exists {
		return fmt.Errorf("duplicate node name %q", n.Name)
	}
	t.nodes[n.Name] = n
	t.order = append(t.order, n.Name)
	return nil
}

// Link connects the output of from to input socket of to. A socket holds at
// most one link; linking an occupied socket replaces the previous link.
func (t *Tree) Link(from, to string, socket int) error {
	if _, ok := t.nodes[from]; !ok {
		return fmt.Errorf("link source %q not found", from)
	}
	dst, ok := t.nodes[to]
	if !ok {
		return fmt.Errorf("link destination %q not found", to)
	}
	if socket < 0 {
		return fmt.Errorf("invalid socket index %d on %q", socket, to)
	}
	for len(dst.inputs) <= socket {
		dst.inputs = append(dst.inputs, "")
	}
	dst.inputs[socket] = from
	return nil
}

// Node looks a node up by name.
func (t *Tree) Node(name string) (*Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// Source follows an input socket to the producing node.
func (t *Tree) Source(n *Node, socket int) (*Node, bool) {
	if n == nil || socket < 0 || socket >= len(n.inputs) || n.inputs[socket] == "" {
		return nil, false
	}
	src, ok := t.nodes[n.inputs[socket]]
	return src, ok
}

// Nodes returns all nodes in insertion order.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.nodes[name])
	}
	return out
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return len(t.order)
}

// SetWarning annotates a node with a warning. Unknown names are ignored,
// since messages may be addressed to nodes outside this tree.
func (t *Tree) SetWarning(node, msg string) {
	if _, ok := t.nodes[node]; !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings[node] = msg
}

// ClearWarning removes the warning of a node.
func (t *Tree) ClearWarning(node string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.warnings, node)
}

// Warning returns the current warning of a node.
func (t *Tree) Warning(node string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	msg, ok := t.warnings[node]
	return msg, ok
}

// Warnings returns a copy of all current warnings keyed by node name.
func (t *Tree) Warnings() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.warnings))
	for k, v := range t.warnings {
		out[k] = v
	}
	return out
}
