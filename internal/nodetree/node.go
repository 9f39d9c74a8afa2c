package nodetree

import (
	"github.com/zclconf/go-cty/cty"
)

// Type is the type tag of a node.
type Type string

// Structural node types. Every other type tag names the override category
// the node contributes to.
const (
	TypeTask       Type = "task"
	TypeReroute    Type = "reroute"
	TypeViewer     Type = "viewer"
	TypeRenderList Type = "render_list"
	TypeMerge      Type = "merge"
)

// IsStructural reports whether nodes of this type shape the graph instead of
// contributing override data.
func (t Type) IsStructural() bool {
	switch t {
	case TypeTask, TypeReroute, TypeViewer, TypeRenderList, TypeMerge:
		return true
	default:
		return false
	}
}

// IsPassThrough reports whether the walker looks through nodes of this type.
func (t Type) IsPassThrough() bool {
	return t == TypeReroute
}

// Node is a single vertex of the node graph.
type Node struct {
	Name   string
	Type   Type
	Label  string
	Muted  bool
	Params map[string]cty.Value
	// inputs holds, per input socket, the name of the producing node or ""
	// when the socket is unlinked.
	inputs []string
}

// NewNode creates a node with the given number of unlinked input sockets.
func NewNode(name string, typ Type, sockets int) *Node {
	return &Node{
		Name:   name,
		Type:   typ,
		Params: make(map[string]cty.Value),
		inputs: make([]string, sockets),
	}
}

// Param returns a parameter value, or a null value when absent.
func (n *Node) Param(name string) cty.Value {
	if v, ok := n.Params[name]; ok {
		return v
	}
	return cty.NullVal(cty.DynamicPseudoType)
}

// InputCount returns the number of input sockets.
func (n *Node) InputCount() int {
	return len(n.inputs)
}

// DisplayLabel returns the label, falling back to the node name.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.Name
}
