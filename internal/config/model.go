package config

import (
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/nodetree"
	"github.com/specialistvlad/rendergraph/internal/scene"
	"github.com/zclconf/go-cty/cty"
)

// Document is the merged content of all loaded sources.
type Document struct {
	// Path is the backing file path of the host document, "" when unsaved.
	Path  string
	Nodes []*Node
	Texts []*Text
	Scene *Block
	// Sources lists the files the document was loaded from.
	Sources []string
}

// Node describes one node of the graph.
type Node struct {
	Name   string
	Type   string
	Label  string
	Muted  bool
	Params map[string]cty.Value
	// Inputs names the producing node per input socket; "" means unlinked.
	Inputs []string
	// DeclRange locates the node in its source, for error messages.
	DeclRange string
}

// Text is a named script text.
type Text struct {
	Name string
	Body string
}

// Block is a scene block: attributes, named sub-blocks and collection members.
type Block struct {
	Attrs   map[string]cty.Value
	Blocks  map[string]*Block
	Members []*Member
}

// Member is a named block inside a collection.
type Member struct {
	Collection string
	Name       string
	Block      *Block
}

// NewBlock creates an empty block.
func NewBlock() *Block {
	return &Block{Attrs: make(map[string]cty.Value), Blocks: make(map[string]*Block)}
}

// Merge folds other into b. Attributes of other win; sub-blocks and members
// with the same name are merged recursively.
func (b *Block) Merge(other *Block) {
	if other == nil {
		return
	}
	for k, v := range other.Attrs {
		b.Attrs[k] = v
	}
	for name, sub := range other.Blocks {
		if existing, ok := b.Blocks[name]; ok {
			existing.Merge(sub)
			continue
		}
		b.Blocks[name] = sub
	}
	for _, m := range other.Members {
		if existing := b.member(m.Collection, m.Name); existing != nil {
			existing.Block.Merge(m.Block)
			continue
		}
		b.Members = append(b.Members, m)
	}
}

func (b *Block) member(coll, name string) *Member {
	for _, m := range b.Members {
		if m.Collection == coll && m.Name == name {
			return m
		}
	}
	return nil
}

// Tree builds the node graph of the document.
func (d *Document) Tree() (*nodetree.Tree, error) {
	tr := nodetree.New()
	for _, n := range d.Nodes {
		node := nodetree.NewNode(n.Name, nodetree.Type(n.Type), len(n.Inputs))
		node.Label = n.Label
		node.Muted = n.Muted
		for k, v := range n.Params {
			node.Params[k] = v
		}
		if err := tr.Add(node); err != nil {
			return nil, fmt.Errorf("%s: %w", n.DeclRange, err)
		}
	}
	for _, n := range d.Nodes {
		for socket, from := range n.Inputs {
			if from == "" {
				continue
			}
			if err := tr.Link(from, n.Name, socket); err != nil {
				return nil, fmt.Errorf("%s: node %q input %d: %w", n.DeclRange, n.Name, socket, err)
			}
		}
	}
	return tr, nil
}

// Store builds the target store of the document on top of the default scene.
func (d *Document) Store() *scene.Store {
	s := scene.NewDefault()
	root := s.Root()
	root.Block("document").Declare("filepath", cty.StringVal(d.Path))
	if d.Scene != nil {
		apply(root, d.Scene)
	}
	for _, t := range d.Texts {
		root.Member("texts", t.Name).Declare("body", cty.StringVal(t.Body))
	}
	return s
}

func apply(dst *scene.Block, src *Block) {
	for k, v := range src.Attrs {
		dst.Declare(k, v)
	}
	for name, sub := range src.Blocks {
		apply(dst.Block(name), sub)
	}
	for _, m := range src.Members {
		apply(dst.Member(m.Collection, m.Name), m.Block)
	}
}
