package scene

import (
	"sort"

	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/zclconf/go-cty/cty"
)

// Block is a node of the scene tree and the concrete target.Handle.
type Block struct {
	path   string
	attrs  map[string]cty.Value
	blocks map[string]*Block
	colls  map[string]*collection
}

type collection struct {
	order   []string
	members map[string]*Block
}

func newBlock(path string) *Block {
	return &Block{
		path:   path,
		attrs:  make(map[string]cty.Value),
		blocks: make(map[string]*Block),
		colls:  make(map[string]*collection),
	}
}

// Path returns the canonical locator string of the block.
func (b *Block) Path() string {
	if b.path == "" {
		return "<root>"
	}
	return b.path
}

func (b *Block) childPath(seg locator.Segment) string {
	if b.path == "" {
		return seg.String()
	}
	return b.path + "." + seg.String()
}

// Block returns the named sub-block, creating it when missing.
func (b *Block) Block(name string) *Block {
	if sub, ok := b.blocks[name]; ok {
		return sub
	}
	sub := newBlock(b.childPath(locator.NewSegment(name)))
	b.blocks[name] = sub
	return sub
}

// Member returns the named member of a collection, creating both when missing.
func (b *Block) Member(coll, name string) *Block {
	c, ok := b.colls[coll]
	if !ok {
		c = &collection{members: make(map[string]*Block)}
		b.colls[coll] = c
	}
	if m, ok := c.members[name]; ok {
		return m
	}
	m := newBlock(b.childPath(locator.NewNamedSegment(coll, name)))
	c.members[name] = m
	c.order = append(c.order, name)
	return m
}

// Collection declares an empty collection so that lookups into it report a
// missing member rather than a missing collection.
func (b *Block) Collection(coll string) *Block {
	if _, ok := b.colls[coll]; !ok {
		b.colls[coll] = &collection{members: make(map[string]*Block)}
	}
	return b
}

// Declare sets an attribute unconditionally, creating it when missing.
func (b *Block) Declare(attr string, v cty.Value) *Block {
	b.attrs[attr] = v
	return b
}

// Attr reads an attribute without going through the store.
func (b *Block) Attr(attr string) (cty.Value, bool) {
	v, ok := b.attrs[attr]
	return v, ok
}

func (b *Block) member(seg locator.Segment) (*Block, bool) {
	c, ok := b.colls[seg.Name]
	if !ok {
		return nil, false
	}
	if seg.Key.IsIndex() {
		if seg.Key.Index >= len(c.order) {
			return nil, false
		}
		return c.members[c.order[seg.Key.Index]], true
	}
	m, ok := c.members[seg.Key.Name]
	return m, ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Each visits the attributes and sub-blocks of b in name order, then the
// members of every collection in insertion order. Any callback may be nil.
func (b *Block) Each(attr func(name string, v cty.Value), block func(name string, sub *Block), member func(coll, name string, m *Block)) {
	if attr != nil {
		for _, name := range sortedKeys(b.attrs) {
			attr(name, b.attrs[name])
		}
	}
	if block != nil {
		for _, name := range sortedKeys(b.blocks) {
			block(name, b.blocks[name])
		}
	}
	if member != nil {
		for _, coll := range sortedKeys(b.colls) {
			c := b.colls[coll]
			for _, name := range c.order {
				member(coll, name, c.members[name])
			}
		}
	}
}
