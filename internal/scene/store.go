package scene

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/specialistvlad/rendergraph/internal/target"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Store is a thread-safe in-memory target store.
type Store struct {
	mu     sync.RWMutex
	root   *Block
	writes int
}

var _ target.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{root: newBlock("")}
}

// Root returns the root block for building the scene. Building is not
// synchronized and must happen before the store is shared.
func (s *Store) Root() *Block {
	return s.root
}

// Resolve walks the given segments from the store root.
func (s *Store) Resolve(path []locator.Segment) (target.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur := s.root
	for _, seg := range path {
		var next *Block
		var ok bool
		if seg.HasKey() {
			next, ok = cur.member(seg)
		} else {
			next, ok = cur.blocks[seg.Name]
		}
		if !ok {
			return nil, target.NotFoundError(cur.childPath(seg))
		}
		cur = next
	}
	return cur, nil
}

// Get reads an attribute of a handle.
func (s *Store) Get(h target.Handle, attr string) (cty.Value, error) {
	b, err := asBlock(h)
	if err != nil {
		return cty.NilVal, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := b.attrs[attr]
	if !ok {
		return cty.NilVal, fmt.Errorf("%w: %s.%s", target.ErrNoAttribute, b.Path(), attr)
	}
	return v, nil
}

// Set writes an existing attribute, converting the value to the attribute's
// current type.
func (s *Store) Set(h target.Handle, attr string, v cty.Value) error {
	b, err := asBlock(h)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := b.attrs[attr]
	if !ok {
		return fmt.Errorf("%w: %s.%s", target.ErrNoAttribute, b.Path(), attr)
	}
	if ty := cur.Type(); ty != cty.DynamicPseudoType && !v.Type().Equals(ty) {
		converted, err := convert.Convert(v, ty)
		if err != nil {
			return fmt.Errorf("%w: %s.%s expects %s: %v", target.ErrTypeMismatch, b.Path(), attr, ty.FriendlyName(), err)
		}
		v = converted
	}
	b.attrs[attr] = v
	s.writes++
	return nil
}

// Members enumerates the member names of a collection in insertion order.
func (s *Store) Members(h target.Handle, coll string) ([]string, error) {
	b, err := asBlock(h)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := b.colls[coll]
	if !ok {
		return nil, target.NotFoundError(b.childPath(locator.NewSegment(coll)))
	}
	return append([]string(nil), c.order...), nil
}

// Writes reports the number of successful Set calls since creation.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Snapshot renders the whole scene as plain Go values suitable for JSON or
// YAML encoding.
func (s *Store) Snapshot() (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotBlock(s.root)
}

func snapshotBlock(b *Block) (map[string]any, error) {
	out := make(map[string]any, len(b.attrs)+len(b.blocks)+len(b.colls))
	for _, name := range sortedKeys(b.attrs) {
		plain, err := plainValue(b.attrs[name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", b.Path(), name, err)
		}
		out[name] = plain
	}
	for _, name := range sortedKeys(b.blocks) {
		sub, err := snapshotBlock(b.blocks[name])
		if err != nil {
			return nil, err
		}
		out[name] = sub
	}
	for _, name := range sortedKeys(b.colls) {
		c := b.colls[name]
		members := make(map[string]any, len(c.order))
		for _, m := range c.order {
			sub, err := snapshotBlock(c.members[m])
			if err != nil {
				return nil, err
			}
			members[m] = sub
		}
		out[name] = members
	}
	return out, nil
}

func plainValue(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	raw, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func asBlock(h target.Handle) (*Block, error) {
	b, ok := h.(*Block)
	if !ok || b == nil {
		return nil, fmt.Errorf("%w: foreign handle %T", target.ErrNotFound, h)
	}
	return b, nil
}
