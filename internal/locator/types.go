package locator

import (
	"strconv"
	"strings"
)

// Key is the subscript of a segment: a member name or a position.
type Key struct {
	Name  string
	Index int // -1 when the key is a name.
}

// IsIndex returns true if the key addresses a member by position.
func (k Key) IsIndex() bool {
	return k.Index != -1
}

// Segment represents a single component of a locator path, e.g. `objects["Cube"]`.
type Segment struct {
	Name string
	Key  *Key
}

// NewSegment creates a segment without a subscript.
func NewSegment(name string) Segment {
	return Segment{Name: name}
}

// NewNamedSegment creates a segment that selects a collection member by name.
func NewNamedSegment(name, member string) Segment {
	return Segment{Name: name, Key: &Key{Name: member, Index: -1}}
}

// NewIndexedSegment creates a segment that selects a collection member by position.
func NewIndexedSegment(name string, index int) Segment {
	return Segment{Name: name, Key: &Key{Index: index}}
}

// HasKey returns true if the segment carries a subscript.
func (s Segment) HasKey() bool {
	return s.Key != nil
}

func (s Segment) String() string {
	if s.Key == nil {
		return s.Name
	}
	if s.Key.IsIndex() {
		return s.Name + "[" + strconv.Itoa(s.Key.Index) + "]"
	}
	return s.Name + "[" + strconv.Quote(s.Key.Name) + "]"
}

// Locator is the structured representation of a target store reference.
type Locator struct {
	Path []Segment
}

// String serializes the Locator into its canonical string representation.
func (l Locator) String() string {
	parts := make([]string, len(l.Path))
	for i, s := range l.Path {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Split separates the owning handle path from the trailing attribute name.
// The attribute segment must not carry a subscript.
func (l Locator) Split() ([]Segment, string, error) {
	if len(l.Path) < 2 {
		return nil, "", &SyntaxError{Raw: l.String(), Detail: "an attribute locator needs an owner and an attribute"}
	}
	last := l.Path[len(l.Path)-1]
	if last.HasKey() {
		return nil, "", &SyntaxError{Raw: l.String(), Detail: "attribute segment cannot be subscripted"}
	}
	return l.Path[:len(l.Path)-1], last.Name, nil
}

// Join appends the segments of other to l, producing a new locator.
func (l Locator) Join(other Locator) Locator {
	path := make([]Segment, 0, len(l.Path)+len(other.Path))
	path = append(path, l.Path...)
	path = append(path, other.Path...)
	return Locator{Path: path}
}

// Equal checks for deep equality between two locators.
func (l Locator) Equal(other Locator) bool {
	if len(l.Path) != len(other.Path) {
		return false
	}
	for i := range l.Path {
		a, b := l.Path[i], other.Path[i]
		if a.Name != b.Name || a.HasKey() != b.HasKey() {
			return false
		}
		if a.HasKey() && *a.Key != *b.Key {
			return false
		}
	}
	return true
}
