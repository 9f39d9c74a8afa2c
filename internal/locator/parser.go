package locator

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// DefaultCollection is the collection a bare object name resolves into.
const DefaultCollection = "objects"

// Parse creates a new Locator by parsing its canonical string representation.
func Parse(raw string) (Locator, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Locator{}, &SyntaxError{Raw: raw, Detail: "locator cannot be empty"}
	}

	traversal, diags := hclsyntax.ParseTraversalAbs([]byte(trimmed), "locator", hcl.InitialPos)
	if diags.HasErrors() {
		return Locator{}, &SyntaxError{Raw: raw, Detail: diags[0].Detail}
	}
	if rng := traversal.SourceRange(); rng.End.Byte != len(trimmed) {
		return Locator{}, &SyntaxError{Raw: raw, Detail: "unexpected characters after locator"}
	}

	var loc Locator
	for _, step := range traversal {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			loc.Path = append(loc.Path, NewSegment(s.Name))
		case hcl.TraverseAttr:
			loc.Path = append(loc.Path, NewSegment(s.Name))
		case hcl.TraverseIndex:
			last := &loc.Path[len(loc.Path)-1]
			if last.HasKey() {
				return Locator{}, &SyntaxError{Raw: raw, Detail: "only one subscript per segment is allowed"}
			}
			key, err := keyFromValue(raw, s.Key)
			if err != nil {
				return Locator{}, err
			}
			last.Key = key
		default:
			return Locator{}, &SyntaxError{Raw: raw, Detail: "unsupported traversal step"}
		}
	}
	return loc, nil
}

// ParseObject parses an object reference. A bare name such as `Cube` or
// `Cube.001` is shorthand for `objects["Cube.001"]`. Only input that parses
// into a subscripted member such as `objects["Cube"]` is taken as a locator.
func ParseObject(raw string) (Locator, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Locator{}, &SyntaxError{Raw: raw, Detail: "object reference cannot be empty"}
	}
	if strings.Contains(trimmed, "[") {
		if loc, err := Parse(trimmed); err == nil && loc.Path[0].HasKey() {
			return loc, nil
		}
	}
	return Locator{Path: []Segment{NewNamedSegment(DefaultCollection, trimmed)}}, nil
}

func keyFromValue(raw string, v cty.Value) (*Key, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, &SyntaxError{Raw: raw, Detail: "subscript must be a literal"}
	}
	switch v.Type() {
	case cty.String:
		return &Key{Name: v.AsString(), Index: -1}, nil
	case cty.Number:
		bf := v.AsBigFloat()
		if !bf.IsInt() {
			return nil, &SyntaxError{Raw: raw, Detail: "numeric subscript must be an integer"}
		}
		i, _ := bf.Int64()
		if i < 0 {
			return nil, &SyntaxError{Raw: raw, Detail: "numeric subscript cannot be negative"}
		}
		return &Key{Index: int(i)}, nil
	default:
		return nil, &SyntaxError{Raw: raw, Detail: "subscript must be a string or a number"}
	}
}
