package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// Reserved node attributes. Every other attribute is a parameter.
const (
	attrLabel  = "label"
	attrMuted  = "muted"
	attrInputs = "inputs"

	linkRoot = "node"
)

func decodeNode(b *nodeBlock) (*config.Node, error) {
	n := &config.Node{
		Name:      b.Name,
		Type:      b.Type,
		Params:    make(map[string]cty.Value),
		DeclRange: declRange(b.Body).String(),
	}

	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, diags
	}
	for name, attr := range attrs {
		switch name {
		case attrInputs:
			inputs, err := decodeInputs(attr.Expr)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", b.Name, err)
			}
			n.Inputs = inputs
		case attrLabel:
			if diags := gohcl.DecodeExpression(attr.Expr, nil, &n.Label); diags.HasErrors() {
				return nil, diags
			}
		case attrMuted:
			if diags := gohcl.DecodeExpression(attr.Expr, nil, &n.Muted); diags.HasErrors() {
				return nil, diags
			}
		default:
			v, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, diags
			}
			n.Params[name] = v
		}
	}
	return n, nil
}

// decodeInputs reads a static list with one element per input socket. Each
// element is either node.<name> or null for an unlinked socket.
func decodeInputs(expr hcl.Expression) ([]string, error) {
	elems, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil, diags
	}
	inputs := make([]string, len(elems))
	for i, elem := range elems {
		name, err := linkTarget(elem)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		inputs[i] = name
	}
	return inputs, nil
}

func linkTarget(expr hcl.Expression) (string, error) {
	if trav, diags := hcl.AbsTraversalForExpr(expr); !diags.HasErrors() {
		if len(trav) == 2 && trav.RootName() == linkRoot {
			if attr, ok := trav[1].(hcl.TraverseAttr); ok {
				return attr.Name, nil
			}
		}
		return "", fmt.Errorf("%s: links must have the form %s.<name>", expr.Range(), linkRoot)
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return "", diags
	}
	if !v.IsNull() {
		return "", fmt.Errorf("%s: links must be %s.<name> or null", expr.Range(), linkRoot)
	}
	return "", nil
}

// decodeScene turns a scene body into a block tree. Unlabeled blocks are
// sub-blocks; blocks with one label are named members of a collection.
func decodeScene(body hcl.Body) (*config.Block, error) {
	sb, ok := body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("%s: scene blocks require native HCL syntax", body.MissingItemRange())
	}
	return decodeSceneBody(sb)
}

func decodeSceneBody(body *hclsyntax.Body) (*config.Block, error) {
	b := config.NewBlock()
	for name, attr := range body.Attributes {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, diags
		}
		b.Attrs[name] = v
	}
	for _, blk := range body.Blocks {
		sub, err := decodeSceneBody(blk.Body)
		if err != nil {
			return nil, err
		}
		wrap := config.NewBlock()
		switch len(blk.Labels) {
		case 0:
			wrap.Blocks[blk.Type] = sub
		case 1:
			wrap.Members = []*config.Member{{Collection: blk.Type, Name: blk.Labels[0], Block: sub}}
		default:
			return nil, fmt.Errorf("%s: block %q takes at most one label", blk.DefRange(), blk.Type)
		}
		b.Merge(wrap)
	}
	return b, nil
}

func declRange(body hcl.Body) hcl.Range {
	if sb, ok := body.(*hclsyntax.Body); ok {
		return sb.SrcRange
	}
	return body.MissingItemRange()
}
