package hcl

import (
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/specialistvlad/rendergraph/internal/scene"
	"github.com/zclconf/go-cty/cty"
)

// WriteScene renders the store as a single `scene` block that Load reads
// back into an equivalent store.
func WriteScene(s *scene.Store) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body().AppendNewBlock("scene", nil).Body()
	writeBlock(body, s.Root())
	return f.Bytes()
}

func writeBlock(body *hclwrite.Body, b *scene.Block) {
	b.Each(
		func(name string, v cty.Value) {
			body.SetAttributeValue(name, v)
		},
		func(name string, sub *scene.Block) {
			writeBlock(body.AppendNewBlock(name, nil).Body(), sub)
		},
		func(coll, name string, m *scene.Block) {
			writeBlock(body.AppendNewBlock(coll, []string{name}).Body(), m)
		},
	)
}
