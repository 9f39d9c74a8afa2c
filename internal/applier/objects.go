package applier

import (
	"context"
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/specialistvlad/rendergraph/internal/target"
	"github.com/specialistvlad/rendergraph/internal/taskdata"
	"github.com/zclconf/go-cty/cty"
)

func applyProperty(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.Property, func(r taskdata.Record) error {
		loc, err := p.cmp.Locators().Parse(r.String("full_data_path"))
		if err == nil {
			err = p.setStrict(ctx, loc, r.Value("value"))
		}
		if err != nil {
			return fmt.Errorf("full data path error: %w", err)
		}
		return nil
	})
}

// setStrict applies a value to a user supplied attribute locator. Unlike
// built-in settings, an attribute missing from the target is a node failure:
// the user named it explicitly.
func (p *Pass) setStrict(ctx context.Context, loc locator.Locator, v cty.Value) error {
	h, attr, err := target.Lookup(p.store(), loc)
	if err != nil {
		return err
	}
	if _, err := p.store().Get(h, attr); err != nil {
		return err
	}
	return p.set(ctx, h, attr, v)
}

func applyObjectDisplay(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.ObjectDisplay, func(r taskdata.Record) error {
		_, h, err := p.object(r.String("object"))
		if err != nil {
			return err
		}
		for _, av := range fromRecord(r, "hide_viewport", "hide_viewport", "hide_render", "hide_render") {
			if err := p.set(ctx, h, av.attr, av.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyObjectPSR(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.ObjectPSR, func(r taskdata.Record) error {
		_, h, err := p.object(r.String("object"))
		if err != nil {
			return err
		}
		for _, av := range fromRecord(r, "location", "location", "scale", "scale", "rotation", "rotation_euler") {
			if err := p.set(ctx, h, av.attr, av.value); err != nil {
				return err
			}
		}
		return nil
	})
}

func applyObjectData(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.ObjectData, func(r taskdata.Record) error {
		obj, _, err := p.object(r.String("object"))
		if err != nil {
			return err
		}
		rel, err := p.cmp.Locators().Parse(r.String("data_path"))
		if err != nil {
			return err
		}
		data := locator.Locator{Path: []locator.Segment{locator.NewSegment("data")}}
		return p.setStrict(ctx, obj.Join(data).Join(rel), r.Value("value"))
	})
}

func applyObjectMaterial(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.ObjectMaterial, func(r taskdata.Record) error {
		obj, _, err := p.object(r.String("object"))
		if err != nil {
			return err
		}
		idx, err := r.Int("slot_index")
		if err != nil {
			return err
		}
		if idx < 0 {
			return fmt.Errorf("material slot index %d is negative", idx)
		}
		slot := locator.Locator{Path: []locator.Segment{locator.NewIndexedSegment("material_slots", idx)}}
		h, err := p.store().Resolve(obj.Join(slot).Path)
		if err != nil {
			return fmt.Errorf("material slot: %w", err)
		}

		name := r.String("new_material")
		if cur, err := p.store().Get(h, "material"); err == nil && !cur.IsNull() && cur.Type() == cty.String && cur.AsString() == name {
			return nil
		}
		if err := p.member("materials", name); err != nil {
			return fmt.Errorf("material: %w", err)
		}
		return p.set(ctx, h, "material", cty.StringVal(name))
	})
}

// applyObjectModifier applies a parameter of a named modifier. The data path
// must start with a modifiers["<name>"] segment followed by the attribute.
func applyObjectModifier(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.ObjectModifier, func(r taskdata.Record) error {
		obj, _, err := p.object(r.String("object"))
		if err != nil {
			return err
		}
		raw := r.String("data_path")
		rel, err := p.cmp.Locators().Parse(raw)
		if err != nil {
			return err
		}
		if len(rel.Path) < 2 || rel.Path[0].Name != "modifiers" || !rel.Path[0].HasKey() || rel.Path[0].Key.IsIndex() {
			return fmt.Errorf(`modifier data path %q must look like modifiers["name"].attribute`, raw)
		}
		return p.setStrict(ctx, obj.Join(rel), r.Value("value"))
	})
}
