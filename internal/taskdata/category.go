package taskdata

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Category names a class of override data. The type tag of a contributing
// node is its category.
type Category string

const (
	Camera          Category = "camera"
	ColorManagement Category = "color_management"
	Resolution      Category = "resolution"
	RenderEngine    Category = "render_engine"
	CyclesLightPath Category = "cycles_light_path"
	Octane          Category = "octane"
	LuxcoreHalt     Category = "luxcore_halt"
	Property        Category = "property"
	ObjectDisplay   Category = "object_display"
	ObjectPSR       Category = "object_psr"
	ObjectData      Category = "object_data"
	ObjectMaterial  Category = "object_material"
	ObjectModifier  Category = "object_modifier"
	FrameRange      Category = "frame_range"
	ViewLayer       Category = "view_layer"
	ImageFormat     Category = "image_format"
	RenderSlot      Category = "render_slot"
	World           Category = "world"
	SSMLightStudio  Category = "ssm_light_studio"
	Version         Category = "version"
	Scripts         Category = "scripts"
	ScriptsFile     Category = "scripts_file"
	Path            Category = "path"
	ViewLayerPasses Category = "view_layer_passes"
	Email           Category = "email"
)

type field struct {
	name     string
	ty       cty.Type
	optional bool
	// normalize, when set, replaces type conversion.
	normalize func(cty.Value) (cty.Value, error)
}

type schema struct {
	fields []field
	// open schemas accept any parameter name with any value.
	open bool
}

func req(name string, ty cty.Type) field { return field{name: name, ty: ty} }
func opt(name string, ty cty.Type) field { return field{name: name, ty: ty, optional: true} }
func vec(name string) field {
	return field{name: name, ty: cty.DynamicPseudoType, optional: true, normalize: vector3}
}

var schemas = map[Category]schema{
	Camera:          {fields: []field{req("camera", cty.String)}},
	ColorManagement: {fields: []field{req("exposure", cty.Number), req("gamma", cty.Number), opt("view_transform", cty.String), opt("look", cty.String)}},
	Resolution:      {fields: []field{req("res_x", cty.Number), req("res_y", cty.Number), req("res_scale", cty.Number)}},
	RenderEngine:    {fields: []field{req("engine", cty.String), opt("samples", cty.Number)}},
	CyclesLightPath: {open: true},
	Octane:          {open: true},
	LuxcoreHalt:     {fields: []field{req("use_samples", cty.Bool), req("use_time", cty.Bool), opt("samples", cty.Number), opt("time", cty.Number)}},
	Property:        {fields: []field{req("full_data_path", cty.String), req("value", cty.DynamicPseudoType)}},
	ObjectDisplay:   {fields: []field{req("object", cty.String), req("hide_viewport", cty.Bool), req("hide_render", cty.Bool)}},
	ObjectPSR:       {fields: []field{req("object", cty.String), vec("location"), vec("scale"), vec("rotation")}},
	ObjectData:      {fields: []field{req("object", cty.String), req("data_path", cty.String), req("value", cty.DynamicPseudoType)}},
	ObjectMaterial:  {fields: []field{req("object", cty.String), req("slot_index", cty.Number), req("new_material", cty.String)}},
	ObjectModifier:  {fields: []field{req("object", cty.String), req("data_path", cty.String), req("value", cty.DynamicPseudoType)}},
	FrameRange:      {fields: []field{req("frame_start", cty.Number), req("frame_end", cty.Number), req("frame_step", cty.Number)}},
	ViewLayer:       {fields: []field{req("view_layer", cty.String)}},
	ImageFormat: {fields: []field{
		req("file_format", cty.String), req("color_mode", cty.String), req("color_depth", cty.String),
		req("use_preview", cty.Bool), req("compression", cty.Number), req("quality", cty.Number),
		req("transparent", cty.Bool),
	}},
	RenderSlot:      {fields: []field{req("render_slot", cty.Number)}},
	World:           {fields: []field{req("world", cty.String)}},
	SSMLightStudio:  {fields: []field{req("light_studio_index", cty.Number)}},
	Version:         {fields: []field{req("version", cty.String)}},
	Scripts:         {fields: []field{req("code", cty.String)}},
	ScriptsFile:     {fields: []field{req("file", cty.String)}},
	Path:            {fields: []field{req("path", cty.String), req("path_format", cty.String)}},
	ViewLayerPasses: {fields: []field{req("view_layer", cty.String), req("use_passes", cty.Bool)}},
	Email:           {fields: []field{req("subject", cty.String), req("content", cty.String), req("sender_name", cty.String), req("email", cty.String)}},
}

// Known reports whether c is a recognized category.
func Known(c Category) bool {
	_, ok := schemas[c]
	return ok
}

// Categories returns all recognized categories, sorted by name.
func Categories() []Category {
	out := make([]Category, 0, len(schemas))
	for c := range schemas {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks params against the record schema of c and returns the
// normalized record values.
func Validate(c Category, params map[string]cty.Value) (map[string]cty.Value, error) {
	s, ok := schemas[c]
	if !ok {
		return nil, fmt.Errorf("unknown category %q", c)
	}
	out := make(map[string]cty.Value, len(params))
	if s.open {
		for k, v := range params {
			if v.IsNull() {
				continue
			}
			if !v.IsWhollyKnown() {
				return nil, fmt.Errorf("parameter %q is not known", k)
			}
			out[k] = v
		}
		return out, nil
	}

	declared := make(map[string]bool, len(s.fields))
	for _, f := range s.fields {
		declared[f.name] = true
		v, ok := params[f.name]
		if !ok || v.IsNull() {
			if f.optional {
				continue
			}
			return nil, fmt.Errorf("missing required parameter %q", f.name)
		}
		if !v.IsWhollyKnown() {
			return nil, fmt.Errorf("parameter %q is not known", f.name)
		}
		var err error
		switch {
		case f.normalize != nil:
			v, err = f.normalize(v)
		case f.ty != cty.DynamicPseudoType:
			v, err = convert.Convert(v, f.ty)
		}
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", f.name, err)
		}
		out[f.name] = v
	}
	for _, k := range sortedNames(params) {
		if !declared[k] {
			return nil, fmt.Errorf("unsupported parameter %q", k)
		}
	}
	return out, nil
}

// vector3 accepts a list or tuple of three numbers and returns it as a tuple.
func vector3(v cty.Value) (cty.Value, error) {
	ty := v.Type()
	if !ty.IsListType() && !ty.IsTupleType() {
		return cty.NilVal, fmt.Errorf("expected a list of 3 numbers, got %s", ty.FriendlyName())
	}
	if v.LengthInt() != 3 {
		return cty.NilVal, fmt.Errorf("expected 3 components, got %d", v.LengthInt())
	}
	elems := make([]cty.Value, 0, 3)
	for it := v.ElementIterator(); it.Next(); {
		_, e := it.Element()
		n, err := convert.Convert(e, cty.Number)
		if err != nil {
			return cty.NilVal, err
		}
		if n.IsNull() {
			return cty.NilVal, fmt.Errorf("vector components cannot be null")
		}
		elems = append(elems, n)
	}
	return cty.TupleVal(elems), nil
}

func sortedNames(m map[string]cty.Value) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
