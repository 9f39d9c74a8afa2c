package applier

import (
	"context"
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/specialistvlad/rendergraph/internal/taskdata"
	"github.com/zclconf/go-cty/cty"
)

// Render engine identifiers the render engine step accepts.
const (
	EngineCycles    = "CYCLES"
	EngineEevee     = "BLENDER_EEVEE"
	EngineWorkbench = "BLENDER_WORKBENCH"
	EngineOctane    = "octane"
	EngineLuxCore   = "LUXCORE"
)

// Addon names gating the engine-specific parameter blocks.
const (
	AddonOctane  = "octane"
	AddonLuxCore = "BlendLuxCore"
)

var supportedEngines = map[string]bool{
	EngineCycles:    true,
	EngineEevee:     true,
	EngineWorkbench: true,
	EngineOctane:    true,
	EngineLuxCore:   true,
}

// samplesAttr maps an engine to the attribute holding its render samples.
var samplesAttr = map[string][2]string{
	EngineEevee:  {"scene.eevee", "taa_render_samples"},
	EngineCycles: {"scene.cycles", "samples"},
}

func applyCamera(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.Camera, func(r taskdata.Record) error {
		raw := r.String("camera")
		if raw == "" {
			return nil
		}
		loc, _, err := p.object(raw)
		if err != nil {
			return fmt.Errorf("camera: %w", err)
		}
		name, err := p.memberName(loc)
		if err != nil {
			return fmt.Errorf("camera: %w", err)
		}
		return p.setAll(ctx, "scene", []attrValue{{"camera", cty.StringVal(name)}})
	})
}

func applyColorManagement(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.ColorManagement, func(r taskdata.Record) error {
		return p.setAll(ctx, "scene.view_settings", fromRecord(r,
			"exposure", "exposure",
			"gamma", "gamma",
			"view_transform", "view_transform",
			"look", "look",
		))
	})
}

func applyResolution(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.Resolution, func(r taskdata.Record) error {
		return p.setAll(ctx, "scene.render", fromRecord(r,
			"res_x", "resolution_x",
			"res_y", "resolution_y",
			"res_scale", "resolution_percentage",
		))
	})
}

func applyRenderEngine(ctx context.Context, p *Pass) {
	logger := ctxlog.FromContext(ctx)

	p.each(ctx, taskdata.RenderEngine, func(r taskdata.Record) error {
		engine := r.String("engine")
		if !supportedEngines[engine] {
			return fmt.Errorf("unsupported render engine %q", engine)
		}
		if err := p.setAll(ctx, "scene.render", []attrValue{{"engine", cty.StringVal(engine)}}); err != nil {
			return err
		}
		if !r.Has("samples") {
			return nil
		}
		dst, ok := samplesAttr[engine]
		if !ok {
			logger.Debug("Engine has no samples setting, skipping.", "engine", engine, "node", r.Node)
			return nil
		}
		return p.setAll(ctx, dst[0], []attrValue{{dst[1], r.Value("samples")}})
	})

	if p.data.Has(taskdata.LuxcoreHalt) {
		if p.addonEnabled(AddonLuxCore) {
			p.each(ctx, taskdata.LuxcoreHalt, func(r taskdata.Record) error {
				return p.setAll(ctx, "scene.luxcore.halt", luxcoreHalt(r))
			})
		} else {
			logger.Debug("Addon not present, skipping.", "addon", AddonLuxCore)
		}
	}

	if p.data.Has(taskdata.Octane) {
		if p.addonEnabled(AddonOctane) {
			p.each(ctx, taskdata.Octane, func(r taskdata.Record) error {
				return p.setAll(ctx, "scene.octane", keyValues(r))
			})
		} else {
			logger.Debug("Addon not present, skipping.", "addon", AddonOctane)
		}
	}

	p.each(ctx, taskdata.CyclesLightPath, func(r taskdata.Record) error {
		return p.setAll(ctx, "scene.cycles", keyValues(r))
	})
}

// luxcoreHalt derives the halt condition writes. Halting is always enabled;
// with neither condition selected it falls back to halting on samples.
func luxcoreHalt(r taskdata.Record) []attrValue {
	out := []attrValue{{"enable", cty.True}}
	useSamples, useTime := r.Bool("use_samples"), r.Bool("use_time")
	switch {
	case !useSamples && !useTime:
		out = append(out, attrValue{"use_samples", cty.True})
	case useSamples && !useTime:
		out = append(out, attrValue{"use_samples", cty.True}, attrValue{"use_time", cty.False})
		if r.Has("samples") {
			out = append(out, attrValue{"samples", r.Value("samples")})
		}
	case !useSamples && useTime:
		out = append(out, attrValue{"use_samples", cty.False}, attrValue{"use_time", cty.True})
		if r.Has("time") {
			out = append(out, attrValue{"time", r.Value("time")})
		}
	}
	return out
}

// keyValues writes every parameter of an open record to the attribute of
// the same name, in name order.
func keyValues(r taskdata.Record) []attrValue {
	keys := r.Keys()
	out := make([]attrValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, attrValue{k, r.Value(k)})
	}
	return out
}

func applyFrameRange(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.FrameRange, func(r taskdata.Record) error {
		return p.setAll(ctx, "scene", fromRecord(r,
			"frame_start", "frame_start",
			"frame_end", "frame_end",
			"frame_step", "frame_step",
		))
	})
}

func applyViewLayer(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.ViewLayer, func(r taskdata.Record) error {
		name := r.String("view_layer")
		if p.readString("window.view_layer") == name {
			return nil
		}
		scn, err := p.handle("scene")
		if err != nil {
			return err
		}
		names, err := p.store().Members(scn, "view_layers")
		if err != nil {
			return err
		}
		if !contains(names, name) {
			return fmt.Errorf("view layer %q does not exist", name)
		}
		return p.setAll(ctx, "window", []attrValue{{"view_layer", cty.StringVal(name)}})
	})
}

func applyImageFormat(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.ImageFormat, func(r taskdata.Record) error {
		err := p.setAll(ctx, "scene.render.image_settings", fromRecord(r,
			"file_format", "file_format",
			"color_mode", "color_mode",
			"color_depth", "color_depth",
			"use_preview", "use_preview",
			"compression", "compression",
			"quality", "quality",
		))
		if err != nil {
			return err
		}
		return p.setAll(ctx, "scene.render", fromRecord(r, "transparent", "film_transparent"))
	})
}

func applyRenderSlot(ctx context.Context, p *Pass) {
	slots := locator.Locator{Path: []locator.Segment{
		locator.NewNamedSegment("images", "Render Result"),
		locator.NewSegment("render_slots"),
	}}
	p.each(ctx, taskdata.RenderSlot, func(r taskdata.Record) error {
		return p.setAll(ctx, slots.String(), []attrValue{{"active_index", r.Value("render_slot")}})
	})
}

func applyWorld(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.World, func(r taskdata.Record) error {
		name := r.String("world")
		if p.readString("scene.world") == name {
			return nil
		}
		if err := p.member("worlds", name); err != nil {
			return fmt.Errorf("world: %w", err)
		}
		return p.setAll(ctx, "scene", []attrValue{{"world", cty.StringVal(name)}})
	})
}

func applySSMLightStudio(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.SSMLightStudio, func(r taskdata.Record) error {
		return p.setAll(ctx, "scene.ssm", []attrValue{{"light_studio_index", r.Value("light_studio_index")}})
	})
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
