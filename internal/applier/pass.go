// Package applier applies aggregated task data to the target, one category
// at a time and in a fixed order. Settings read by later steps (camera,
// resolution, engine) are settled first; steps with side effects outside the
// scene run last and only when the pass mode allows them.
package applier

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/rendergraph/internal/compare"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/specialistvlad/rendergraph/internal/report"
	"github.com/specialistvlad/rendergraph/internal/script"
	"github.com/specialistvlad/rendergraph/internal/services"
	"github.com/specialistvlad/rendergraph/internal/target"
	"github.com/specialistvlad/rendergraph/internal/taskdata"
	"github.com/zclconf/go-cty/cty"
)

// Mode is the intent of a pass.
type Mode string

const (
	// Viewer refreshes the scene for interactive viewing.
	Viewer Mode = "viewer"
	// Render prepares the scene for a final render.
	Render Mode = "render"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Viewer, Render:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of viewer, render", s)
	}
}

// Toggles enable the side-effecting steps in viewer mode. Render mode
// forces all of them on.
type Toggles struct {
	Scripts         bool
	Path            bool
	ViewLayerPasses bool
}

// Config carries everything a pass needs besides the task data.
type Config struct {
	Mode    Mode
	Toggles Toggles
	// Now is the instant output path templates are formatted with.
	Now        time.Time
	Compositor services.Compositor
	Notifier   services.Notifier
	// Around wraps every enabled step, e.g. to trace it. Nil runs steps as is.
	Around func(ctx context.Context, step string, apply func(context.Context))
}

// Pass applies one task data to the target.
type Pass struct {
	cfg     Config
	data    *taskdata.TaskData
	cmp     *compare.Comparer
	rep     *report.Reporter
	scripts *script.Runner
}

// NewPass creates a pass. Missing services fall back to logging.
func NewPass(cfg Config, data *taskdata.TaskData, cmp *compare.Comparer, rep *report.Reporter) *Pass {
	if cfg.Compositor == nil {
		cfg.Compositor = services.Logging{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = services.Logging{}
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	return &Pass{
		cfg:     cfg,
		data:    data,
		cmp:     cmp,
		rep:     rep,
		scripts: script.NewRunner(cmp),
	}
}

// Step is one applier in the fixed order.
type Step struct {
	Name    string
	enabled func(*Pass) bool
	apply   func(context.Context, *Pass)
}

// enabledIn reports whether the step runs in pass p.
func (s Step) enabledIn(p *Pass) bool {
	return s.enabled == nil || s.enabled(p)
}

func renderOnly(p *Pass) bool { return p.cfg.Mode == Render }

var steps = []Step{
	{Name: "camera", apply: applyCamera},
	{Name: "color_management", apply: applyColorManagement},
	{Name: "resolution", apply: applyResolution},
	{Name: "render_engine", apply: applyRenderEngine},
	{Name: "property", apply: applyProperty},
	{Name: "object_display", apply: applyObjectDisplay},
	{Name: "object_psr", apply: applyObjectPSR},
	{Name: "object_data", apply: applyObjectData},
	{Name: "object_material", apply: applyObjectMaterial},
	{Name: "object_modifier", apply: applyObjectModifier},
	{Name: "frame_range", apply: applyFrameRange},
	{Name: "view_layer", apply: applyViewLayer},
	{Name: "image_format", apply: applyImageFormat},
	{Name: "render_slot", apply: applyRenderSlot},
	{Name: "world", apply: applyWorld},
	{Name: "ssm_light_studio", apply: applySSMLightStudio},
	{Name: "scripts", apply: applyScripts, enabled: func(p *Pass) bool { return renderOnly(p) || p.cfg.Toggles.Scripts }},
	{Name: "path", apply: applyPath, enabled: func(p *Pass) bool { return renderOnly(p) || p.cfg.Toggles.Path }},
	{Name: "view_layer_passes", apply: applyViewLayerPasses, enabled: func(p *Pass) bool { return renderOnly(p) || p.cfg.Toggles.ViewLayerPasses }},
	{Name: "email", apply: applyEmail, enabled: renderOnly},
}

// Steps returns the appliers in the order they run.
func Steps() []Step {
	return append([]Step(nil), steps...)
}

// Run applies every enabled step in order.
func (p *Pass) Run(ctx context.Context) {
	for _, s := range steps {
		if !s.enabledIn(p) {
			ctxlog.FromContext(ctx).Debug("Step disabled for this pass.", "step", s.Name, "mode", p.cfg.Mode)
			continue
		}
		if p.cfg.Around == nil {
			s.apply(ctx, p)
			continue
		}
		p.cfg.Around(ctx, s.Name, func(ctx context.Context) { s.apply(ctx, p) })
	}
}

// each runs fn for every record of c, isolating failures per node.
func (p *Pass) each(ctx context.Context, c taskdata.Category, fn func(r taskdata.Record) error) {
	for _, r := range p.data.Payload(c).Records() {
		p.rep.Guard(ctx, r.Node, func() error { return fn(r) })
	}
}

func (p *Pass) store() target.Store {
	return p.cmp.Store()
}

// handle resolves a block locator.
func (p *Pass) handle(raw string) (target.Handle, error) {
	loc, err := p.cmp.Locators().Parse(raw)
	if err != nil {
		return nil, err
	}
	return p.store().Resolve(loc.Path)
}

// set applies a value to an attribute of h.
func (p *Pass) set(ctx context.Context, h target.Handle, attr string, v cty.Value) error {
	_, err := p.cmp.Apply(ctx, h, attr, v)
	return err
}

// setAll applies several attributes of one block. The first failure stops it.
func (p *Pass) setAll(ctx context.Context, raw string, values []attrValue) error {
	h, err := p.handle(raw)
	if err != nil {
		return err
	}
	for _, av := range values {
		if err := p.set(ctx, h, av.attr, av.value); err != nil {
			return err
		}
	}
	return nil
}

type attrValue struct {
	attr  string
	value cty.Value
}

// fromRecord maps record parameters onto target attributes, skipping the
// parameters the record does not carry.
func fromRecord(r taskdata.Record, pairs ...string) []attrValue {
	out := make([]attrValue, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if !r.Has(pairs[i]) {
			continue
		}
		out = append(out, attrValue{attr: pairs[i+1], value: r.Value(pairs[i])})
	}
	return out
}

// read returns the value of an attribute locator, or a null value when it
// cannot be read.
func (p *Pass) read(raw string) cty.Value {
	null := cty.NullVal(cty.DynamicPseudoType)
	loc, err := p.cmp.Locators().Parse(raw)
	if err != nil {
		return null
	}
	h, attr, err := target.Lookup(p.store(), loc)
	if err != nil {
		return null
	}
	v, err := p.store().Get(h, attr)
	if err != nil {
		return null
	}
	return v
}

func (p *Pass) readString(raw string) string {
	v := p.read(raw)
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.String {
		return ""
	}
	return v.AsString()
}

func (p *Pass) readInt(raw string) int {
	v := p.read(raw)
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return 0
	}
	i, _ := v.AsBigFloat().Int64()
	return int(i)
}

// object resolves an object reference: a locator or a bare object name.
func (p *Pass) object(raw string) (locator.Locator, target.Handle, error) {
	loc, err := p.cmp.Locators().ParseObject(raw)
	if err != nil {
		return locator.Locator{}, nil, err
	}
	h, err := p.store().Resolve(loc.Path)
	if err != nil {
		return locator.Locator{}, nil, err
	}
	return loc, h, nil
}

// memberName returns the name of the collection member loc points at.
func (p *Pass) memberName(loc locator.Locator) (string, error) {
	if len(loc.Path) == 0 {
		return "", fmt.Errorf("empty locator")
	}
	last := loc.Path[len(loc.Path)-1]
	if !last.HasKey() {
		return "", fmt.Errorf("%s is not a collection member", loc)
	}
	if !last.Key.IsIndex() {
		return last.Key.Name, nil
	}
	owner, err := p.store().Resolve(loc.Path[:len(loc.Path)-1])
	if err != nil {
		return "", err
	}
	names, err := p.store().Members(owner, last.Name)
	if err != nil {
		return "", err
	}
	if last.Key.Index >= len(names) {
		return "", target.NotFoundError(loc.String())
	}
	return names[last.Key.Index], nil
}

// member checks that a named member exists in a top-level collection.
func (p *Pass) member(collection, name string) error {
	_, err := p.store().Resolve([]locator.Segment{locator.NewNamedSegment(collection, name)})
	return err
}

// addonEnabled reports whether an engine integration is present in the host.
func (p *Pass) addonEnabled(name string) bool {
	h, err := p.handle("preferences")
	if err != nil {
		return false
	}
	names, err := p.store().Members(h, "addons")
	if err != nil {
		return false
	}
	return contains(names, name)
}
