package applier

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/rendergraph/internal/compare"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/specialistvlad/rendergraph/internal/report"
	"github.com/specialistvlad/rendergraph/internal/scene"
	"github.com/specialistvlad/rendergraph/internal/services"
	"github.com/specialistvlad/rendergraph/internal/target"
	"github.com/specialistvlad/rendergraph/internal/taskdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type recorder struct {
	passes []services.CompositorRequest
	emails []services.Email
	err    error
}

func (r *recorder) SetupPasses(_ context.Context, req services.CompositorRequest) error {
	r.passes = append(r.passes, req)
	return r.err
}

func (r *recorder) Send(_ context.Context, msg services.Email) error {
	r.emails = append(r.emails, msg)
	return r.err
}

func vec(x, y, z float64) cty.Value {
	return cty.TupleVal([]cty.Value{cty.NumberFloatVal(x), cty.NumberFloatVal(y), cty.NumberFloatVal(z)})
}

func testScene() *scene.Store {
	s := scene.NewDefault()
	root := s.Root()

	cube := root.Member("objects", "Cube").
		Declare("hide_viewport", cty.False).
		Declare("hide_render", cty.False).
		Declare("location", vec(0, 0, 0)).
		Declare("scale", vec(1, 1, 1)).
		Declare("rotation_euler", vec(0, 0, 0))
	cube.Block("data").Declare("size", cty.NumberIntVal(2))
	cube.Member("modifiers", "Subdiv").Declare("levels", cty.NumberIntVal(1))
	cube.Member("material_slots", "0").Declare("material", cty.StringVal("Red"))
	root.Member("objects", "CamA")

	root.Member("materials", "Red")
	root.Member("materials", "Blue")
	root.Member("worlds", "Night")
	root.Member("texts", "post").Declare("body", cty.StringVal(`
set {
  path  = "scene.frame_end"
  value = 99
}
`))
	root.Block("scene").Member("view_layers", "Shadow")
	return s
}

type fixture struct {
	t    *testing.T
	s    *scene.Store
	data *taskdata.TaskData
	rec  *recorder
	rep  *report.Reporter
	cmp  *compare.Comparer
}

func newFixture(t *testing.T) *fixture {
	return &fixture{
		t:    t,
		s:    testScene(),
		data: taskdata.New("task", "beauty"),
		rec:  &recorder{},
		rep:  report.New(nil),
	}
}

func (f *fixture) add(c taskdata.Category, node string, params map[string]cty.Value) *fixture {
	f.t.Helper()
	values, err := taskdata.Validate(c, params)
	require.NoError(f.t, err)
	f.data.Add(c, taskdata.NewRecord(node, values))
	return f
}

func (f *fixture) config(mode Mode, toggles Toggles) Config {
	return Config{
		Mode:       mode,
		Toggles:    toggles,
		Now:        time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local),
		Compositor: f.rec,
		Notifier:   f.rec,
	}
}

func (f *fixture) runConfig(ctx context.Context, cfg Config) {
	f.cmp = compare.New(f.s)
	NewPass(cfg, f.data, f.cmp, f.rep).Run(ctx)
}

func (f *fixture) run(mode Mode, toggles Toggles) {
	f.runConfig(context.Background(), f.config(mode, toggles))
}

func (f *fixture) get(raw string) cty.Value {
	f.t.Helper()
	loc, err := locator.Parse(raw)
	require.NoError(f.t, err)
	h, attr, err := target.Lookup(f.s, loc)
	require.NoError(f.t, err)
	v, err := f.s.Get(h, attr)
	require.NoError(f.t, err)
	return v
}

func (f *fixture) assertValue(raw string, want cty.Value) {
	f.t.Helper()
	got := f.get(raw)
	assert.True(f.t, compare.Equal(got, want), "%s = %s, want %s", raw, compare.Format(got), compare.Format(want))
}

func (f *fixture) warnings() map[string]string {
	out := make(map[string]string)
	for _, w := range f.rep.Warnings() {
		out[w.Node] = w.Message
	}
	return out
}

func num(i int64) cty.Value  { return cty.NumberIntVal(i) }
func str(s string) cty.Value { return cty.StringVal(s) }

func TestSteps_Order(t *testing.T) {
	var names []string
	for _, s := range Steps() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{
		"camera", "color_management", "resolution", "render_engine", "property",
		"object_display", "object_psr", "object_data", "object_material", "object_modifier",
		"frame_range", "view_layer", "image_format", "render_slot", "world", "ssm_light_studio",
		"scripts", "path", "view_layer_passes", "email",
	}, names)
}

func TestRun_AroundWrapsEnabledSteps(t *testing.T) {
	f := newFixture(t)
	f.add(taskdata.FrameRange, "frames", map[string]cty.Value{"frame_start": num(3), "frame_end": num(4), "frame_step": num(1)})

	var wrapped []string
	cfg := f.config(Viewer, Toggles{})
	cfg.Around = func(ctx context.Context, step string, apply func(context.Context)) {
		wrapped = append(wrapped, step)
		apply(ctx)
	}
	f.runConfig(context.Background(), cfg)

	assert.Len(t, wrapped, 16, "side-effecting steps are off in viewer mode")
	assert.Equal(t, "camera", wrapped[0])
	assert.Equal(t, "ssm_light_studio", wrapped[len(wrapped)-1])
	f.assertValue("scene.frame_end", num(4))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("render")
	require.NoError(t, err)
	assert.Equal(t, Render, m)
	_, err = ParseMode("preview")
	assert.ErrorContains(t, err, `invalid mode "preview"`)
}

func TestSceneSettings(t *testing.T) {
	f := newFixture(t)
	f.add(taskdata.Camera, "cam", map[string]cty.Value{"camera": str("CamA")}).
		add(taskdata.ColorManagement, "cm", map[string]cty.Value{"exposure": num(1), "gamma": num(2), "look": str("High Contrast")}).
		add(taskdata.Resolution, "res", map[string]cty.Value{"res_x": num(640), "res_y": num(480), "res_scale": num(50)}).
		add(taskdata.RenderEngine, "eng", map[string]cty.Value{"engine": str("BLENDER_EEVEE"), "samples": num(16)}).
		add(taskdata.FrameRange, "frames", map[string]cty.Value{"frame_start": num(10), "frame_end": num(20), "frame_step": num(2)}).
		add(taskdata.ViewLayer, "vl", map[string]cty.Value{"view_layer": str("Shadow")}).
		add(taskdata.ImageFormat, "img", map[string]cty.Value{
			"file_format": str("OPEN_EXR"), "color_mode": str("RGB"), "color_depth": str("16"),
			"use_preview": cty.True, "compression": num(0), "quality": num(100), "transparent": cty.True,
		}).
		add(taskdata.RenderSlot, "slot", map[string]cty.Value{"render_slot": num(3)}).
		add(taskdata.World, "world", map[string]cty.Value{"world": str("Night")})

	f.run(Viewer, Toggles{})

	assert.Empty(t, f.warnings())
	f.assertValue("scene.camera", str("CamA"))
	f.assertValue("scene.view_settings.exposure", num(1))
	f.assertValue("scene.view_settings.look", str("High Contrast"))
	f.assertValue("scene.view_settings.view_transform", str("Filmic"))
	f.assertValue("scene.render.resolution_x", num(640))
	f.assertValue("scene.render.resolution_percentage", num(50))
	f.assertValue("scene.eevee.taa_render_samples", num(16))
	f.assertValue("scene.cycles.samples", num(128))
	f.assertValue("scene.frame_step", num(2))
	f.assertValue("window.view_layer", str("Shadow"))
	f.assertValue("scene.render.image_settings.file_format", str("OPEN_EXR"))
	f.assertValue("scene.render.film_transparent", cty.True)
	f.assertValue(`images["Render Result"].render_slots.active_index`, num(3))
	f.assertValue("scene.world", str("Night"))
}

func TestSceneSettings_Failures(t *testing.T) {
	f := newFixture(t)
	f.add(taskdata.Camera, "cam", map[string]cty.Value{"camera": str("Ghost")}).
		add(taskdata.RenderEngine, "eng", map[string]cty.Value{"engine": str("POVRAY")}).
		add(taskdata.ViewLayer, "vl", map[string]cty.Value{"view_layer": str("Nope")}).
		add(taskdata.World, "world", map[string]cty.Value{"world": str("Day")}).
		add(taskdata.SSMLightStudio, "ssm", map[string]cty.Value{"light_studio_index": num(1)}).
		add(taskdata.Resolution, "res", map[string]cty.Value{"res_x": num(320), "res_y": num(200), "res_scale": num(100)})

	f.run(Viewer, Toggles{})

	w := f.warnings()
	assert.Contains(t, w["cam"], "camera")
	assert.Contains(t, w["eng"], `unsupported render engine "POVRAY"`)
	assert.Contains(t, w["vl"], `view layer "Nope" does not exist`)
	assert.Contains(t, w["world"], "world")
	assert.Contains(t, w["ssm"], "scene.ssm")
	assert.NotContains(t, w, "res")
	f.assertValue("scene.render.resolution_x", num(320))
	f.assertValue("window.view_layer", str("ViewLayer"))
}

func TestRenderEngine_AddonGating(t *testing.T) {
	build := func(t *testing.T, addons ...string) *fixture {
		f := newFixture(t)
		for _, a := range addons {
			f.s.Root().Block("preferences").Member("addons", a)
		}
		f.s.Root().Block("scene").Block("luxcore").Block("halt").
			Declare("enable", cty.False).
			Declare("use_samples", cty.False).
			Declare("use_time", cty.True).
			Declare("samples", num(0)).
			Declare("time", num(0))
		f.s.Root().Block("scene").Block("octane").Declare("max_samples", num(500))
		f.add(taskdata.LuxcoreHalt, "lux", map[string]cty.Value{"use_samples": cty.True, "use_time": cty.False, "samples": num(300)}).
			add(taskdata.Octane, "oct", map[string]cty.Value{"max_samples": num(64)}).
			add(taskdata.CyclesLightPath, "lp", map[string]cty.Value{"max_bounces": num(3), "glossy_bounces": num(1)})
		return f
	}

	t.Run("absent integrations are skipped silently", func(t *testing.T) {
		f := build(t)
		f.run(Viewer, Toggles{})
		assert.Empty(t, f.warnings())
		f.assertValue("scene.luxcore.halt.enable", cty.False)
		f.assertValue("scene.octane.max_samples", num(500))
		f.assertValue("scene.cycles.max_bounces", num(3))
		f.assertValue("scene.cycles.glossy_bounces", num(1))
	})

	t.Run("present integrations are applied independently", func(t *testing.T) {
		f := build(t, AddonLuxCore, AddonOctane)
		f.run(Viewer, Toggles{})
		assert.Empty(t, f.warnings())
		f.assertValue("scene.luxcore.halt.enable", cty.True)
		f.assertValue("scene.luxcore.halt.use_samples", cty.True)
		f.assertValue("scene.luxcore.halt.use_time", cty.False)
		f.assertValue("scene.luxcore.halt.samples", num(300))
		f.assertValue("scene.octane.max_samples", num(64))
	})
}

func TestLuxcoreHalt(t *testing.T) {
	rec := func(useSamples, useTime bool) taskdata.Record {
		return taskdata.NewRecord("lux", map[string]cty.Value{
			"use_samples": cty.BoolVal(useSamples),
			"use_time":    cty.BoolVal(useTime),
			"samples":     num(10),
			"time":        num(60),
		})
	}
	attrs := func(avs []attrValue) []string {
		var out []string
		for _, av := range avs {
			out = append(out, av.attr+"="+compare.Format(av.value))
		}
		return out
	}

	assert.Equal(t, []string{"enable=true", "use_samples=true"}, attrs(luxcoreHalt(rec(false, false))))
	assert.Equal(t, []string{"enable=true", "use_samples=true", "use_time=false", "samples=10"}, attrs(luxcoreHalt(rec(true, false))))
	assert.Equal(t, []string{"enable=true", "use_samples=false", "use_time=true", "time=60"}, attrs(luxcoreHalt(rec(false, true))))
	assert.Equal(t, []string{"enable=true"}, attrs(luxcoreHalt(rec(true, true))))
}

func TestObjects(t *testing.T) {
	f := newFixture(t)
	f.add(taskdata.ObjectDisplay, "disp", map[string]cty.Value{"object": str(`objects["Cube"]`), "hide_viewport": cty.True, "hide_render": cty.True}).
		add(taskdata.ObjectPSR, "psr", map[string]cty.Value{"object": str("Cube"), "location": vec(1, 2, 3), "rotation": vec(0, 0, 90)}).
		add(taskdata.ObjectData, "data", map[string]cty.Value{"object": str("Cube"), "data_path": str("size"), "value": num(5)}).
		add(taskdata.ObjectMaterial, "mat", map[string]cty.Value{"object": str("Cube"), "slot_index": num(0), "new_material": str("Blue")}).
		add(taskdata.ObjectModifier, "mod", map[string]cty.Value{"object": str("Cube"), "data_path": str(`modifiers["Subdiv"].levels`), "value": num(3)}).
		add(taskdata.Property, "prop", map[string]cty.Value{"full_data_path": str("scene.render.resolution_y"), "value": num(720)})

	f.run(Viewer, Toggles{})

	assert.Empty(t, f.warnings())
	f.assertValue(`objects["Cube"].hide_viewport`, cty.True)
	f.assertValue(`objects["Cube"].hide_render`, cty.True)
	f.assertValue(`objects["Cube"].location`, vec(1, 2, 3))
	f.assertValue(`objects["Cube"].rotation_euler`, vec(0, 0, 90))
	f.assertValue(`objects["Cube"].scale`, vec(1, 1, 1))
	f.assertValue(`objects["Cube"].data.size`, num(5))
	f.assertValue(`objects["Cube"].material_slots[0].material`, str("Blue"))
	f.assertValue(`objects["Cube"].modifiers["Subdiv"].levels`, num(3))
	f.assertValue("scene.render.resolution_y", num(720))
}

func TestObjects_Failures(t *testing.T) {
	f := newFixture(t)
	f.add(taskdata.ObjectDisplay, "disp", map[string]cty.Value{"object": str("Ghost"), "hide_viewport": cty.True, "hide_render": cty.True}).
		add(taskdata.ObjectMaterial, "mat", map[string]cty.Value{"object": str("Cube"), "slot_index": num(0), "new_material": str("Gold")}).
		add(taskdata.ObjectMaterial, "slot", map[string]cty.Value{"object": str("Cube"), "slot_index": num(4), "new_material": str("Blue")}).
		add(taskdata.ObjectModifier, "mod", map[string]cty.Value{"object": str("Cube"), "data_path": str("levels"), "value": num(3)}).
		add(taskdata.ObjectData, "data", map[string]cty.Value{"object": str("Cube"), "data_path": str("radius"), "value": num(1)}).
		add(taskdata.Property, "prop", map[string]cty.Value{"full_data_path": str("scene.render.nope"), "value": num(1)}).
		add(taskdata.Property, "syntax", map[string]cty.Value{"full_data_path": str("scene..render"), "value": num(1)})

	f.run(Viewer, Toggles{})

	w := f.warnings()
	assert.Contains(t, w["disp"], `objects["Ghost"]`)
	assert.Contains(t, w["mat"], "Gold")
	assert.Contains(t, w["slot"], "material slot")
	assert.Contains(t, w["mod"], `must look like modifiers["name"].attribute`)
	assert.Contains(t, w["data"], "attribute does not exist")
	assert.Contains(t, w["prop"], "full data path error")
	assert.Contains(t, w["syntax"], "full data path error")
	f.assertValue(`objects["Cube"].material_slots[0].material`, str("Red"))
}

func TestObjects_DottedNames(t *testing.T) {
	f := newFixture(t)
	root := f.s.Root()
	dup := root.Member("objects", "Cube.001").
		Declare("hide_viewport", cty.False).
		Declare("hide_render", cty.False).
		Declare("location", vec(0, 0, 0)).
		Declare("scale", vec(1, 1, 1)).
		Declare("rotation_euler", vec(0, 0, 0))
	dup.Member("modifiers", "Subdiv").Declare("levels", cty.NumberIntVal(1))
	root.Member("objects", "Camera.002")

	f.add(taskdata.Camera, "cam", map[string]cty.Value{"camera": str("Camera.002")}).
		add(taskdata.ObjectDisplay, "disp", map[string]cty.Value{"object": str("Cube.001"), "hide_viewport": cty.True, "hide_render": cty.True}).
		add(taskdata.ObjectPSR, "psr", map[string]cty.Value{"object": str("Cube.001"), "location": vec(4, 5, 6)}).
		add(taskdata.ObjectModifier, "mod", map[string]cty.Value{"object": str("Cube.001"), "data_path": str(`modifiers["Subdiv"].levels`), "value": num(2)})

	f.run(Viewer, Toggles{})

	assert.Empty(t, f.warnings())
	f.assertValue("scene.camera", str("Camera.002"))
	f.assertValue(`objects["Cube.001"].hide_render`, cty.True)
	f.assertValue(`objects["Cube.001"].location`, vec(4, 5, 6))
	f.assertValue(`objects["Cube.001"].modifiers["Subdiv"].levels`, num(2))
	f.assertValue(`objects["Cube"].location`, vec(0, 0, 0))
}

func TestCategoryIsolation(t *testing.T) {
	f := newFixture(t)
	f.add(taskdata.ObjectDisplay, "broken", map[string]cty.Value{"object": str("Missing"), "hide_viewport": cty.True, "hide_render": cty.True}).
		add(taskdata.Resolution, "res", map[string]cty.Value{"res_x": num(100), "res_y": num(100), "res_scale": num(100)}).
		add(taskdata.FrameRange, "frames", map[string]cty.Value{"frame_start": num(5), "frame_end": num(6), "frame_step": num(1)})

	f.run(Render, Toggles{})

	assert.Contains(t, f.warnings(), "broken")
	f.assertValue("scene.render.resolution_x", num(100))
	f.assertValue("scene.frame_end", num(6))
}

func TestTieBreak_LastVisitedWins(t *testing.T) {
	f := newFixture(t)
	f.add(taskdata.Property, "first", map[string]cty.Value{"full_data_path": str("scene.render.resolution_x"), "value": num(111)}).
		add(taskdata.Property, "second", map[string]cty.Value{"full_data_path": str("scene.render.resolution_x"), "value": num(222)})

	f.run(Viewer, Toggles{})

	f.assertValue("scene.render.resolution_x", num(222))
}

func gatedFixture(t *testing.T, dir string) *fixture {
	f := newFixture(t)
	f.add(taskdata.Scripts, "script", map[string]cty.Value{"code": str(`
set {
  path  = "scene.frame_start"
  value = 42
}
`)}).
		add(taskdata.ScriptsFile, "script_file", map[string]cty.Value{"file": str("post")}).
		add(taskdata.Version, "ver", map[string]cty.Value{"version": str("v007")}).
		add(taskdata.Path, "path", map[string]cty.Value{"path": str(filepath.Join(dir, "renders", "x")), "path_format": str("$label_$V_$F4")}).
		add(taskdata.Email, "mail", map[string]cty.Value{"subject": str("done"), "content": str("ok"), "sender_name": str("farm"), "email": str("a@b.c")})
	return f
}

func TestModeGating(t *testing.T) {
	t.Run("viewer never runs side effects", func(t *testing.T) {
		dir := t.TempDir()
		f := gatedFixture(t, dir)
		f.run(Viewer, Toggles{})

		f.assertValue("scene.frame_start", num(1))
		f.assertValue("scene.frame_end", num(250))
		f.assertValue("scene.render.filepath", str(scene.DefaultOutputDir))
		assert.Empty(t, f.rec.passes)
		assert.Empty(t, f.rec.emails)
		assert.NoDirExists(t, filepath.Join(dir, "renders"))
	})

	t.Run("render always runs side effects", func(t *testing.T) {
		dir := t.TempDir()
		f := gatedFixture(t, dir)
		f.run(Render, Toggles{})

		assert.Empty(t, f.warnings())
		f.assertValue("scene.frame_start", num(42))
		f.assertValue("scene.frame_end", num(99))
		f.assertValue("scene.render.filepath", str(filepath.Join(dir, "renders", "beauty_v007_0001")))
		f.assertValue("scene.render.use_file_extension", cty.True)
		assert.DirExists(t, filepath.Join(dir, "renders"))
		assert.Equal(t, []services.CompositorRequest{{ViewLayer: "ViewLayer", UsePasses: false}}, f.rec.passes)
		assert.Equal(t, []services.Email{{Subject: "done", Content: "ok", SenderName: "farm", Recipient: "a@b.c"}}, f.rec.emails)
	})

	t.Run("viewer toggles enable scripts and path but not email", func(t *testing.T) {
		dir := t.TempDir()
		f := gatedFixture(t, dir)
		f.run(Viewer, Toggles{Scripts: true, Path: true})

		f.assertValue("scene.frame_start", num(42))
		assert.DirExists(t, filepath.Join(dir, "renders"))
		assert.Empty(t, f.rec.passes)
		assert.Empty(t, f.rec.emails)
	})
}

func TestPath_DirectoryOnly(t *testing.T) {
	f := newFixture(t)
	loc, err := locator.Parse("document.filepath")
	require.NoError(t, err)
	h, attr, err := target.Lookup(f.s, loc)
	require.NoError(t, err)
	require.NoError(t, f.s.Set(h, attr, str("/proj/shot010.blend")))

	f.run(Render, Toggles{})

	f.assertValue("scene.render.filepath", str("/proj/"))
}

func TestPath_UnknownTimeVerbIsLogged(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t)
	f.add(taskdata.Path, "out", map[string]cty.Value{"path": str(dir + "/"), "path_format": str("$label_$T{%Q}")})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.runConfig(ctxlog.WithLogger(context.Background(), logger), f.config(Render, Toggles{}))

	assert.Empty(t, f.warnings())
	f.assertValue("scene.render.filepath", str(dir+"/beauty_$T{%Q}"))
	assert.Contains(t, buf.String(), "Time token kept verbatim.")
	assert.Contains(t, buf.String(), "node=out")
}

func TestPath_UnsavedDocumentKeepsFilepath(t *testing.T) {
	f := newFixture(t)
	f.run(Render, Toggles{})
	f.assertValue("scene.render.filepath", str(scene.DefaultOutputDir))
}

func TestViewLayerPasses(t *testing.T) {
	f := newFixture(t)
	f.rec.err = errors.New("compositor busy")
	f.add(taskdata.ViewLayerPasses, "vlp1", map[string]cty.Value{"view_layer": str("ViewLayer"), "use_passes": cty.True}).
		add(taskdata.ViewLayerPasses, "vlp2", map[string]cty.Value{"view_layer": str("Shadow"), "use_passes": cty.False}).
		add(taskdata.Email, "mail", map[string]cty.Value{"subject": str("s"), "content": str("c"), "sender_name": str("n"), "email": str("e")})

	f.run(Render, Toggles{})

	assert.Len(t, f.rec.passes, 2, "a failing call does not stop the next node")
	assert.Len(t, f.rec.emails, 1, "a failing service does not stop later steps")
	w := f.warnings()
	assert.Equal(t, "compositor busy", w["vlp1"])
	assert.Equal(t, "compositor busy", w["vlp2"])
	assert.Equal(t, "compositor busy", w["mail"])
}

func TestTemplateContext(t *testing.T) {
	f := newFixture(t)
	f.add(taskdata.Camera, "cam", map[string]cty.Value{"camera": str("CamA")}).
		add(taskdata.Version, "ver", map[string]cty.Value{"version": str("v1")})
	f.run(Viewer, Toggles{})

	c := NewPass(Config{Mode: Viewer}, f.data, f.cmp, f.rep).TemplateContext()
	assert.Equal(t, "CamA", c.Camera)
	assert.Equal(t, scene.DefaultEngine, c.Engine)
	assert.Equal(t, scene.DefaultResolutionX, c.ResX)
	assert.Equal(t, "beauty", c.Label)
	assert.Equal(t, "v1", c.Version)
	assert.Equal(t, 1, c.Frame)
	assert.Equal(t, "", c.DocPath)
}
