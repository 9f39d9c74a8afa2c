package scene

import "github.com/zclconf/go-cty/cty"

// Well-known names of the default scene.
const (
	DefaultViewLayer   = "ViewLayer"
	DefaultWorld       = "World"
	RenderResultImage  = "Render Result"
	DefaultEngine      = "BLENDER_EEVEE"
	DefaultOutputDir   = "/tmp/"
	DefaultFrameEnd    = 250
	DefaultResolutionX = 1920
	DefaultResolutionY = 1080
)

// NewDefault creates a store pre-populated with the attributes a freshly
// created host document exposes. Documents only need to declare what differs.
func NewDefault() *Store {
	s := New()
	root := s.Root()

	root.Block("document").Declare("filepath", cty.StringVal(""))
	root.Block("window").Declare("view_layer", cty.StringVal(DefaultViewLayer))

	sc := root.Block("scene").
		Declare("camera", cty.NullVal(cty.String)).
		Declare("world", cty.StringVal(DefaultWorld)).
		Declare("frame_current", cty.NumberIntVal(1)).
		Declare("frame_start", cty.NumberIntVal(1)).
		Declare("frame_end", cty.NumberIntVal(DefaultFrameEnd)).
		Declare("frame_step", cty.NumberIntVal(1))

	render := sc.Block("render").
		Declare("engine", cty.StringVal(DefaultEngine)).
		Declare("resolution_x", cty.NumberIntVal(DefaultResolutionX)).
		Declare("resolution_y", cty.NumberIntVal(DefaultResolutionY)).
		Declare("resolution_percentage", cty.NumberIntVal(100)).
		Declare("filepath", cty.StringVal(DefaultOutputDir)).
		Declare("use_file_extension", cty.True).
		Declare("film_transparent", cty.False)

	render.Block("image_settings").
		Declare("file_format", cty.StringVal("PNG")).
		Declare("color_mode", cty.StringVal("RGBA")).
		Declare("color_depth", cty.StringVal("8")).
		Declare("use_preview", cty.False).
		Declare("compression", cty.NumberIntVal(15)).
		Declare("quality", cty.NumberIntVal(90))

	sc.Block("view_settings").
		Declare("exposure", cty.NumberIntVal(0)).
		Declare("gamma", cty.NumberIntVal(1)).
		Declare("view_transform", cty.StringVal("Filmic")).
		Declare("look", cty.StringVal("None"))

	sc.Block("eevee").Declare("taa_render_samples", cty.NumberIntVal(64))

	sc.Block("cycles").
		Declare("samples", cty.NumberIntVal(128)).
		Declare("max_bounces", cty.NumberIntVal(12)).
		Declare("diffuse_bounces", cty.NumberIntVal(4)).
		Declare("glossy_bounces", cty.NumberIntVal(4)).
		Declare("transmission_bounces", cty.NumberIntVal(12)).
		Declare("transparent_max_bounces", cty.NumberIntVal(8))

	sc.Member("view_layers", DefaultViewLayer).Declare("use", cty.True)

	root.Member("images", RenderResultImage).
		Block("render_slots").Declare("active_index", cty.NumberIntVal(0))
	root.Member("worlds", DefaultWorld)
	root.Collection("objects").Collection("materials").Collection("texts")
	root.Block("preferences").Collection("addons")

	return s
}
