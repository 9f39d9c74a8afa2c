package applier

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/specialistvlad/rendergraph/internal/script"
	"github.com/specialistvlad/rendergraph/internal/services"
	"github.com/specialistvlad/rendergraph/internal/taskdata"
	"github.com/specialistvlad/rendergraph/internal/template"
	"github.com/zclconf/go-cty/cty"
)

// TextCollection is the store collection holding script texts.
const TextCollection = "texts"

// TemplateContext reads the live scene state output path templates use.
// It reflects every write made by the steps that already ran.
func (p *Pass) TemplateContext() template.Context {
	return template.Context{
		Camera:    p.readString("scene.camera"),
		Engine:    p.readString("scene.render.engine"),
		ResX:      p.readInt("scene.render.resolution_x"),
		ResY:      p.readInt("scene.render.resolution_y"),
		Label:     p.data.Label,
		ViewLayer: p.readString("window.view_layer"),
		Version:   p.data.Version(),
		Frame:     p.readInt("scene.frame_current"),
		DocPath:   p.readString("document.filepath"),
		Now:       p.cfg.Now,
	}
}

func (p *Pass) scriptVars() script.Vars {
	return script.Vars{
		Frame:     p.readInt("scene.frame_current"),
		Camera:    p.readString("scene.camera"),
		Engine:    p.readString("scene.render.engine"),
		Label:     p.data.Label,
		ViewLayer: p.readString("window.view_layer"),
	}
}

func applyScripts(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.Scripts, func(r taskdata.Record) error {
		_, err := p.scripts.Run(ctx, r.Node, r.String("code"), p.scriptVars())
		return err
	})
	p.each(ctx, taskdata.ScriptsFile, func(r taskdata.Record) error {
		name := r.String("file")
		h, err := p.store().Resolve([]locator.Segment{locator.NewNamedSegment(TextCollection, name)})
		if err != nil {
			return fmt.Errorf("script text: %w", err)
		}
		body, err := p.store().Get(h, "body")
		if err != nil {
			return fmt.Errorf("script text: %w", err)
		}
		if body.IsNull() || body.Type() != cty.String {
			return fmt.Errorf("script text %q has no body", name)
		}
		_, err = p.scripts.Run(ctx, name, body.AsString(), p.scriptVars())
		return err
	})
}

// applyPath sets the render output path. The last visited path node wins;
// without one the output goes to the document's directory.
func applyPath(ctx context.Context, p *Pass) {
	node := p.data.Task
	var rule *template.Rule
	if r, ok := p.data.Payload(taskdata.Path).Last(); ok {
		node = r.Node
		rule = &template.Rule{Path: r.String("path"), Format: r.String("path_format")}
	}

	if rule != nil {
		if err := template.Check(rule.Format); err != nil {
			ctxlog.FromContext(ctx).Debug("Time token kept verbatim.", "node", node, "error", err)
		}
	}

	p.rep.Guard(ctx, node, func() error {
		c := p.TemplateContext()
		if rule != nil && rule.Path != "" {
			if dir := template.Directory(rule, c); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("cannot create output directory: %w", err)
				}
			}
		}
		attrs := []attrValue{{"use_file_extension", cty.True}}
		if out := template.Resolve(rule, c); out != "" {
			attrs = append(attrs, attrValue{"filepath", cty.StringVal(out)})
		}
		return p.setAll(ctx, "scene.render", attrs)
	})
}

// applyViewLayerPasses requests compositor outputs. Without pass data the
// compositor is still called once for the active view layer with passes off.
func applyViewLayerPasses(ctx context.Context, p *Pass) {
	if !p.data.Has(taskdata.ViewLayerPasses) {
		p.rep.Guard(ctx, p.data.Task, func() error {
			return p.cfg.Compositor.SetupPasses(ctx, services.CompositorRequest{
				ViewLayer: p.readString("window.view_layer"),
				UsePasses: false,
			})
		})
		return
	}
	p.each(ctx, taskdata.ViewLayerPasses, func(r taskdata.Record) error {
		return p.cfg.Compositor.SetupPasses(ctx, services.CompositorRequest{
			ViewLayer: r.String("view_layer"),
			UsePasses: r.Bool("use_passes"),
		})
	})
}

func applyEmail(ctx context.Context, p *Pass) {
	p.each(ctx, taskdata.Email, func(r taskdata.Record) error {
		return p.cfg.Notifier.Send(ctx, services.Email{
			Subject:    r.String("subject"),
			Content:    r.String("content"),
			SenderName: r.String("sender_name"),
			Recipient:  r.String("email"),
		})
	})
}
