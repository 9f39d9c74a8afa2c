package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/specialistvlad/rendergraph/internal/engine"
	"github.com/specialistvlad/rendergraph/internal/hcl"
	"github.com/specialistvlad/rendergraph/internal/nodetree"
	"github.com/specialistvlad/rendergraph/internal/report"
	"github.com/specialistvlad/rendergraph/internal/scene"
	"gopkg.in/yaml.v3"
)

var (
	dataFormats  = []string{"yaml", "json"}
	sceneFormats = []string{"yaml", "json", "hcl"}
)

func checkFormat(format string, allowed []string) error {
	if format == "" || slices.Contains(allowed, format) {
		return nil
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(allowed, ", "))
}

func printOutcome(w io.Writer, out *engine.Outcome) {
	fmt.Fprintf(w, "task %s (%s): %d writes, %d unchanged, %d missing, %d warnings in %.3f ms\n",
		out.Task, out.Mode, out.Stats.Writes, out.Stats.Skips, out.Stats.Missing, len(out.Warnings),
		float64(out.Elapsed.Microseconds())/1000)
	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "  warning [%s]: %s\n", warn.Node, warn.Message)
	}
}

func encode(w io.Writer, v any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

func dumpScene(w io.Writer, s *scene.Store, format string) error {
	if format == "hcl" {
		_, err := w.Write(hcl.WriteScene(s))
		return err
	}
	snap, err := s.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot scene: %w", err)
	}
	return encode(w, snap, format)
}

// planView is the printable form of a resolved plan.
type planView struct {
	Task         string           `json:"task" yaml:"task"`
	Label        string           `json:"label" yaml:"label"`
	Contributors []string         `json:"contributors" yaml:"contributors"`
	Data         map[string]any   `json:"data" yaml:"data"`
	Warnings     []report.Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newPlanView(p *engine.Plan, tree *nodetree.Tree) planView {
	v := planView{
		Task:         p.Task,
		Label:        p.Data.Label,
		Contributors: p.Contributors,
		Data:         p.Data.Plain(),
	}
	for _, name := range p.Contributors {
		if msg, ok := tree.Warning(name); ok {
			v.Warnings = append(v.Warnings, report.Warning{Node: name, Message: msg})
		}
	}
	return v
}
