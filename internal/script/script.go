// Package script runs user scripts, the explicit escape hatch of the engine.
//
// A script is an HCL body made only of set blocks:
//
//	set {
//	  path  = "scene.render.resolution_percentage"
//	  value = max(25, frame)
//	}
//
// Expressions may read the variables frame, camera, engine, label and
// view_layer and call a fixed set of functions. Anything else is rejected
// before the first write. Writes go through the change-detection applier.
package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/rendergraph/internal/compare"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Vars is the scene state a script can read.
type Vars struct {
	Frame     int
	Camera    string
	Engine    string
	Label     string
	ViewLayer string
}

func (v Vars) values() map[string]cty.Value {
	return map[string]cty.Value{
		"frame":      cty.NumberIntVal(int64(v.Frame)),
		"camera":     cty.StringVal(v.Camera),
		"engine":     cty.StringVal(v.Engine),
		"label":      cty.StringVal(v.Label),
		"view_layer": cty.StringVal(v.ViewLayer),
	}
}

var functions = map[string]function.Function{
	"abs":      stdlib.AbsoluteFunc,
	"ceil":     stdlib.CeilFunc,
	"coalesce": stdlib.CoalesceFunc,
	"concat":   stdlib.ConcatFunc,
	"floor":    stdlib.FloorFunc,
	"format":   stdlib.FormatFunc,
	"join":     stdlib.JoinFunc,
	"length":   stdlib.LengthFunc,
	"lower":    stdlib.LowerFunc,
	"max":      stdlib.MaxFunc,
	"min":      stdlib.MinFunc,
	"upper":    stdlib.UpperFunc,
}

type file struct {
	Sets []*setBlock `hcl:"set,block"`
}

type setBlock struct {
	Path  string         `hcl:"path"`
	Value hcl.Expression `hcl:"value"`
}

// Result summarizes one script run.
type Result struct {
	Sets   int
	Writes int
}

// Runner executes scripts against the target behind a comparer.
type Runner struct {
	cmp *compare.Comparer
}

// NewRunner creates a runner writing through cmp.
func NewRunner(cmp *compare.Comparer) *Runner {
	return &Runner{cmp: cmp}
}

// Run parses, validates and executes src. name identifies the script in
// diagnostics. Execution stops at the first failing set block; writes made
// before it are kept.
func (r *Runner) Run(ctx context.Context, name, src string, vars Vars) (Result, error) {
	logger := ctxlog.FromContext(ctx).With("script", name)

	sets, err := compile(name, src)
	if err != nil {
		return Result{}, err
	}

	evalCtx := &hcl.EvalContext{Variables: vars.values(), Functions: functions}
	var res Result
	for _, s := range sets {
		val, diags := s.Value.Value(evalCtx)
		if diags.HasErrors() {
			return res, fmt.Errorf("%s: %s", name, diags.Error())
		}
		changed, err := r.cmp.ApplyPath(ctx, s.Path, val)
		if err != nil {
			return res, fmt.Errorf("%s: set %q: %w", name, s.Path, err)
		}
		res.Sets++
		if changed {
			res.Writes++
		}
	}
	logger.Debug("Script executed.", "sets", res.Sets, "writes", res.Writes)
	return res, nil
}

// Check validates src without evaluating or writing anything.
func Check(name, src string) error {
	_, err := compile(name, src)
	return err
}

// compile parses src and checks every expression against the allowed
// variables and functions.
func compile(name, src string) ([]*setBlock, error) {
	parsed, diags := hclparse.NewParser().ParseHCL([]byte(src), name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%s: %s", name, diags.Error())
	}
	var f file
	if diags := gohcl.DecodeBody(parsed.Body, nil, &f); diags.HasErrors() {
		return nil, fmt.Errorf("%s: %s", name, diags.Error())
	}

	exprs := make([]hcl.Expression, 0, len(f.Sets))
	for _, s := range f.Sets {
		exprs = append(exprs, s.Value)
	}
	u := analyze(exprs...)

	allowed := Vars{}.values()
	var problems []string
	for _, root := range u.roots {
		if _, ok := allowed[root]; !ok {
			problems = append(problems, fmt.Sprintf("unknown variable %q", root))
		}
	}
	for _, fn := range u.functions {
		if _, ok := functions[fn]; !ok {
			problems = append(problems, fmt.Sprintf("function %q is not allowed", fn))
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%s: %s", name, strings.Join(problems, "; "))
	}
	return f.Sets, nil
}
