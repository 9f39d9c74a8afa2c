package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/rendergraph/internal/applier"
	"github.com/specialistvlad/rendergraph/internal/compare"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/locator"
	"github.com/specialistvlad/rendergraph/internal/nodetree"
	"github.com/specialistvlad/rendergraph/internal/report"
	"github.com/specialistvlad/rendergraph/internal/services"
	"github.com/specialistvlad/rendergraph/internal/target"
	"github.com/specialistvlad/rendergraph/internal/taskdata"
	"github.com/specialistvlad/rendergraph/internal/walker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/specialistvlad/rendergraph/internal/engine"

// ErrReentrant is returned when a pass is started while another one is running.
var ErrReentrant = errors.New("a pass is already running")

// Graph is the node graph a pass reads and annotates.
type Graph interface {
	nodetree.Graph
	nodetree.Annotator
}

// Options configures an Engine.
type Options struct {
	// Toggles enable side-effecting steps in viewer mode.
	Toggles    applier.Toggles
	Compositor services.Compositor
	Notifier   services.Notifier
	// DryRun counts writes without performing them.
	DryRun bool
	Tracer trace.Tracer
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Outcome describes a finished pass.
type Outcome struct {
	PassID   string
	Root     string
	Task     string
	Mode     applier.Mode
	Elapsed  time.Duration
	Warnings []report.Warning
	Stats    compare.Stats
}

// Plan is the resolved, not yet applied, state of a root.
type Plan struct {
	Task         string
	Contributors []string
	Data         *taskdata.TaskData
}

// Engine runs passes of one node graph against one target store.
type Engine struct {
	graph    Graph
	store    target.Store
	opts     Options
	locators *locator.Cache
	running  atomic.Bool
}

// New creates an engine.
func New(graph Graph, store target.Store, opts Options) *Engine {
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Compositor == nil {
		opts.Compositor = services.Logging{}
	}
	if opts.Notifier == nil {
		opts.Notifier = services.Logging{}
	}
	return &Engine{
		graph:    graph,
		store:    store,
		opts:     opts,
		locators: locator.NewCache(),
	}
}

// Run resolves root and applies its task data in the given mode. The
// returned error is non-nil only for pass-level failures; node warnings are
// reported in the outcome.
func (e *Engine) Run(ctx context.Context, root string, mode applier.Mode) (*Outcome, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: cannot run %q", ErrReentrant, root)
	}
	defer e.running.Store(false)

	start := e.opts.Clock()
	out := &Outcome{PassID: uuid.NewString(), Root: root, Mode: mode}
	logger := ctxlog.FromContext(ctx).With("pass_id", out.PassID, "root", root, "mode", string(mode))
	ctx = ctxlog.WithLogger(ctx, logger)

	ctx, span := e.opts.Tracer.Start(ctx, "rendergraph.pass", trace.WithAttributes(
		attribute.String("rendergraph.pass_id", out.PassID),
		attribute.String("rendergraph.root", root),
		attribute.String("rendergraph.mode", string(mode)),
	))
	defer span.End()
	defer func() {
		out.Elapsed = e.opts.Clock().Sub(start)
		logger.Info(fmt.Sprintf("update took %.4f ms", float64(out.Elapsed.Microseconds())/1000), "warnings", len(out.Warnings), "writes", out.Stats.Writes)
	}()

	res, err := walker.Walk(ctx, e.graph, root)
	if err != nil {
		logger.Error("Pass failed.", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	out.Task = res.Task.Name
	span.SetAttributes(attribute.String("rendergraph.task", out.Task))

	for _, name := range res.Visited {
		e.graph.ClearWarning(name)
	}

	rep := report.New(e.graph)
	data := taskdata.Aggregate(ctx, res.Task, res.Contributors, rep)
	if data.Empty() {
		logger.Debug("No data linked to the task.", "task", out.Task)
		out.Warnings = rep.Warnings()
		return out, nil
	}

	cmpOpts := []compare.Option{compare.WithLocatorCache(e.locators)}
	if e.opts.DryRun {
		cmpOpts = append(cmpOpts, compare.WithDryRun())
	}
	cmp := compare.New(e.store, cmpOpts...)
	pass := applier.NewPass(applier.Config{
		Mode:       mode,
		Toggles:    e.opts.Toggles,
		Now:        e.opts.Clock(),
		Compositor: e.opts.Compositor,
		Notifier:   e.opts.Notifier,
		Around: func(ctx context.Context, step string, apply func(context.Context)) {
			ctx, span := e.opts.Tracer.Start(ctx, "rendergraph.apply."+step)
			defer span.End()
			apply(ctx)
		},
	}, data, cmp, rep)
	pass.Run(ctx)

	out.Warnings = rep.Warnings()
	out.Stats = cmp.Stats()
	span.SetAttributes(
		attribute.Int("rendergraph.writes", out.Stats.Writes),
		attribute.Int("rendergraph.warnings", len(out.Warnings)),
	)
	return out, nil
}

// Resolve walks root and aggregates its task data without applying it.
func (e *Engine) Resolve(ctx context.Context, root string) (*Plan, error) {
	res, err := walker.Walk(ctx, e.graph, root)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(res.Contributors))
	for i, n := range res.Contributors {
		names[i] = n.Name
	}
	return &Plan{
		Task:         res.Task.Name,
		Contributors: names,
		Data:         taskdata.Aggregate(ctx, res.Task, res.Contributors, e.graph),
	}, nil
}
