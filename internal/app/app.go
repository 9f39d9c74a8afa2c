package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/rendergraph/internal/config"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/engine"
	"github.com/specialistvlad/rendergraph/internal/nodetree"
	"github.com/specialistvlad/rendergraph/internal/relay"
	"github.com/specialistvlad/rendergraph/internal/scene"
	"github.com/specialistvlad/rendergraph/internal/services"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	logger *slog.Logger
	cfg    *Config
	loader config.Loader

	tracing    *tracing
	relay      *relay.Relay
	compositor services.Compositor
	notifier   services.Notifier

	doc    *config.Document
	tree   *nodetree.Tree
	store  *scene.Store
	engine *engine.Engine
}

// New loads the documents and prepares an engine for them. Logs and trace
// output go to logW.
func New(ctx context.Context, logW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger := newLogger(cfg.Prefs.LogLevel, cfg.Prefs.LogFormat, logW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	tr, err := newTracing(cfg.Trace, logW)
	if err != nil {
		return nil, err
	}
	a := &App{
		logger:     logger,
		cfg:        cfg,
		loader:     loader,
		tracing:    tr,
		compositor: services.Logging{},
		notifier:   services.Logging{},
	}

	if rc := cfg.Prefs.Relay; rc.URL != "" {
		r, err := relay.Dial(ctx, relay.Config{
			URL:                rc.URL,
			Namespace:          rc.Namespace,
			InsecureSkipVerify: rc.InsecureSkipVerify,
			Timeout:            rc.Timeout,
		})
		if err != nil {
			_ = tr.shutdown(ctx)
			return nil, fmt.Errorf("failed to connect service relay: %w", err)
		}
		a.relay, a.compositor, a.notifier = r, r, r
		logger.Debug("Service relay connected.", "url", rc.URL)
	}

	if err := a.load(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// load (re)reads the documents and rebuilds graph, store and engine.
func (a *App) load(ctx context.Context) error {
	doc, err := a.loader.Load(ctx, a.cfg.Paths...)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	tree, err := doc.Tree()
	if err != nil {
		return fmt.Errorf("failed to build node graph: %w", err)
	}
	a.doc, a.tree, a.store = doc, tree, doc.Store()
	a.engine = engine.New(tree, a.store, engine.Options{
		Toggles:    a.cfg.toggles(),
		Compositor: a.compositor,
		Notifier:   a.notifier,
		DryRun:     a.cfg.DryRun,
		Tracer:     a.tracing.tracer,
	})
	a.logger.Debug("Documents loaded.", "sources", doc.Sources, "nodes", tree.Len())
	return nil
}

func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Apply runs one pass from root in the configured mode.
func (a *App) Apply(ctx context.Context, root string) (*engine.Outcome, error) {
	return a.engine.Run(a.withLogger(ctx), root, a.cfg.Mode)
}

// Queue runs every task of a render list in render mode.
func (a *App) Queue(ctx context.Context, list string) ([]engine.QueueItem, error) {
	return a.engine.RunQueue(a.withLogger(ctx), list)
}

// Inspect resolves root without applying anything.
func (a *App) Inspect(ctx context.Context, root string) (*engine.Plan, error) {
	return a.engine.Resolve(a.withLogger(ctx), root)
}

// Store returns the scene the passes write to.
func (a *App) Store() *scene.Store {
	return a.store
}

// Tree returns the loaded node graph, including pass warnings.
func (a *App) Tree() *nodetree.Tree {
	return a.tree
}

// Document returns the loaded document model.
func (a *App) Document() *config.Document {
	return a.doc
}

// Close releases the relay connection and flushes tracing.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.relay != nil {
		errs = append(errs, a.relay.Close())
	}
	errs = append(errs, a.tracing.shutdown(ctx))
	return errors.Join(errs...)
}
