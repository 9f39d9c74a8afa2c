package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/watch"
)

// Watch applies root once, then reloads the documents and re-applies on
// every change until ctx is cancelled. Load failures and pass failures are
// logged and reported on the status endpoint; they do not stop the loop.
func (a *App) Watch(ctx context.Context, root string) error {
	ctx = a.withLogger(ctx)
	tracker := watch.NewTracker()

	refresh := func() {
		out, err := a.Apply(ctx, root)
		if err != nil {
			a.logger.Error("Refresh failed.", "error", err)
		}
		tracker.Record(out, err)
	}
	refresh()

	w, err := watch.New(watch.Config{Paths: a.doc.Sources, Debounce: a.cfg.Prefs.Watch.Debounce})
	if err != nil {
		return err
	}
	defer w.Stop()
	changes, err := w.Start(ctx)
	if err != nil {
		return err
	}

	if port := a.cfg.Prefs.Watch.StatusPort; port > 0 {
		srv := watch.NewServer(tracker)
		if _, err := srv.Start(ctx, port); err != nil {
			return err
		}
		defer srv.Shutdown(context.WithoutCancel(ctx))
	}

	a.logger.Info("Watching documents for changes.", "root", root, "sources", len(a.doc.Sources))
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Watch stopped.")
			return nil
		case <-changes:
			if err := a.load(ctx); err != nil {
				a.logger.Warn("Reload failed, keeping previous documents.", "error", err)
				tracker.Record(nil, fmt.Errorf("reload: %w", err))
				continue
			}
			refresh()
		}
	}
}
