package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/applier"
	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/nodetree"
	"github.com/specialistvlad/rendergraph/internal/walker"
)

// ErrNotRenderList is returned when RunQueue is given a node that is not a
// render list.
var ErrNotRenderList = errors.New("node is not a render list")

// QueueItem is the result of one task of a render list.
type QueueItem struct {
	// Task is the task the input resolved to, or the input node name when it
	// did not resolve.
	Task    string
	Outcome *Outcome
	Err     error
}

// RunQueue runs every task linked into a render list, in input order and in
// render mode. A task failing its pass does not stop the queue.
func (e *Engine) RunQueue(ctx context.Context, list string) ([]QueueItem, error) {
	logger := ctxlog.FromContext(ctx).With("render_list", list)

	n, ok := e.graph.Node(list)
	if !ok {
		return nil, fmt.Errorf("%w: %q", walker.ErrUnknownNode, list)
	}
	if n.Type != nodetree.TypeRenderList {
		return nil, fmt.Errorf("%w: %q has type %s", ErrNotRenderList, list, n.Type)
	}

	var items []QueueItem
	for socket := 0; socket < n.InputCount(); socket++ {
		src, ok := e.graph.Source(n, socket)
		if !ok {
			continue
		}
		task, _, err := walker.ResolveTask(e.graph, src.Name)
		if err != nil {
			logger.Warn("Render list input does not lead to a task.", "input", src.Name, "error", err)
			items = append(items, QueueItem{Task: src.Name, Err: err})
			continue
		}
		out, err := e.Run(ctx, task.Name, applier.Render)
		items = append(items, QueueItem{Task: task.Name, Outcome: out, Err: err})
	}
	logger.Info("Render list processed.", "tasks", len(items))
	return items, nil
}
