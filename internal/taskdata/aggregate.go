package taskdata

import (
	"context"

	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/nodetree"
)

// Aggregate builds the task data of task from its contributors. A node whose
// parameters fail their record schema is annotated with a warning and left
// out; it never fails the aggregation.
func Aggregate(ctx context.Context, task *nodetree.Node, contributors []*nodetree.Node, ann nodetree.Annotator) *TaskData {
	logger := ctxlog.FromContext(ctx)
	d := New(task.Name, task.DisplayLabel())

	for _, n := range contributors {
		c := Category(n.Type)
		if !Known(c) {
			msg := "unknown node type " + string(n.Type)
			logger.Warn("Skipping node.", "node", n.Name, "reason", msg)
			ann.SetWarning(n.Name, msg)
			continue
		}
		values, err := Validate(c, n.Params)
		if err != nil {
			logger.Warn("Skipping node with invalid parameters.", "node", n.Name, "category", c, "error", err)
			ann.SetWarning(n.Name, err.Error())
			continue
		}
		d.Add(c, NewRecord(n.Name, values))
	}

	logger.Debug("Aggregated task data.", "task", task.Name, "categories", len(d.categories))
	return d
}
