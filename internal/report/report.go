// Package report isolates per-node failures. An error or panic raised while
// applying one node becomes a warning annotation on that node and the pass
// moves on.
package report

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/nodetree"
)

// Warning is a node-level failure recorded during a pass.
type Warning struct {
	Node    string `json:"node" yaml:"node"`
	Message string `json:"message" yaml:"message"`
}

// Reporter collects the warnings of one pass and forwards them to the node
// graph. It is itself a nodetree.Annotator.
type Reporter struct {
	ann      nodetree.Annotator
	warnings []Warning
}

var _ nodetree.Annotator = (*Reporter)(nil)

// New creates a reporter annotating nodes through ann.
func New(ann nodetree.Annotator) *Reporter {
	return &Reporter{ann: ann}
}

// Guard runs fn on behalf of node. It reports whether fn completed without
// error or panic.
func (r *Reporter) Guard(ctx context.Context, node string, fn func() error) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			ctxlog.FromContext(ctx).Debug("Recovered panic.", "node", node, "stack", string(debug.Stack()))
			r.Warn(ctx, node, fmt.Errorf("panic: %v", p))
			ok = false
		}
	}()
	if err := fn(); err != nil {
		r.Warn(ctx, node, err)
		return false
	}
	return true
}

// Warn logs and records err against node.
func (r *Reporter) Warn(ctx context.Context, node string, err error) {
	ctxlog.FromContext(ctx).Warn("Node failed.", "node", node, "error", err)
	r.SetWarning(node, err.Error())
}

// SetWarning records msg against node without logging it.
func (r *Reporter) SetWarning(node, msg string) {
	r.warnings = append(r.warnings, Warning{Node: node, Message: msg})
	if r.ann != nil {
		r.ann.SetWarning(node, msg)
	}
}

// ClearWarning forwards to the annotator.
func (r *Reporter) ClearWarning(node string) {
	if r.ann != nil {
		r.ann.ClearWarning(node)
	}
}

// Warnings returns the warnings recorded so far, in order.
func (r *Reporter) Warnings() []Warning {
	return append([]Warning(nil), r.warnings...)
}
