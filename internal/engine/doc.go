// Package engine is the invocation surface of the resolve-and-apply pass.
//
// A pass walks the node graph from a root node to its task, aggregates the
// contributing nodes into task data and runs the category appliers in their
// fixed order. Per-node failures become node warnings; only a malformed graph
// or a nested invocation fails the pass as a whole.
//
// Passes are not re-entrant: a Run started while another Run of the same
// engine is in progress fails with ErrReentrant.
package engine
