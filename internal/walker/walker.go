// Package walker traverses the node graph from a root node to the task it
// feeds and collects the nodes contributing override data to that task.
// Pass-through nodes are transparent to every step of the traversal.
package walker

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/rendergraph/internal/ctxlog"
	"github.com/specialistvlad/rendergraph/internal/nodetree"
)

var (
	// ErrUnknownNode is returned when the root node does not exist.
	ErrUnknownNode = errors.New("unknown node")
	// ErrNoTaskReachable is returned when following the task chain ends at a
	// node that is not a task and has no incoming link.
	ErrNoTaskReachable = errors.New("no task reachable")
	// ErrCycle is returned when the traversal revisits a node on its own path.
	ErrCycle = errors.New("cycle detected")
)

// Result is the outcome of a walk.
type Result struct {
	// Task is the task node the root resolves to.
	Task *nodetree.Node
	// Contributors are the category nodes feeding the task, in visit order.
	Contributors []*nodetree.Node
	// Visited names every node the walk touched, including pass-through nodes.
	Visited []string
}

// Walk resolves the task reachable from root and collects its contributors.
func Walk(ctx context.Context, g nodetree.Graph, root string) (*Result, error) {
	task, chain, err := ResolveTask(g, root)
	if err != nil {
		return nil, err
	}
	contributors, visited, err := Contributors(g, task)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Walked node graph.", "root", root, "task", task.Name, "contributors", len(contributors))
	return &Result{
		Task:         task,
		Contributors: contributors,
		Visited:      append(chain, visited...),
	}, nil
}

// ResolveTask follows input socket 0 from root through any non-task nodes
// until it reaches a task node. It also returns the names of the nodes on
// the chain, root first.
func ResolveTask(g nodetree.Graph, root string) (*nodetree.Node, []string, error) {
	cur, ok := g.Node(root)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownNode, root)
	}

	seen := map[string]bool{cur.Name: true}
	chain := []string{cur.Name}
	for cur.Type != nodetree.TypeTask {
		src, ok := g.Source(cur, 0)
		if !ok {
			return nil, chain, fmt.Errorf("%w from %q: %q has no incoming link", ErrNoTaskReachable, root, cur.Name)
		}
		if seen[src.Name] {
			return nil, chain, fmt.Errorf("%w: task chain of %q revisits %q", ErrCycle, root, src.Name)
		}
		seen[src.Name] = true
		chain = append(chain, src.Name)
		cur = src
	}
	return cur, chain, nil
}

// Contributors enumerates the category nodes linked into task, directly or
// through pass-through and merge nodes. Inputs are visited depth-first in
// socket order; a node reachable along several paths is listed once, at its
// first visit. Muted category nodes are skipped.
func Contributors(g nodetree.Graph, task *nodetree.Node) ([]*nodetree.Node, []string, error) {
	w := &walk{
		g:        g,
		visiting: make(map[string]bool),
		done:     make(map[string]bool),
	}
	w.visiting[task.Name] = true
	if err := w.inputs(task); err != nil {
		return nil, nil, err
	}
	return w.contributors, w.visited, nil
}

type walk struct {
	g            nodetree.Graph
	visiting     map[string]bool
	done         map[string]bool
	contributors []*nodetree.Node
	visited      []string
}

func (w *walk) inputs(n *nodetree.Node) error {
	for socket := 0; socket < n.InputCount(); socket++ {
		src, ok := w.g.Source(n, socket)
		if !ok {
			continue
		}
		if err := w.visit(src); err != nil {
			return err
		}
	}
	return nil
}

func (w *walk) visit(n *nodetree.Node) error {
	if w.visiting[n.Name] {
		return fmt.Errorf("%w: %q links back into its own inputs", ErrCycle, n.Name)
	}
	if w.done[n.Name] {
		return nil
	}
	w.visiting[n.Name] = true
	defer func() {
		delete(w.visiting, n.Name)
		w.done[n.Name] = true
	}()
	w.visited = append(w.visited, n.Name)

	switch {
	case n.Type.IsPassThrough(), n.Type == nodetree.TypeMerge:
		return w.inputs(n)
	case n.Type.IsStructural():
		// Tasks, viewers and render lists never contribute to another task.
		return nil
	}

	if !n.Muted {
		w.contributors = append(w.contributors, n)
	}
	return w.inputs(n)
}
