// Package graph holds the build graph: named targets, the targets each of
// them depends on, and the action that produces it.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goplus/sdkoverlay/internal/par"
)

// ErrUnknownTarget is returned for references to targets not in the graph.
var ErrUnknownTarget = errors.New("unknown target")

// Action produces a target. Actions of independent targets may run
// concurrently.
type Action func(ctx context.Context) error

// Node is a build target.
type Node struct {
	Name string
	Deps []string
	// Action is nil for phony targets that only group their dependencies.
	Action Action
}

// CycleError indicates that the graph contains a cycle.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Graph is a set of nodes keyed by name. Nodes keep their insertion order.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Add registers n. Names must be unique.
func (g *Graph) Add(n *Node) error {
	if n.Name == "" {
		return errors.New("graph: empty target name")
	}
	if _, ok := g.nodes[n.Name]; ok {
		return fmt.Errorf("graph: duplicate target %s", n.Name)
	}
	g.nodes[n.Name] = n
	g.order = append(g.order, n.Name)
	return nil
}

// Node returns the node named name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

// Closure returns target and everything it transitively depends on, ordered
// so that every node comes after its dependencies. Ties keep the order of the
// Deps lists, which makes the result deterministic.
func (g *Graph) Closure(target string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int)
	var (
		order []string
		path  []string
	)
	var visit func(name string) error
	visit = func(name string) error {
		n, ok := g.nodes[name]
		if !ok {
			if len(path) > 0 {
				return fmt.Errorf("%w %s (required by %s)", ErrUnknownTarget, name, path[len(path)-1])
			}
			return fmt.Errorf("%w %s", ErrUnknownTarget, name)
		}
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == name {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), path[start:]...), name)
			return &CycleError{Cycle: cycle}
		}
		state[name] = visiting
		path = append(path, name)
		for _, dep := range n.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		order = append(order, name)
		return nil
	}
	if err := visit(target); err != nil {
		return nil, err
	}
	return order, nil
}

// Run builds target with at most jobs actions running at once. A node starts
// only after all of its dependencies succeeded; when a node fails, the nodes
// depending on it are not started, but independent nodes still run. All
// failures are returned joined together.
func (g *Graph) Run(ctx context.Context, target string, jobs int) error {
	order, err := g.Closure(target)
	if err != nil {
		return err
	}
	if jobs < 1 {
		jobs = 1
	}

	var (
		mu         sync.Mutex
		pending    = make(map[string]int, len(order))
		dependents = make(map[string][]string)
	)
	for _, name := range order {
		deps := uniq(g.nodes[name].Deps)
		pending[name] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var w par.Work[string]
	for _, name := range order {
		if pending[name] == 0 {
			w.Add(name)
		}
	}
	return w.Do(ctx, jobs, func(ctx context.Context, name string) error {
		n := g.nodes[name]
		if n.Action != nil {
			if err := n.Action(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
		mu.Lock()
		var ready []string
		for _, d := range dependents[name] {
			pending[d]--
			if pending[d] == 0 {
				ready = append(ready, d)
			}
		}
		mu.Unlock()
		for _, d := range ready {
			w.Add(d)
		}
		return nil
	})
}

func uniq(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
