package graph

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/switchboard/pkg/domain"
)

// ErrInvalidGraph is wrapped by every error Build returns.
var ErrInvalidGraph = errors.New("invalid graph")

// Edge is a declared transition between two nodes.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is an immutable, validated set of nodes.
type Graph struct {
	entry string
	nodes map[string]Node
	order []string
}

// Entry returns the name of the node a fresh request starts at.
func (g *Graph) Entry() string { return g.entry }

// Node looks up a node by name.
func (g *Graph) Node(name string) (Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Has reports whether name is registered.
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Names returns node names in registration order.
func (g *Graph) Names() []string {
	return append([]string(nil), g.order...)
}

// Allows reports whether from declared to as one of its targets.
func (g *Graph) Allows(from, to string) bool {
	n, ok := g.nodes[from]
	if !ok {
		return false
	}
	return slices.Contains(n.Targets(), to)
}

// Edges returns every declared transition, in registration order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, name := range g.order {
		for _, to := range g.nodes[name].Targets() {
			edges = append(edges, Edge{From: name, To: to})
		}
	}
	return edges
}

// Builder manages the graph construction.
type Builder struct {
	entry string
	nodes []Node
}

// NewBuilder creates a new graph builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add registers nodes. Duplicates are reported by Build.
func (b *Builder) Add(nodes ...Node) *Builder {
	b.nodes = append(b.nodes, nodes...)
	return b
}

// Entry sets the start node.
func (b *Builder) Entry(name string) *Builder {
	b.entry = name
	return b
}

// Build validates the topology and freezes it.
// Every problem found is reported, not only the first.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		entry: b.entry,
		nodes: make(map[string]Node, len(b.nodes)),
	}

	var errs []error
	for _, n := range b.nodes {
		if n == nil {
			errs = append(errs, errors.New("nil node"))
			continue
		}
		name := n.Name()
		switch {
		case name == "":
			errs = append(errs, errors.New("node with empty name"))
			continue
		case name == domain.End:
			errs = append(errs, fmt.Errorf("node name %q is reserved", name))
			continue
		case g.Has(name):
			errs = append(errs, fmt.Errorf("duplicate node %q", name))
			continue
		}
		g.nodes[name] = n
		g.order = append(g.order, name)
	}

	if g.entry == "" {
		errs = append(errs, errors.New("no entry node"))
	} else if !g.Has(g.entry) {
		errs = append(errs, fmt.Errorf("entry node %q is not registered", g.entry))
	}

	for _, name := range g.order {
		targets := g.nodes[name].Targets()
		if len(targets) == 0 {
			errs = append(errs, fmt.Errorf("node %q declares no targets", name))
		}
		for _, to := range targets {
			if to != domain.End && !g.Has(to) {
				errs = append(errs, fmt.Errorf("node %q targets unknown node %q", name, to))
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}
	return g, nil
}
