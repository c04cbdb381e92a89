package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownNode is returned when an edge or route names a node that was never added.
var ErrUnknownNode = errors.New("unknown node")

// NodeName identifies a node in the graph.
type NodeName string

const (
	NodeLoadSignals    NodeName = "load_historical_signals"
	NodeTrends         NodeName = "strategist_trends"
	NodeSentiment      NodeName = "strategist_sentiment"
	NodeCompetitors    NodeName = "strategist_competitors"
	NodeBrief          NodeName = "strategist_brief"
	NodeWriter         NodeName = "writer_agent"
	NodeEditor         NodeName = "editor_agent"
	NodePublish        NodeName = "publish"
	NodeLogPerformance NodeName = "log_performance"
	NodeFail           NodeName = "fail"
)

// NodeFunc transforms the state. Returning an error aborts the run.
type NodeFunc func(ctx context.Context, s State) (State, error)

type branch struct {
	route   RouterFunc
	targets map[Route]NodeName
}

// Graph is a transition table: each node has either one fixed successor,
// a routed set of successors, or none (terminal).
type Graph struct {
	entry    NodeName
	order    []NodeName
	nodes    map[NodeName]NodeFunc
	edges    map[NodeName]NodeName
	branches map[NodeName]branch
	commits  map[NodeName]bool
}

func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[NodeName]NodeFunc),
		edges:    make(map[NodeName]NodeName),
		branches: make(map[NodeName]branch),
		commits:  make(map[NodeName]bool),
	}
}

func (g *Graph) AddNode(name NodeName, fn NodeFunc) error {
	if name == "" {
		return errors.New("node name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("node %q has nil function", name)
	}
	if _, ok := g.nodes[name]; ok {
		return fmt.Errorf("node %q already added", name)
	}
	g.nodes[name] = fn
	g.order = append(g.order, name)
	return nil
}

func (g *Graph) SetEntry(name NodeName) error {
	if _, ok := g.nodes[name]; !ok {
		return fmt.Errorf("%w: entry %q", ErrUnknownNode, name)
	}
	g.entry = name
	return nil
}

// AddEdge declares the fixed successor of from.
func (g *Graph) AddEdge(from, to NodeName) error {
	if err := g.checkSource(from); err != nil {
		return err
	}
	if _, ok := g.nodes[to]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, to)
	}
	g.edges[from] = to
	return nil
}

// AddConditionalEdges makes route decide the successor of from.
func (g *Graph) AddConditionalEdges(from NodeName, route RouterFunc, targets map[Route]NodeName) error {
	if err := g.checkSource(from); err != nil {
		return err
	}
	if route == nil || len(targets) == 0 {
		return fmt.Errorf("node %q: router and targets are required", from)
	}
	copied := make(map[Route]NodeName, len(targets))
	for r, to := range targets {
		if _, ok := g.nodes[to]; !ok {
			return fmt.Errorf("%w: %q (route %s)", ErrUnknownNode, to, r)
		}
		copied[r] = to
	}
	g.branches[from] = branch{route: route, targets: copied}
	return nil
}

// SetCommitPoint marks name as the point of no return: once it has run, the
// executor finishes the run even if the context is cancelled.
func (g *Graph) SetCommitPoint(name NodeName) error {
	if _, ok := g.nodes[name]; !ok {
		return fmt.Errorf("%w: commit point %q", ErrUnknownNode, name)
	}
	g.commits[name] = true
	return nil
}

func (g *Graph) checkSource(from NodeName) error {
	if _, ok := g.nodes[from]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, from)
	}
	_, hasEdge := g.edges[from]
	_, hasBranch := g.branches[from]
	if hasEdge || hasBranch {
		return fmt.Errorf("node %q already has outgoing edges", from)
	}
	return nil
}

// Entry returns the first node executed.
func (g *Graph) Entry() NodeName {
	return g.entry
}

// Nodes lists nodes in the order they were added.
func (g *Graph) Nodes() []NodeName {
	return slices.Clone(g.order)
}

// Successors lists every node reachable in one step from name.
func (g *Graph) Successors(name NodeName) []NodeName {
	if to, ok := g.edges[name]; ok {
		return []NodeName{to}
	}
	b, ok := g.branches[name]
	if !ok {
		return nil
	}
	out := make([]NodeName, 0, len(b.targets))
	for _, to := range b.targets {
		if !slices.Contains(out, to) {
			out = append(out, to)
		}
	}
	slices.Sort(out)
	return out
}

// next resolves the successor of from given the state it produced.
// ok is false when from is terminal.
func (g *Graph) next(from NodeName, s State) (NodeName, bool, error) {
	if to, ok := g.edges[from]; ok {
		return to, true, nil
	}
	b, ok := g.branches[from]
	if !ok {
		return "", false, nil
	}
	r := b.route(s)
	to, ok := b.targets[r]
	if !ok {
		return "", false, fmt.Errorf("%w: node %q routed to %q", ErrUnknownNode, from, r)
	}
	return to, true, nil
}
