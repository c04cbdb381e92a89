package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStepLimit is returned when a run executes more nodes than the executor allows.
var ErrStepLimit = errors.New("step limit exceeded")

// DefaultMaxSteps bounds node executions per run. The router already
// bounds the only cycle; this only guards against a miswired graph.
const DefaultMaxSteps = 64

// Invocation is one run of the graph from entry to a terminal node.
type Invocation struct {
	ID         string     `json:"id"`
	State      State      `json:"state"`
	Path       []NodeName `json:"path"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Err        error      `json:"-"`
}

// Executor drives a Graph one node at a time. No two nodes of one run
// ever execute concurrently.
type Executor struct {
	graph    *Graph
	observer Observer
	maxSteps int
	now      func() time.Time
}

func NewExecutor(g *Graph, obs Observer) *Executor {
	if obs == nil {
		obs = NoopObserver{}
	}
	return &Executor{
		graph:    g,
		observer: obs,
		maxSteps: DefaultMaxSteps,
		now:      time.Now,
	}
}

// Run executes inv.State through the graph, updating inv as it goes.
// Node errors abort the run and are returned wrapped with the node name.
// Cancellation is checked between nodes until a commit point has run.
func (e *Executor) Run(ctx context.Context, inv *Invocation) error {
	if e.graph.entry == "" {
		return errors.New("graph has no entry node")
	}
	if inv.StartedAt.IsZero() {
		inv.StartedAt = e.now()
	}
	e.observer.OnWorkflowStart(ctx, inv)

	current := e.graph.entry
	committed := false
	for step := 0; ; step++ {
		if !committed {
			if err := ctx.Err(); err != nil {
				return e.fail(ctx, inv, err)
			}
		}
		if step >= e.maxSteps {
			return e.fail(ctx, inv, fmt.Errorf("%w: %d nodes", ErrStepLimit, e.maxSteps))
		}
		fn, ok := e.graph.nodes[current]
		if !ok {
			return e.fail(ctx, inv, fmt.Errorf("%w: %q", ErrUnknownNode, current))
		}

		e.observer.OnNodeStart(ctx, inv, current, step)
		start := e.now()
		nodeCtx := ctx
		if committed {
			nodeCtx = context.WithoutCancel(ctx)
		}
		next, err := fn(nodeCtx, inv.State)
		e.observer.OnNodeCompleted(ctx, inv, current, step, err, e.now().Sub(start))
		if err != nil {
			return e.fail(ctx, inv, fmt.Errorf("node %s: %w", current, err))
		}
		inv.State = next
		inv.Path = append(inv.Path, current)
		if e.graph.commits[current] {
			committed = true
		}

		to, ok, err := e.graph.next(current, inv.State)
		if err != nil {
			return e.fail(ctx, inv, err)
		}
		if !ok {
			inv.FinishedAt = e.now()
			e.observer.OnWorkflowCompleted(ctx, inv)
			return nil
		}
		current = to
	}
}

func (e *Executor) fail(ctx context.Context, inv *Invocation, err error) error {
	inv.Err = err
	inv.FinishedAt = e.now()
	e.observer.OnWorkflowFailed(ctx, inv, err)
	return err
}
