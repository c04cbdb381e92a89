package workflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Observer receives lifecycle callbacks from the Executor.
//
// Callbacks run inline on the executing goroutine; keep them fast.
type Observer interface {
	OnWorkflowStart(ctx context.Context, inv *Invocation)
	// OnWorkflowCompleted fires when a terminal node is reached, on the
	// publish path and on the fail path alike.
	OnWorkflowCompleted(ctx context.Context, inv *Invocation)
	// OnWorkflowFailed fires when a node returns an error and the run aborts.
	OnWorkflowFailed(ctx context.Context, inv *Invocation, err error)
	OnNodeStart(ctx context.Context, inv *Invocation, node NodeName, step int)
	OnNodeCompleted(ctx context.Context, inv *Invocation, node NodeName, step int, err error, d time.Duration)
}

// NoopObserver does nothing.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowStart(ctx context.Context, inv *Invocation)                {}
func (NoopObserver) OnWorkflowCompleted(ctx context.Context, inv *Invocation)            {}
func (NoopObserver) OnWorkflowFailed(ctx context.Context, inv *Invocation, err error)    {}
func (NoopObserver) OnNodeStart(ctx context.Context, inv *Invocation, n NodeName, i int) {}
func (NoopObserver) OnNodeCompleted(ctx context.Context, inv *Invocation, n NodeName, i int, err error, d time.Duration) {
}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver forwards to every non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopObserver{}
	case 1:
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowStart(ctx context.Context, inv *Invocation) {
	for _, o := range c.observers {
		o.OnWorkflowStart(ctx, inv)
	}
}

func (c *CompositeObserver) OnWorkflowCompleted(ctx context.Context, inv *Invocation) {
	for _, o := range c.observers {
		o.OnWorkflowCompleted(ctx, inv)
	}
}

func (c *CompositeObserver) OnWorkflowFailed(ctx context.Context, inv *Invocation, err error) {
	for _, o := range c.observers {
		o.OnWorkflowFailed(ctx, inv, err)
	}
}

func (c *CompositeObserver) OnNodeStart(ctx context.Context, inv *Invocation, n NodeName, i int) {
	for _, o := range c.observers {
		o.OnNodeStart(ctx, inv, n, i)
	}
}

func (c *CompositeObserver) OnNodeCompleted(ctx context.Context, inv *Invocation, n NodeName, i int, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnNodeCompleted(ctx, inv, n, i, err, d)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver logs to logger, or slog.Default() when nil.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnWorkflowStart(ctx context.Context, inv *Invocation) {
	o.Logger.InfoContext(ctx, "workflow_start",
		slog.String("run_id", inv.ID),
		slog.String("query", inv.State.UserQuery),
	)
}

func (o *LoggingObserver) OnWorkflowCompleted(ctx context.Context, inv *Invocation) {
	var overall float64
	if fb := inv.State.EditorFeedback; fb != nil {
		overall = fb.OverallScore
	}
	o.Logger.InfoContext(ctx, "workflow_completed",
		slog.String("run_id", inv.ID),
		slog.String("decision", string(inv.State.PublishingDecision)),
		slog.Bool("published", inv.State.Published()),
		slog.Int("revisions", inv.State.RevisionCount),
		slog.Float64("overall_score", overall),
		slog.Duration("elapsed", inv.FinishedAt.Sub(inv.StartedAt)),
	)
}

func (o *LoggingObserver) OnWorkflowFailed(ctx context.Context, inv *Invocation, err error) {
	o.Logger.ErrorContext(ctx, "workflow_failed",
		slog.String("run_id", inv.ID),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnNodeStart(ctx context.Context, inv *Invocation, n NodeName, i int) {
	o.Logger.DebugContext(ctx, "node_start",
		slog.String("run_id", inv.ID),
		slog.String("node", string(n)),
		slog.Int("step", i),
	)
}

func (o *LoggingObserver) OnNodeCompleted(ctx context.Context, inv *Invocation, n NodeName, i int, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "node_completed",
		slog.String("run_id", inv.ID),
		slog.String("node", string(n)),
		slog.Int("step", i),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

// Counters tracks run outcomes and per-node invocation counts.
type Counters struct {
	NoopObserver

	started   atomic.Int64
	completed atomic.Int64
	published atomic.Int64
	failed    atomic.Int64

	mu    sync.Mutex
	nodes map[NodeName]int64
}

// CountersSnapshot is an immutable copy of Counters.
type CountersSnapshot struct {
	Started   int64
	Completed int64
	Published int64
	Failed    int64
	Nodes     map[NodeName]int64
}

func NewCounters() *Counters {
	return &Counters{nodes: make(map[NodeName]int64)}
}

func (c *Counters) OnWorkflowStart(ctx context.Context, inv *Invocation) {
	c.started.Add(1)
}

func (c *Counters) OnWorkflowCompleted(ctx context.Context, inv *Invocation) {
	c.completed.Add(1)
	if inv.State.Published() {
		c.published.Add(1)
	}
}

func (c *Counters) OnWorkflowFailed(ctx context.Context, inv *Invocation, err error) {
	c.failed.Add(1)
}

func (c *Counters) OnNodeStart(ctx context.Context, inv *Invocation, n NodeName, i int) {
	c.mu.Lock()
	if c.nodes == nil {
		c.nodes = make(map[NodeName]int64)
	}
	c.nodes[n]++
	c.mu.Unlock()
}

func (c *Counters) Snapshot() CountersSnapshot {
	c.mu.Lock()
	nodes := make(map[NodeName]int64, len(c.nodes))
	for k, v := range c.nodes {
		nodes[k] = v
	}
	c.mu.Unlock()
	return CountersSnapshot{
		Started:   c.started.Load(),
		Completed: c.completed.Load(),
		Published: c.published.Load(),
		Failed:    c.failed.Load(),
		Nodes:     nodes,
	}
}
