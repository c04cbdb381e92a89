// Package workflow sequences the strategist, writer and editor agents into a
// fixed graph with one bounded retry loop:
//
//	load_historical_signals → strategist_trends → strategist_sentiment →
//	strategist_competitors → strategist_brief → writer_agent → editor_agent
//
// After editor_agent, RouteEditorDecision picks writer_agent (retry),
// publish → log_performance, or fail. Runs are synchronous; one Workflow
// may serve concurrent runs, which share nothing but the stats store.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"auto_marketing_agency/generator"
	"auto_marketing_agency/stats"
)

// Options configures a Workflow. Agent is required.
type Options struct {
	Agent      *generator.Agent
	Stats      stats.Store
	Researcher Researcher
	Observer   Observer
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

// Workflow is the compiled marketing graph plus its executor.
type Workflow struct {
	graph *Graph
	exec  *Executor
	now   func() time.Time
	newID func() string
}

func New(opts Options) (*Workflow, error) {
	if opts.Agent == nil {
		return nil, errors.New("workflow: agent is required")
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewFileStore(stats.DefaultPath)
	}
	if opts.Researcher == nil {
		opts.Researcher = StaticResearcher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	nodes := &Nodes{
		Agent:      opts.Agent,
		Stats:      opts.Stats,
		Researcher: opts.Researcher,
		Logger:     opts.Logger,
		Now:        opts.Now,
	}
	g, err := buildGraph(nodes)
	if err != nil {
		return nil, err
	}
	exec := NewExecutor(g, opts.Observer)
	exec.now = opts.Now
	return &Workflow{
		graph: g,
		exec:  exec,
		now:   opts.Now,
		newID: opts.NewID,
	}, nil
}

func buildGraph(n *Nodes) (*Graph, error) {
	g := NewGraph()
	for _, node := range []struct {
		name NodeName
		fn   NodeFunc
	}{
		{NodeLoadSignals, n.LoadHistoricalSignals},
		{NodeTrends, n.DiscoverTrends},
		{NodeSentiment, n.AnalyzeSentiment},
		{NodeCompetitors, n.AnalyzeCompetitors},
		{NodeBrief, n.SynthesizeBrief},
		{NodeWriter, n.WriteContent},
		{NodeEditor, n.EvaluateContent},
		{NodePublish, n.Publish},
		{NodeLogPerformance, n.LogPerformance},
		{NodeFail, n.HandleFailure},
	} {
		if err := g.AddNode(node.name, node.fn); err != nil {
			return nil, err
		}
	}
	if err := g.SetEntry(NodeLoadSignals); err != nil {
		return nil, err
	}

	chain := []NodeName{NodeLoadSignals, NodeTrends, NodeSentiment, NodeCompetitors, NodeBrief, NodeWriter, NodeEditor}
	for i := 0; i+1 < len(chain); i++ {
		if err := g.AddEdge(chain[i], chain[i+1]); err != nil {
			return nil, err
		}
	}
	if err := g.AddConditionalEdges(NodeEditor, RouteEditorDecision, map[Route]NodeName{
		RouteRetry:   NodeWriter,
		RoutePublish: NodePublish,
		RouteFail:    NodeFail,
	}); err != nil {
		return nil, err
	}
	if err := g.AddEdge(NodePublish, NodeLogPerformance); err != nil {
		return nil, err
	}
	if err := g.SetCommitPoint(NodePublish); err != nil {
		return nil, err
	}
	return g, nil
}

// Graph exposes the compiled topology for inspection.
func (w *Workflow) Graph() *Graph {
	return w.graph
}

// Run executes one invocation to completion. A rejected or exhausted run is
// not an error: inspect the returned State. Errors are reserved for invalid
// input and hard failures (a brief that could not be generated, a cancelled
// context); the partial invocation is returned alongside them.
func (w *Workflow) Run(ctx context.Context, initial State) (*Invocation, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	inv := &Invocation{
		ID:        w.newID(),
		State:     initial.withDefaults(w.now()),
		StartedAt: w.now(),
	}
	if err := w.exec.Run(ctx, inv); err != nil {
		return inv, err
	}
	return inv, nil
}
