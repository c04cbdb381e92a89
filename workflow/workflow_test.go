package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_marketing_agency/generator"
	"auto_marketing_agency/stats"
)

func TestRun_AcceptOnFirstPass(t *testing.T) {
	llm := &scriptedLLM{writer: []string{fivePieces()}, editor: []string{scores(9, 9, 9, "great")}}
	store := stats.NewMemoryStore(stats.Table{"vegan energy drink": {Runs: 2, AvgScore: 10}})
	counters := NewCounters()
	wf := newTestWorkflow(t, llm, store, counters)

	inv, err := wf.Run(context.Background(), initialState("  Vegan Energy Drink "))
	require.NoError(t, err)
	s := inv.State

	assert.Equal(t, "run-1", inv.ID)
	assert.Equal(t, DecisionAccept, s.PublishingDecision)
	require.NotNil(t, s.EditorFeedback)
	assert.Equal(t, 27.0, s.EditorFeedback.OverallScore)
	assert.Len(t, s.GeneratedContent, 5)
	assert.Equal(t, s.GeneratedContent, s.FinalContentPack)
	assert.True(t, s.Published())
	assert.Equal(t, 1, s.RevisionCount)
	assert.Equal(t, 1, s.CurrentCycle)
	assert.Contains(t, s.ContentBrief, "Content Brief")
	assert.Equal(t, 2, s.HistoricalPerformance["vegan energy drink"].Runs)

	require.NotNil(t, s.PerformanceMetrics)
	assert.Equal(t, 3, s.PerformanceMetrics.Runs)
	assert.InDelta(t, (10.0*2+27)/3, s.PerformanceMetrics.AvgScore, 1e-9)
	assert.Equal(t, 27.0, s.PerformanceMetrics.LastScore)
	assert.Equal(t, "2025-12-20T09:30:00Z", s.PerformanceMetrics.LastUpdated)
	assert.Equal(t, *s.PerformanceMetrics, store.Load()["vegan energy drink"])

	assert.Equal(t, []NodeName{
		NodeLoadSignals, NodeTrends, NodeSentiment, NodeCompetitors, NodeBrief,
		NodeWriter, NodeEditor, NodePublish, NodeLogPerformance,
	}, inv.Path)
	assert.Equal(t, 1, llm.count(generator.KindBrief))
	assert.Equal(t, 1, llm.count(generator.KindWriter))

	snap := counters.Snapshot()
	assert.Equal(t, int64(1), snap.Completed)
	assert.Equal(t, int64(1), snap.Published)
	assert.Equal(t, int64(1), snap.Nodes[NodeWriter])
}

func TestRun_RejectGoesStraightToFail(t *testing.T) {
	llm := &scriptedLLM{writer: []string{fivePieces()}, editor: []string{scores(3, 3, 3, "off brand")}}
	store := stats.NewMemoryStore(nil)
	wf := newTestWorkflow(t, llm, store, nil)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.NoError(t, err)
	s := inv.State

	assert.Equal(t, DecisionReject, s.PublishingDecision)
	assert.Equal(t, 9.0, s.EditorFeedback.OverallScore)
	require.NotNil(t, s.FinalContentPack)
	assert.Empty(t, s.FinalContentPack)
	assert.False(t, s.Published())
	assert.Equal(t, 1, llm.count(generator.KindWriter), "reject must not retry")
	assert.Equal(t, 1, s.RevisionCount)
	assert.Nil(t, s.PerformanceMetrics)
	assert.Empty(t, store.Load(), "failed runs are not logged")
	assert.Equal(t, NodeFail, inv.Path[len(inv.Path)-1])
}

func TestRun_NeedsImprovementExhaustsRetries(t *testing.T) {
	llm := &scriptedLLM{writer: []string{fivePieces()}, editor: []string{scores(6, 6, 6, "needs punch")}}
	wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), nil)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.NoError(t, err)
	s := inv.State

	assert.Equal(t, MaxRevisions, llm.count(generator.KindWriter))
	assert.Equal(t, MaxRevisions, llm.count(generator.KindEditor))
	assert.Equal(t, 3, s.RevisionCount)
	assert.Equal(t, DecisionNeedsImprovement, s.PublishingDecision)
	assert.Empty(t, s.FinalContentPack)
	assert.NotNil(t, s.FinalContentPack)
	require.Len(t, s.Rounds, 3)
	for i, r := range s.Rounds {
		assert.Equal(t, i+1, r.Number)
	}

	writes := llm.promptsOf(generator.KindWriter)
	require.Len(t, writes, 3)
	assert.NotContains(t, writes[0].User, "REVISION REQUIRED")
	assert.Contains(t, writes[1].User, "REVISION REQUIRED: Fix these issues: needs punch")
	assert.Contains(t, writes[2].User, "REVISION REQUIRED")
	assert.Empty(t, writes[0].History)
	require.Len(t, writes[1].History, 1)
	assert.Equal(t, "assistant", writes[1].History[0].Role)
	assert.Contains(t, writes[1].History[0].Content, `"title":"Fuel"`)
}

func TestRun_RetryWithEmptyRationaleStillAsksForRevision(t *testing.T) {
	llm := &scriptedLLM{writer: []string{fivePieces()}, editor: []string{scores(6, 6, 6, ""), scores(9, 9, 9, "")}}
	wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), nil)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.NoError(t, err)
	assert.True(t, inv.State.Published())

	writes := llm.promptsOf(generator.KindWriter)
	require.Len(t, writes, 2)
	assert.Contains(t, writes[1].User, "REVISION REQUIRED: Fix these issues:")
	require.Len(t, writes[1].History, 1)
}

func TestRun_ImproveThenAccept(t *testing.T) {
	llm := &scriptedLLM{
		writer: []string{fivePieces()},
		editor: []string{scores(7, 7, 7, "tighten hooks"), scores(8, 8, 8, "good")},
	}
	store := stats.NewMemoryStore(nil)
	wf := newTestWorkflow(t, llm, store, nil)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.NoError(t, err)
	s := inv.State

	assert.Equal(t, 2, llm.count(generator.KindWriter))
	assert.Equal(t, 2, s.RevisionCount)
	assert.Equal(t, DecisionAccept, s.PublishingDecision)
	assert.True(t, s.Published())
	assert.Equal(t, 1, s.CurrentCycle)
	assert.Equal(t, 24.0, s.PerformanceMetrics.LastScore)
	assert.Equal(t, 1, store.Load()["vegan energy drink"].Runs)
}

func TestRun_MalformedWriterOutputDegrades(t *testing.T) {
	llm := &scriptedLLM{writer: []string{"Sure! Here are five posts..."}, editor: []string{scores(9, 9, 9, "ok")}}
	wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), nil)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.NoError(t, err)

	require.Len(t, inv.State.GeneratedContent, 1)
	piece := inv.State.GeneratedContent[0]
	assert.Equal(t, "Error", piece.Title)
	assert.Equal(t, "tweet", piece.FormatType)
	assert.Equal(t, "twitter", piece.Platform)
	assert.Contains(t, piece.Content, "Parsing Failed")
}

func TestRun_WriterTransportErrorDegrades(t *testing.T) {
	llm := &scriptedLLM{writeErr: errors.New("502 bad gateway"), editor: []string{scores(3, 3, 3, "")}}
	wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), nil)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.NoError(t, err)
	assert.Equal(t, []generator.ContentPiece{PlaceholderPiece()}, inv.State.GeneratedContent)
}

func TestRun_MalformedEditorOutputAllowsRetry(t *testing.T) {
	llm := &scriptedLLM{
		writer: []string{fivePieces()},
		editor: []string{"I think it's great", scores(9, 9, 9, "fixed")},
	}
	wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), nil)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.NoError(t, err)
	s := inv.State

	require.Len(t, s.Rounds, 2)
	first := s.Rounds[0].Feedback
	assert.True(t, first.Degraded)
	assert.Equal(t, 5.0, first.ToneScore)
	assert.Equal(t, 5.0, first.FactScore)
	assert.Equal(t, 5.0, first.BrandScore)
	assert.Equal(t, 15.0, first.OverallScore)
	assert.Equal(t, "Parsing Error", first.Rationale)
	assert.Equal(t, DecisionNeedsImprovement, first.Judgement)

	assert.Equal(t, 2, llm.count(generator.KindWriter), "15 is needs_improvement, so the loop retries")
	assert.Contains(t, llm.promptsOf(generator.KindWriter)[1].User, "Parsing Error")
	assert.True(t, s.Published())
}

func TestRun_OverflowingScoresFallBack(t *testing.T) {
	llm := &scriptedLLM{
		writer: []string{fivePieces()},
		editor: []string{`{"tone_score": -1e308, "fact_score": -1e308, "brand_score": -1e308}`, scores(9, 9, 9, "")},
	}
	wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), nil)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.NoError(t, err)
	require.Len(t, inv.State.Rounds, 2)
	assert.True(t, inv.State.Rounds[0].Feedback.Degraded)
	assert.Equal(t, 15.0, inv.State.Rounds[0].Feedback.OverallScore)

	_, err = json.Marshal(inv.State)
	assert.NoError(t, err)
}

func TestRun_BriefErrorPropagates(t *testing.T) {
	boom := errors.New("401 unauthorized")
	llm := &scriptedLLM{briefErr: boom}
	counters := NewCounters()
	wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), counters)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), string(NodeBrief))

	require.NotNil(t, inv)
	assert.Equal(t, err, inv.Err)
	assert.Equal(t, 0, llm.count(generator.KindWriter))
	assert.Nil(t, inv.State.FinalContentPack)
	assert.Equal(t, NodeCompetitors, inv.Path[len(inv.Path)-1])
	assert.Equal(t, int64(1), counters.Snapshot().Failed)
}

func TestRun_CancelledContext(t *testing.T) {
	llm := &scriptedLLM{writer: []string{fivePieces()}, editor: []string{scores(9, 9, 9, "")}}
	wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := wf.Run(ctx, initialState("vegan energy drink"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_StatsSaveFailureIsLoggedNotFatal(t *testing.T) {
	llm := &scriptedLLM{writer: []string{fivePieces()}, editor: []string{scores(9, 9, 9, "")}}
	store := stats.NewMemoryStore(nil)
	store.SaveErr = errors.New("read-only filesystem")
	wf := newTestWorkflow(t, llm, store, nil)

	inv, err := wf.Run(context.Background(), initialState("vegan energy drink"))
	require.NoError(t, err)
	require.NotNil(t, inv.State.PerformanceMetrics)
	assert.Equal(t, 1, inv.State.PerformanceMetrics.Runs)
	assert.Empty(t, store.Load())
}

func TestRun_RevisionCountMatchesEvaluations(t *testing.T) {
	scripts := [][]string{
		{scores(9, 9, 9, "")},
		{scores(3, 3, 3, "")},
		{scores(6, 6, 6, ""), scores(9, 9, 9, "")},
		{scores(6, 6, 6, ""), scores(6, 6, 6, ""), scores(1, 1, 1, "")},
		{scores(6, 6, 6, "")},
	}
	for i, editor := range scripts {
		llm := &scriptedLLM{writer: []string{fivePieces()}, editor: editor}
		wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), nil)
		inv, err := wf.Run(context.Background(), initialState("topic"))
		require.NoError(t, err, "script %d", i)
		assert.Equal(t, llm.count(generator.KindEditor), inv.State.RevisionCount, "script %d", i)
		assert.LessOrEqual(t, llm.count(generator.KindWriter), MaxRevisions, "script %d", i)
	}
}

func TestRun_InvalidInitialState(t *testing.T) {
	wf := newTestWorkflow(t, &scriptedLLM{}, stats.NewMemoryStore(nil), nil)

	bad := initialState("")
	_, err := wf.Run(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidState)

	bad = initialState("q")
	bad.RevisionCount = 2
	_, err = wf.Run(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidState)

	bad = initialState("q")
	bad.Frequency = "Hourly"
	_, err = wf.Run(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRun_DefaultsOptionalFields(t *testing.T) {
	llm := &scriptedLLM{writer: []string{fivePieces()}, editor: []string{scores(9, 9, 9, "")}}
	wf := newTestWorkflow(t, llm, stats.NewMemoryStore(nil), nil)

	in := initialState("q")
	in.Frequency = ""
	in.Date = ""
	inv, err := wf.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, CadenceWeekly, inv.State.Frequency)
	assert.Equal(t, "2025-12-20", inv.State.Date)
}

func TestNew_RequiresAgent(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

// cancelAfter cancels the run's context once the named node completes.
type cancelAfter struct {
	NoopObserver
	node   NodeName
	cancel context.CancelFunc
}

func (c *cancelAfter) OnNodeCompleted(_ context.Context, _ *Invocation, n NodeName, _ int, _ error, _ time.Duration) {
	if n == c.node {
		c.cancel()
	}
}

func TestRun_CancelAfterPublishStillLogsPerformance(t *testing.T) {
	llm := &scriptedLLM{writer: []string{fivePieces()}, editor: []string{scores(9, 9, 9, "")}}
	store := stats.NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wf := newTestWorkflow(t, llm, store, &cancelAfter{node: NodePublish, cancel: cancel})

	inv, err := wf.Run(ctx, initialState("vegan energy drink"))
	require.NoError(t, err)
	assert.True(t, inv.State.Published())
	assert.Equal(t, NodeLogPerformance, inv.Path[len(inv.Path)-1])
	require.NotNil(t, inv.State.PerformanceMetrics)
	assert.Equal(t, 27.0, store.Load()["vegan energy drink"].LastScore)
}

func TestRun_CancelBeforePublishAborts(t *testing.T) {
	llm := &scriptedLLM{writer: []string{fivePieces()}, editor: []string{scores(9, 9, 9, "")}}
	store := stats.NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wf := newTestWorkflow(t, llm, store, &cancelAfter{node: NodeEditor, cancel: cancel})

	inv, err := wf.Run(ctx, initialState("vegan energy drink"))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, inv.State.Published())
	assert.Empty(t, store.Load())
}
