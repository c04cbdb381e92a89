package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"auto_marketing_agency/generator"
	"auto_marketing_agency/stats"
)

// Nodes holds the collaborators the node functions need. Each method is a
// NodeFunc; only SynthesizeBrief, WriteContent and EvaluateContent call the
// model and only LoadHistoricalSignals and LogPerformance touch the stats store.
type Nodes struct {
	Agent      *generator.Agent
	Stats      stats.Store
	Researcher Researcher
	Logger     *slog.Logger
	Now        func() time.Time
}

func (n *Nodes) LoadHistoricalSignals(_ context.Context, s State) (State, error) {
	s.HistoricalPerformance = n.Stats.Load()
	return s, nil
}

func (n *Nodes) DiscoverTrends(ctx context.Context, s State) (State, error) {
	topics, err := n.Researcher.TrendingTopics(ctx, s.UserQuery, s.TargetAudience)
	if err != nil {
		return s, err
	}
	s.TrendingTopics = topics
	return s, nil
}

func (n *Nodes) AnalyzeSentiment(ctx context.Context, s State) (State, error) {
	summary, err := n.Researcher.Sentiment(ctx, s.UserQuery, s.TargetAudience)
	if err != nil {
		return s, err
	}
	s.SentimentSummary = &summary
	return s, nil
}

func (n *Nodes) AnalyzeCompetitors(ctx context.Context, s State) (State, error) {
	summary, err := n.Researcher.Competitors(ctx, s.UserQuery)
	if err != nil {
		return s, err
	}
	s.CompetitorSummary = &summary
	return s, nil
}

// SynthesizeBrief stores the strategist output verbatim. Model errors abort the run.
func (n *Nodes) SynthesizeBrief(ctx context.Context, s State) (State, error) {
	historical := s.HistoricalPerformance
	if historical == nil {
		historical = stats.Table{}
	}
	brief, err := n.Agent.Brief(ctx, generator.BriefInput{
		Query:       s.UserQuery,
		Audience:    s.TargetAudience,
		Voice:       s.BrandVoice,
		Cadence:     string(s.Frequency),
		Date:        s.Date,
		Historical:  compactJSON(historical),
		Trends:      compactJSON(s.TrendingTopics),
		Sentiment:   compactJSON(s.SentimentSummary),
		Competitors: compactJSON(s.CompetitorSummary),
	})
	if err != nil {
		return s, err
	}
	s.ContentBrief = brief
	return s, nil
}

// WriteContent replaces the generated content with a fresh batch. An answer
// that cannot be used degrades to a single placeholder piece instead of
// failing the run; only a cancelled context is returned as an error.
// Retries send the previous batch back along with the editor rationale.
func (n *Nodes) WriteContent(ctx context.Context, s State) (State, error) {
	var rev *generator.Revision
	if s.RevisionCount > 0 && s.EditorFeedback != nil {
		rev = &generator.Revision{
			Notes:    s.EditorFeedback.Rationale,
			Previous: s.GeneratedContent,
		}
	}

	pieces, err := n.Agent.Write(ctx, s.ContentBrief, rev)
	switch {
	case err != nil && ctx.Err() != nil:
		return s, ctx.Err()
	case err != nil:
		n.Logger.WarnContext(ctx, "writer output unusable, using placeholder",
			slog.Int("revision", s.RevisionCount),
			slog.Bool("malformed", generator.IsMalformed(err)),
			slog.Any("error", err),
		)
		pieces = []generator.ContentPiece{PlaceholderPiece()}
	case len(pieces) != generator.PieceCount:
		n.Logger.WarnContext(ctx, "writer returned unexpected piece count",
			slog.Int("want", generator.PieceCount),
			slog.Int("got", len(pieces)),
		)
	}
	s.GeneratedContent = pieces
	return s, nil
}

// EvaluateContent scores the current pieces and always advances RevisionCount.
// An unusable answer degrades to FallbackScores.
func (n *Nodes) EvaluateContent(ctx context.Context, s State) (State, error) {
	scores, err := n.Agent.Evaluate(ctx, s.BrandVoice, s.GeneratedContent)
	degraded := false
	if err != nil {
		if ctx.Err() != nil {
			return s, ctx.Err()
		}
		n.Logger.WarnContext(ctx, "editor output unusable, using default scores",
			slog.Int("revision", s.RevisionCount),
			slog.Bool("malformed", generator.IsMalformed(err)),
			slog.Any("error", err),
		)
		scores = FallbackScores()
		degraded = true
	}

	fb := NewFeedback(scores)
	fb.Degraded = degraded
	s.EditorFeedback = &fb
	s.PublishingDecision = fb.Judgement
	s.RevisionCount++
	return s.appendRound(Round{
		Number:   s.RevisionCount,
		Pieces:   s.GeneratedContent,
		Feedback: fb,
	}), nil
}

// Publish snapshots the generated content into the final pack.
func (n *Nodes) Publish(_ context.Context, s State) (State, error) {
	s.FinalContentPack = append([]generator.ContentPiece{}, s.GeneratedContent...)
	s.CurrentCycle++
	return s, nil
}

// LogPerformance folds this run's overall score into the stats table.
// A failed save is logged and otherwise ignored; the run still succeeds.
func (n *Nodes) LogPerformance(ctx context.Context, s State) (State, error) {
	key := stats.TopicKey(s.UserQuery)
	var score float64
	if s.EditorFeedback != nil {
		score = s.EditorFeedback.OverallScore
	}

	table := n.Stats.Load()
	if table == nil {
		table = stats.Table{}
	}
	entry := table[key].Record(score, n.Now())
	table[key] = entry
	if err := n.Stats.Save(table); err != nil {
		n.Logger.ErrorContext(ctx, "saving performance stats failed",
			slog.String("topic", key),
			slog.Any("error", err),
		)
	}
	s.PerformanceMetrics = &entry
	return s, nil
}

func (n *Nodes) HandleFailure(_ context.Context, s State) (State, error) {
	s.FinalContentPack = []generator.ContentPiece{}
	return s, nil
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
