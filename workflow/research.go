package workflow

import (
	"context"
	"fmt"
)

// TrendingTopic is one trend surfaced for the query.
type TrendingTopic struct {
	Name              string `json:"name"`
	WhyItMatters      string `json:"why_it_matters"`
	AudienceRelevance string `json:"audience_relevance"`
}

// SentimentSummary describes how the audience feels about the topic.
type SentimentSummary struct {
	DominantSentiment string   `json:"dominant_sentiment"`
	PainPoints        []string `json:"pain_points"`
	Desires           []string `json:"desires"`
}

// CompetitorMove is one observed competitor action.
type CompetitorMove struct {
	Name string `json:"name"`
	Move string `json:"move"`
}

// CompetitorSummary lists competitor moves and the gaps they leave.
type CompetitorSummary struct {
	Competitors []CompetitorMove `json:"competitors"`
	Gaps        []string         `json:"gaps"`
}

// Researcher gathers the signals the strategist brief is built from.
// Results are scoped to one run.
type Researcher interface {
	TrendingTopics(ctx context.Context, query, audience string) ([]TrendingTopic, error)
	Sentiment(ctx context.Context, query, audience string) (SentimentSummary, error)
	Competitors(ctx context.Context, query string) (CompetitorSummary, error)
}

// StaticResearcher returns one deterministic item per call and makes no
// network requests. Swap in a search-backed Researcher for live signals.
type StaticResearcher struct{}

func (StaticResearcher) TrendingTopics(_ context.Context, query, _ string) ([]TrendingTopic, error) {
	return []TrendingTopic{{
		Name:              fmt.Sprintf("Trends for %s", query),
		WhyItMatters:      "High search volume",
		AudienceRelevance: "Direct impact on strategy",
	}}, nil
}

func (StaticResearcher) Sentiment(_ context.Context, _, _ string) (SentimentSummary, error) {
	return SentimentSummary{
		DominantSentiment: "Curious",
		PainPoints:        []string{"Efficiency", "Cost"},
		Desires:           []string{"Automation", "Results"},
	}, nil
}

func (StaticResearcher) Competitors(_ context.Context, _ string) (CompetitorSummary, error) {
	return CompetitorSummary{
		Competitors: []CompetitorMove{{Name: "Generic Competitor", Move: "Launching AI tools"}},
		Gaps:        []string{"Personalization"},
	}, nil
}
