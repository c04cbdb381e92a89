package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"auto_marketing_agency/generator"
)

func TestDecide_Boundaries(t *testing.T) {
	cases := []struct {
		overall float64
		want    Decision
	}{
		{0, DecisionReject},
		{14, DecisionReject},
		{14.9, DecisionReject},
		{15, DecisionNeedsImprovement},
		{23, DecisionNeedsImprovement},
		{23.9, DecisionNeedsImprovement},
		{24, DecisionAccept},
		{30, DecisionAccept},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Decide(tc.overall), "overall=%v", tc.overall)
	}
}

func TestOverallScore_Clamp(t *testing.T) {
	assert.Equal(t, 27.0, OverallScore(9, 9, 9))
	assert.Equal(t, 30.0, OverallScore(10, 10, 10))
	assert.Equal(t, 30.0, OverallScore(12, 12, 12))
	assert.Equal(t, 9.0, OverallScore(3, 3, 3))
}

func TestNewFeedback(t *testing.T) {
	fb := NewFeedback(generator.Scores{Tone: 15, Fact: 10, Brand: 10, Rationale: "loud"})
	assert.Equal(t, 15.0, fb.ToneScore, "components are not clamped")
	assert.Equal(t, 30.0, fb.OverallScore)
	assert.Equal(t, DecisionAccept, fb.Judgement)
	assert.Equal(t, "loud", fb.Rationale)

	fallback := NewFeedback(FallbackScores())
	assert.Equal(t, 15.0, fallback.OverallScore)
	assert.Equal(t, DecisionNeedsImprovement, fallback.Judgement)
	assert.Equal(t, "Parsing Error", fallback.Rationale)
}

func TestRouteEditorDecision(t *testing.T) {
	cases := []struct {
		decision Decision
		revision int
		want     Route
	}{
		{DecisionAccept, 1, RoutePublish},
		{DecisionAccept, 3, RoutePublish},
		{DecisionAccept, 7, RoutePublish},
		{DecisionNeedsImprovement, 0, RouteRetry},
		{DecisionNeedsImprovement, 1, RouteRetry},
		{DecisionNeedsImprovement, 2, RouteRetry},
		{DecisionNeedsImprovement, 3, RouteFail},
		{DecisionNeedsImprovement, 4, RouteFail},
		{DecisionReject, 0, RouteFail},
		{DecisionReject, 1, RouteFail},
		{"", 1, RouteRetry},
		{"", 3, RouteFail},
	}
	for _, tc := range cases {
		got := RouteEditorDecision(State{PublishingDecision: tc.decision, RevisionCount: tc.revision})
		assert.Equal(t, tc.want, got, "decision=%q revision=%d", tc.decision, tc.revision)
	}
}
