package workflow

import (
	"math"

	"auto_marketing_agency/generator"
)

const (
	MaxOverallScore  = 30.0
	AcceptThreshold  = 24.0
	ImproveThreshold = 15.0
)

// Feedback is the editor's evaluation of one batch of pieces.
type Feedback struct {
	ToneScore    float64  `json:"tone_score"`
	FactScore    float64  `json:"fact_score"`
	BrandScore   float64  `json:"brand_score"`
	OverallScore float64  `json:"overall_score"`
	Rationale    string   `json:"rationale"`
	Judgement    Decision `json:"judgement"`
	// Degraded is set when the scores are the fallback defaults.
	Degraded bool `json:"degraded,omitempty"`
}

// OverallScore sums the components and caps the result at MaxOverallScore.
// Components are not clamped individually.
func OverallScore(tone, fact, brand float64) float64 {
	return math.Min(tone+fact+brand, MaxOverallScore)
}

// Decide maps an overall score to a decision label.
func Decide(overall float64) Decision {
	switch {
	case overall >= AcceptThreshold:
		return DecisionAccept
	case overall >= ImproveThreshold:
		return DecisionNeedsImprovement
	default:
		return DecisionReject
	}
}

// NewFeedback derives the overall score and decision from raw scores.
func NewFeedback(s generator.Scores) Feedback {
	overall := OverallScore(s.Tone, s.Fact, s.Brand)
	return Feedback{
		ToneScore:    s.Tone,
		FactScore:    s.Fact,
		BrandScore:   s.Brand,
		OverallScore: overall,
		Rationale:    s.Rationale,
		Judgement:    Decide(overall),
	}
}

// FallbackScores stand in for an editor answer that could not be decoded.
func FallbackScores() generator.Scores {
	return generator.Scores{Tone: 5, Fact: 5, Brand: 5, Rationale: "Parsing Error"}
}

// PlaceholderPiece stands in for a writer answer that could not be decoded.
func PlaceholderPiece() generator.ContentPiece {
	return generator.ContentPiece{
		Platform:   "twitter",
		Title:      "Error",
		Content:    "JSON Parsing Failed",
		FormatType: "tweet",
	}
}
