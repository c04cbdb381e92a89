package workflow

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"auto_marketing_agency/generator"
	"auto_marketing_agency/stats"
)

// ErrInvalidState is returned when an initial State lacks a required field.
var ErrInvalidState = errors.New("invalid initial state")

// Cadence is how often the campaign publishes.
type Cadence string

const (
	CadenceDaily  Cadence = "Daily"
	CadenceWeekly Cadence = "Weekly"
)

// Decision is the editor's verdict on a round.
type Decision string

const (
	DecisionAccept           Decision = "accept"
	DecisionNeedsImprovement Decision = "needs_improvement"
	DecisionReject           Decision = "reject"
)

// State is everything threaded through the graph. Nodes receive a copy,
// set the fields they own and hand it back; fields are never cleared.
type State struct {
	UserQuery      string  `json:"user_query"`
	TargetAudience string  `json:"target_audience"`
	BrandVoice     string  `json:"brand_voice"`
	Frequency      Cadence `json:"frequency"`
	Date           string  `json:"date"`
	RevisionCount  int     `json:"revision_count"`

	HistoricalPerformance stats.Table        `json:"historical_performance,omitempty"`
	TrendingTopics        []TrendingTopic    `json:"trending_topics,omitempty"`
	SentimentSummary      *SentimentSummary  `json:"sentiment_summary,omitempty"`
	CompetitorSummary     *CompetitorSummary `json:"competitor_summary,omitempty"`

	ContentBrief       string                   `json:"content_brief,omitempty"`
	GeneratedContent   []generator.ContentPiece `json:"generated_content,omitempty"`
	EditorFeedback     *Feedback                `json:"editor_feedback,omitempty"`
	PublishingDecision Decision                 `json:"publishing_decision,omitempty"`
	Rounds             []Round                  `json:"rounds,omitempty"`

	PerformanceMetrics *stats.Entry `json:"performance_metrics,omitempty"`
	// FinalContentPack stays nil until a terminal node runs; the failure
	// path leaves it empty but non-nil.
	FinalContentPack []generator.ContentPiece `json:"final_content_pack"`
	CurrentCycle     int                      `json:"current_cycle,omitempty"`
}

// Round records one write/evaluate pass.
type Round struct {
	Number   int                      `json:"number"`
	Pieces   []generator.ContentPiece `json:"pieces"`
	Feedback Feedback                 `json:"feedback"`
}

// Validate checks the fields a caller must supply.
func (s State) Validate() error {
	var missing []string
	if strings.TrimSpace(s.UserQuery) == "" {
		missing = append(missing, "user_query")
	}
	if strings.TrimSpace(s.TargetAudience) == "" {
		missing = append(missing, "target_audience")
	}
	if strings.TrimSpace(s.BrandVoice) == "" {
		missing = append(missing, "brand_voice")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidState, strings.Join(missing, ", "))
	}
	switch s.Frequency {
	case "", CadenceDaily, CadenceWeekly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidState, s.Frequency)
	}
	if s.RevisionCount != 0 {
		return fmt.Errorf("%w: revision_count must start at 0, got %d", ErrInvalidState, s.RevisionCount)
	}
	return nil
}

// withDefaults fills optional entry fields.
func (s State) withDefaults(now time.Time) State {
	if s.Frequency == "" {
		s.Frequency = CadenceWeekly
	}
	if s.Date == "" {
		s.Date = now.Format(time.DateOnly)
	}
	return s
}

// Published reports whether the run ended on the publish path.
func (s State) Published() bool {
	return s.PublishingDecision == DecisionAccept && s.FinalContentPack != nil
}

func (s State) appendRound(r Round) State {
	s.Rounds = append(slices.Clip(s.Rounds), r)
	return s
}
