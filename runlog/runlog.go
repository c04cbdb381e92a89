// Package runlog keeps a ledger of finished workflow runs.
package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"auto_marketing_agency/stats"
	"auto_marketing_agency/workflow"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Run is one ledger row.
type Run struct {
	ID           string          `json:"id"`
	Topic        string          `json:"topic"`
	Decision     string          `json:"decision"`
	OverallScore float64         `json:"overall_score"`
	Revisions    int             `json:"revisions"`
	Published    bool            `json:"published"`
	Pieces       int             `json:"pieces"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	State        json.RawMessage `json:"state,omitempty"`
}

// Store persists runs.
type Store interface {
	Record(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
}

// FromInvocation summarises an invocation, keeping its final state as JSON.
func FromInvocation(inv *workflow.Invocation) (Run, error) {
	s := inv.State
	run := Run{
		ID:         inv.ID,
		Topic:      stats.TopicKey(s.UserQuery),
		Decision:   string(s.PublishingDecision),
		Revisions:  s.RevisionCount,
		Published:  s.Published(),
		Pieces:     len(s.FinalContentPack),
		StartedAt:  inv.StartedAt,
		FinishedAt: inv.FinishedAt,
	}
	if s.EditorFeedback != nil {
		run.OverallScore = s.EditorFeedback.OverallScore
	}
	if inv.Err != nil {
		run.Error = inv.Err.Error()
	}
	state, err := json.Marshal(s)
	if err != nil {
		return Run{}, err
	}
	run.State = state
	return run, nil
}

// DecodeState returns the final workflow state stored with run.
func (r Run) DecodeState() (workflow.State, error) {
	var s workflow.State
	if len(r.State) == 0 {
		return s, errors.New("run has no stored state")
	}
	err := json.Unmarshal(r.State, &s)
	return s, err
}
