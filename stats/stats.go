// Package stats keeps per-topic performance aggregates across workflow runs.
package stats

import (
	"strings"
	"time"
)

// Entry aggregates every scored run for one topic key.
type Entry struct {
	Runs        int     `json:"runs"`
	AvgScore    float64 `json:"avg_score"`
	LastScore   float64 `json:"last_score"`
	LastUpdated string  `json:"last_updated"`
}

// Table maps a normalised topic key to its aggregate.
type Table map[string]Entry

// Store loads and saves the whole table. Load never fails: a missing or
// unreadable store yields an empty table.
type Store interface {
	Load() Table
	Save(Table) error
}

// TopicKey normalises a query into the key stats are indexed by.
func TopicKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Record folds one more score into e using an incremental mean.
// The zero Entry is a topic with no runs yet.
func (e Entry) Record(score float64, at time.Time) Entry {
	runs := e.Runs + 1
	return Entry{
		Runs:        runs,
		AvgScore:    (e.AvgScore*float64(e.Runs) + score) / float64(runs),
		LastScore:   score,
		LastUpdated: at.UTC().Format(time.RFC3339Nano),
	}
}

// Clone returns a copy that can be mutated without touching t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}
