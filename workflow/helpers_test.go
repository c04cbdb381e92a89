package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"auto_marketing_agency/generator"
	"auto_marketing_agency/stats"
)

var fixedNow = time.Date(2025, 12, 20, 9, 30, 0, 0, time.UTC)

// scriptedLLM answers by prompt kind. Writer and editor answers are consumed
// in order; the last one repeats once the script runs out.
type scriptedLLM struct {
	mu       sync.Mutex
	briefErr error
	writer   []string
	editor   []string
	writeErr error
	calls    map[generator.PromptKind]int
	prompts  []generator.Prompt
}

func (s *scriptedLLM) Complete(ctx context.Context, p generator.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[generator.PromptKind]int)
	}
	s.calls[p.Kind]++
	s.prompts = append(s.prompts, p)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch p.Kind {
	case generator.KindBrief:
		if s.briefErr != nil {
			return "", s.briefErr
		}
		return "Content Brief for Writer Agent: talk about " + p.User, nil
	case generator.KindWriter:
		if s.writeErr != nil {
			return "", s.writeErr
		}
		return pick(s.writer, s.calls[p.Kind]), nil
	case generator.KindEditor:
		return pick(s.editor, s.calls[p.Kind]), nil
	}
	return "", fmt.Errorf("unexpected prompt kind %q", p.Kind)
}

func (s *scriptedLLM) count(k generator.PromptKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[k]
}

func (s *scriptedLLM) promptsOf(k generator.PromptKind) []generator.Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []generator.Prompt
	for _, p := range s.prompts {
		if p.Kind == k {
			out = append(out, p)
		}
	}
	return out
}

func pick(script []string, call int) string {
	if len(script) == 0 {
		return ""
	}
	if call > len(script) {
		return script[len(script)-1]
	}
	return script[call-1]
}

func fivePieces() string {
	return "```json\n" + `[
  {"platform": "twitter", "format_type": "thread", "title": "Fuel", "content": "Plants power you."},
  {"platform": "linkedin", "format_type": "post", "title": "Clean", "content": "No crash."},
  {"platform": "instagram", "format_type": "caption", "title": "Glow", "content": "Green energy."},
  {"platform": "email", "format_type": "newsletter", "title": "Launch", "content": "It's here."},
  {"platform": "blog", "format_type": "article", "title": "Why vegan", "content": "Long form."}
]` + "\n```"
}

func scores(tone, fact, brand float64, rationale string) string {
	return fmt.Sprintf(`{"tone_score": %g, "fact_score": %g, "brand_score": %g, "rationale": %q}`, tone, fact, brand, rationale)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorkflow(t *testing.T, llm generator.LLMClient, store stats.Store, obs Observer) *Workflow {
	t.Helper()
	agent, err := generator.NewAgent(llm)
	require.NoError(t, err)
	wf, err := New(Options{
		Agent:    agent,
		Stats:    store,
		Observer: obs,
		Logger:   discardLogger(),
		Now:      func() time.Time { return fixedNow },
		NewID:    func() string { return "run-1" },
	})
	require.NoError(t, err)
	return wf
}

func initialState(query string) State {
	return State{
		UserQuery:      query,
		TargetAudience: "Busy Tech Professionals",
		BrandVoice:     "Witty",
		Frequency:      CadenceWeekly,
		Date:           "2025-12-20",
		RevisionCount:  0,
	}
}
