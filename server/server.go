package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"auto_marketing_agency/publisher"
	"auto_marketing_agency/runlog"
	"auto_marketing_agency/stats"
	"auto_marketing_agency/workflow"
)

// Options wires optional collaborators into the server.
type Options struct {
	// Ledger, when set, backs run listing and lookups and runs are not kept in memory.
	Ledger runlog.Store
	// Stats is exposed read-only at /api/stats.
	Stats      stats.Store
	RunTimeout time.Duration
	Render     publisher.Options
	Logger     *slog.Logger
}

type Server struct {
	wf     *workflow.Workflow
	opts   Options
	store  *runStore
	logger *slog.Logger
}

// maxMemoryRuns bounds the in-process run store; the oldest run is evicted first.
const maxMemoryRuns = 256

// runStore keeps recent invocations for lookups and export when no ledger is configured.
type runStore struct {
	mu    sync.Mutex
	limit int
	order []string
	runs  map[string]*workflow.Invocation
}

func newStore(limit int) *runStore {
	return &runStore{limit: limit, runs: make(map[string]*workflow.Invocation)}
}

func (s *runStore) set(inv *workflow.Invocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[inv.ID]; !ok {
		s.order = append(s.order, inv.ID)
	}
	s.runs[inv.ID] = inv
	for len(s.order) > s.limit {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *runStore) get(id string) (*workflow.Invocation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.runs[id]
	return inv, ok
}

func (s *runStore) list() []*workflow.Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*workflow.Invocation, 0, len(s.runs))
	for _, inv := range s.runs {
		out = append(out, inv)
	}
	return out
}

func (s *runStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func New(wf *workflow.Workflow, opts Options) (*Server, error) {
	if wf == nil {
		return nil, errors.New("workflow required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		wf:     wf,
		opts:   opts,
		store:  newStore(maxMemoryRuns),
		logger: logger,
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)
	mux.HandleFunc("/api/stats", s.handleStats)
	return logMiddleware(s.logger, mux)
}

// --- Handlers ---

type runCreateReq struct {
	Topic     string `json:"topic"`
	Audience  string `json:"audience"`
	Voice     string `json:"voice"`
	Frequency string `json:"frequency"`
	Date      string `json:"date"`
}

type runResp struct {
	RunID     string              `json:"run_id"`
	Published bool                `json:"published"`
	Path      []workflow.NodeName `json:"path,omitempty"`
	State     workflow.State      `json:"state"`
	Error     string              `json:"error,omitempty"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleRunCreate(w, r)
	case http.MethodGet:
		s.handleRunList(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	var req runCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	initial := workflow.State{
		UserQuery:      req.Topic,
		TargetAudience: req.Audience,
		BrandVoice:     req.Voice,
		Frequency:      workflow.Cadence(req.Frequency),
		Date:           req.Date,
	}

	ctx := r.Context()
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}
	inv, err := s.wf.Run(ctx, initial)
	if errors.Is(err, workflow.ErrInvalidState) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if inv == nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.opts.Ledger == nil {
		s.store.set(inv)
	}
	if err != nil {
		s.writeJSON(w, http.StatusBadGateway, toResp(inv, err))
		return
	}
	s.writeJSON(w, http.StatusOK, toResp(inv, nil))
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if s.opts.Ledger != nil {
		runs, err := s.opts.Ledger.List(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []runlog.Run{}
		}
		s.writeJSON(w, http.StatusOK, runs)
		return
	}

	invs := s.store.list()
	runs := make([]runlog.Run, 0, len(invs))
	for _, inv := range invs {
		run, err := runlog.FromInvocation(inv)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		run.State = nil
		runs = append(runs, run)
	}
	sortNewestFirst(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	resp, ok, err := s.lookup(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	switch action {
	case "":
		s.writeJSON(w, http.StatusOK, resp)
	case "export":
		out, err := publisher.Render(publisher.FromState(resp.RunID, resp.State), s.opts.Render)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(out))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	table := stats.Table{}
	if s.opts.Stats != nil {
		table = s.opts.Stats.Load()
	}
	s.writeJSON(w, http.StatusOK, map[string]stats.Table{"topic_stats": table})
}

// --- Helpers ---

func (s *Server) lookup(ctx context.Context, id string) (runResp, bool, error) {
	if inv, ok := s.store.get(id); ok {
		return toResp(inv, inv.Err), true, nil
	}
	if s.opts.Ledger == nil {
		return runResp{}, false, nil
	}
	run, err := s.opts.Ledger.Get(ctx, id)
	if errors.Is(err, runlog.ErrRunNotFound) {
		return runResp{}, false, nil
	}
	if err != nil {
		return runResp{}, false, err
	}
	state, err := run.DecodeState()
	if err != nil {
		return runResp{}, false, err
	}
	return runResp{RunID: run.ID, Published: run.Published, State: state, Error: run.Error}, true, nil
}

func toResp(inv *workflow.Invocation, err error) runResp {
	resp := runResp{
		RunID:     inv.ID,
		Published: inv.State.Published(),
		Path:      inv.Path,
		State:     inv.State,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func sortNewestFirst(runs []runlog.Run) {
	slices.SortFunc(runs, func(a, b runlog.Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
}

// writeJSON encodes v before touching w so an encoding failure can still become a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("encoding response failed", slog.Any("error", err))
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "http_request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
