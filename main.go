package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"auto_marketing_agency/config"
	"auto_marketing_agency/generator"
	"auto_marketing_agency/publisher"
	"auto_marketing_agency/runlog"
	"auto_marketing_agency/server"
	"auto_marketing_agency/stats"
	"auto_marketing_agency/workflow"
)

const defaultConfigPath = "config.json"

var verbose bool

func main() {
	configPath := flag.String("config", "", "path to config.json or config.yaml (default "+defaultConfigPath+" if present)")
	topic := flag.String("topic", "", "campaign topic / user query")
	audience := flag.String("audience", "", "target audience")
	voice := flag.String("voice", "", "brand voice")
	frequency := flag.String("frequency", "", "posting cadence: Daily or Weekly")
	date := flag.String("date", "", "campaign date (YYYY-MM-DD, default today)")
	out := flag.String("out", "", "write the HTML export to this directory (overrides config.export_dir)")
	mock := flag.Bool("mock", false, "use the offline mock LLM")
	serve := flag.Bool("serve", false, "start web server")
	addr := flag.String("addr", "", "http listen address when --serve (overrides config.server_addr)")
	flag.BoolVar(&verbose, "v", false, "enable debug logs")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, verbose)
	slog.SetDefault(logger)

	if *mock {
		cfg.LLM.Provider = "mock"
	}
	llm, err := buildLLM(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	agent, err := generator.NewAgent(llm)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var ledger *runlog.SQLiteStore
	if cfg.LedgerEnabled() {
		ledger, err = runlog.Open(cfg.RunsDB)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer ledger.Close()
	}

	store := stats.NewFileStore(cfg.StatsPath)
	counters := workflow.NewCounters()
	observers := []workflow.Observer{workflow.NewLoggingObserver(logger), counters}
	if ledger != nil {
		observers = append(observers, runlog.NewObserver(ledger, logger))
	}
	wf, err := workflow.New(workflow.Options{
		Agent:    agent,
		Stats:    store,
		Observer: workflow.NewCompositeObserver(observers...),
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Web server mode
	if *serve {
		opts := server.Options{
			Stats:      store,
			RunTimeout: time.Duration(cfg.RunTimeoutSeconds) * time.Second,
			Logger:     logger,
		}
		if ledger != nil {
			opts.Ledger = ledger
		}
		srv, err := server.New(wf, opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		listen := cfg.ServerAddr
		if *addr != "" {
			listen = *addr
		}
		hs := &http.Server{Addr: listen, Handler: srv.Routes()}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = hs.Shutdown(shutdownCtx)
		}()
		logger.Info("starting web server", slog.String("addr", listen))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if *topic == "" || *audience == "" || *voice == "" {
		fmt.Fprintln(os.Stderr, "--topic, --audience, and --voice are required")
		os.Exit(1)
	}

	inv, err := wf.Run(ctx, workflow.State{
		UserQuery:      *topic,
		TargetAudience: *audience,
		BrandVoice:     *voice,
		Frequency:      workflow.Cadence(*frequency),
		Date:           *date,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	exportDir := cfg.ExportDir
	if *out != "" {
		exportDir = *out
	}
	exported := ""
	if exportDir != "" && inv.State.Published() {
		exp, err := publisher.NewExporter(exportDir, publisher.Options{}, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		exported, err = exp.Export(publisher.FromState(inv.ID, inv.State))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	snap := counters.Snapshot()
	logger.Debug("run counters",
		slog.Int64("completed", snap.Completed),
		slog.Int64("published", snap.Published),
		slog.Int64("failed", snap.Failed),
	)

	if err := printSummary(inv, exported); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig falls back to defaults only when the default path is absent.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.Load(defaultConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func newLogger(level string, verbose bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func buildLLM(cfg config.Config) (generator.LLMClient, error) {
	if cfg.LLM == nil || cfg.LLM.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key_env in config")
	}
	settings := &generator.LLMSettings{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.ResolveAPIKey(),
		BaseURL:  cfg.LLM.BaseURL,
	}
	if cfg.LLM.Temperature != nil {
		settings.Temperature = *cfg.LLM.Temperature
	}
	switch cfg.LLM.Provider {
	case "mock":
		return generator.MockLLM{}, nil
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url（例如官方/网关地址）。
		if cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

type summary struct {
	RunID        string              `json:"run_id"`
	Topic        string              `json:"topic"`
	Decision     workflow.Decision   `json:"decision"`
	OverallScore float64             `json:"overall_score"`
	Revisions    int                 `json:"revisions"`
	Published    bool                `json:"published"`
	Path         []workflow.NodeName `json:"path"`
	Pieces       int                 `json:"pieces"`
	Export       string              `json:"export,omitempty"`
}

func printSummary(inv *workflow.Invocation, exported string) error {
	s := inv.State
	sum := summary{
		RunID:     inv.ID,
		Topic:     s.UserQuery,
		Decision:  s.PublishingDecision,
		Revisions: s.RevisionCount,
		Published: s.Published(),
		Path:      inv.Path,
		Pieces:    len(s.FinalContentPack),
		Export:    exported,
	}
	if s.EditorFeedback != nil {
		sum.OverallScore = s.EditorFeedback.OverallScore
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
