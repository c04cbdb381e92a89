// Package config loads the agency configuration from JSON or YAML.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel       = "gpt-4o-mini"
	DefaultAPIKeyEnv   = "OPENAI_API_KEY"
	DefaultTemperature = 0.2
	DefaultServerAddr  = ":8080"
	DefaultStatsPath   = "performance.json"
	DefaultRunsDB      = "runs.db"
)

// Config is the file-level configuration.
type Config struct {
	LLM        *LLMConfig `json:"llm,omitempty" yaml:"llm,omitempty"`
	ServerAddr string     `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	StatsPath  string     `json:"stats_path,omitempty" yaml:"stats_path,omitempty"`
	// RunsDB is the SQLite ledger path; "-" disables the ledger.
	RunsDB            string `json:"runs_db,omitempty" yaml:"runs_db,omitempty"`
	ExportDir         string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
	LogLevel          string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	RunTimeoutSeconds int    `json:"run_timeout_seconds,omitempty" yaml:"run_timeout_seconds,omitempty"`
}

// LLMConfig selects and configures the text-generation backend.
type LLMConfig struct {
	Provider    string   `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	APIKey      string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv   string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads path as YAML when it ends in .yaml/.yml, otherwise as JSON.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLM == nil {
		c.LLM = &LLMConfig{}
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = DefaultAPIKeyEnv
	}
	if c.LLM.Temperature == nil {
		t := DefaultTemperature
		c.LLM.Temperature = &t
	}
	if c.ServerAddr == "" {
		c.ServerAddr = DefaultServerAddr
	}
	if c.StatsPath == "" {
		c.StatsPath = DefaultStatsPath
	}
	if c.RunsDB == "" {
		c.RunsDB = DefaultRunsDB
	}
}

// Validate checks values that defaults cannot fix.
func (c Config) Validate() error {
	if c.RunTimeoutSeconds < 0 {
		return errors.New("config: run_timeout_seconds must not be negative")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	if c.LLM != nil && c.LLM.Temperature != nil && (*c.LLM.Temperature < 0 || *c.LLM.Temperature > 2) {
		return fmt.Errorf("config: llm.temperature %v out of range [0,2]", *c.LLM.Temperature)
	}
	return nil
}

// ResolveAPIKey returns the explicit key, falling back to the configured env var.
func (l LLMConfig) ResolveAPIKey() string {
	if l.APIKey != "" {
		return l.APIKey
	}
	env := l.APIKeyEnv
	if env == "" {
		env = DefaultAPIKeyEnv
	}
	return os.Getenv(env)
}

// LedgerEnabled reports whether runs should be recorded.
func (c Config) LedgerEnabled() bool {
	return c.RunsDB != "-"
}
