package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Vector.Metric != "cosine" {
		t.Errorf("metric = %q", cfg.Vector.Metric)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.TopK != 5 || cfg.Retrieval.EvidenceCap != 10 {
		t.Errorf("retrieval defaults = %d/%d", cfg.Retrieval.TopK, cfg.Retrieval.EvidenceCap)
	}
	if got := cfg.LLM.TemperatureOrDefault(); got != 0.1 {
		t.Errorf("temperature default = %v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inspectra.yaml")
	yaml := `
server:
  port: 9090
vector:
  addr: qdrant.internal:6334
  metric: dot
llm:
  provider: openai
  model: gpt-4o-mini
  temperature: 0
retrieval:
  top_k: 8
  evidence_cap: 20
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Vector.Metric != "dot" {
		t.Errorf("metric = %q", cfg.Vector.Metric)
	}
	if cfg.LLM.Provider != "openai" || cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	// Explicit zero must survive defaulting.
	if got := cfg.LLM.TemperatureOrDefault(); got != 0 {
		t.Errorf("temperature = %v, want explicit 0", got)
	}
	if cfg.LLM.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("api key env = %q", cfg.LLM.APIKeyEnv)
	}
	if cfg.Retrieval.TopK != 8 || cfg.Retrieval.EvidenceCap != 20 {
		t.Errorf("retrieval = %d/%d", cfg.Retrieval.TopK, cfg.Retrieval.EvidenceCap)
	}
	// Untouched sections keep defaults.
	if cfg.Sessions.MaxTurns != 10 {
		t.Errorf("max turns = %d", cfg.Sessions.MaxTurns)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INSPECTRA_PORT", "7070")
	t.Setenv("INSPECTRA_DB_PATH", "/data/records.db")
	t.Setenv("INSPECTRA_METRIC", "dot")
	t.Setenv("INSPECTRA_EVENTS_ENABLED", "true")
	t.Setenv("INSPECTRA_TOPK", "not-a-number")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Store.Path != "/data/records.db" {
		t.Errorf("db path = %q", cfg.Store.Path)
	}
	if cfg.Vector.Metric != "dot" {
		t.Errorf("metric = %q", cfg.Vector.Metric)
	}
	if !cfg.Events.Enabled {
		t.Error("events should be enabled")
	}
	// Malformed numeric overrides are ignored, not fatal.
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("top_k = %d, want default 5", cfg.Retrieval.TopK)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		var cfg Config
		ApplyDefaults(&cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad metric", func(c *Config) { c.Vector.Metric = "euclid" }, true},
		{"zero dims", func(c *Config) { c.Embedding.Dimensions = 0 }, true},
		{"topk too high", func(c *Config) { c.Retrieval.TopK = 51 }, true},
		{"cap below topk", func(c *Config) { c.Retrieval.EvidenceCap = 3 }, true},
		{"unknown llm provider", func(c *Config) { c.LLM.Provider = "mistral" }, true},
		{"anthropic embeddings", func(c *Config) { c.Embedding.Provider = "anthropic" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"dot metric ok", func(c *Config) { c.Vector.Metric = "dot" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAPIKeyReadsEnv(t *testing.T) {
	t.Setenv("TEST_INSPECTRA_KEY", "sk-test")
	l := LLMConfig{APIKeyEnv: "TEST_INSPECTRA_KEY"}
	if got := l.APIKey(); got != "sk-test" {
		t.Errorf("APIKey() = %q", got)
	}
	if got := (LLMConfig{}).APIKey(); got != "" {
		t.Errorf("empty env name should yield empty key, got %q", got)
	}
}
