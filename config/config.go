// Package config loads and validates Inspectra configuration.
//
// Precedence is YAML file (optional) < INSPECTRA_* environment variables.
// Load returns the config by value; callers pass it down explicitly rather
// than reading globals.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for the API server and the index tooling.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Sessions  SessionConfig   `yaml:"sessions"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig holds the SQLite record store settings.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// VectorConfig holds Qdrant settings.
type VectorConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
	Metric     string `yaml:"metric"` // cosine | dot
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // ollama | openai
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// LLMConfig holds answer-generation provider settings. APIKeyEnv names the
// environment variable the key is read from, so the key itself never lands
// in a config file.
type LLMConfig struct {
	Provider       string   `yaml:"provider"` // ollama | openai | anthropic
	BaseURL        string   `yaml:"base_url"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	Model          string   `yaml:"model"`
	Temperature    *float64 `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// APIKey reads the provider key from the configured environment variable.
func (l LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// TemperatureOrDefault returns the sampling temperature; defaults to 0.1
// when unset so explicit 0 still means greedy decoding.
func (l LLMConfig) TemperatureOrDefault() float64 {
	if l.Temperature != nil {
		return *l.Temperature
	}
	return 0.1
}

// Timeout returns the per-call completion timeout.
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// RetrievalConfig holds retrieval fan-out settings.
type RetrievalConfig struct {
	TopK           int `yaml:"top_k"`
	EvidenceCap    int `yaml:"evidence_cap"`
	TimeoutMS      int `yaml:"timeout_ms"`
	RetryBackoffMS int `yaml:"retry_backoff_ms"`
}

// Timeout returns the per-path retrieval deadline.
func (r RetrievalConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// RetryBackoff returns the wait before the single retrieval retry.
func (r RetrievalConfig) RetryBackoff() time.Duration {
	return time.Duration(r.RetryBackoffMS) * time.Millisecond
}

// SessionConfig holds conversation session settings.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
	MaxTurns   int `yaml:"max_turns"`
}

// TTL returns the idle lifetime of a session.
func (s SessionConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

// CacheConfig holds answer cache settings.
type CacheConfig struct {
	Capacity   int `yaml:"capacity"`
	TTLMinutes int `yaml:"ttl_minutes"`
}

// TTL returns the answer cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// EventsConfig holds NATS settings for index maintenance events.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Enabled bool   `yaml:"enabled"`
}

// Load reads the YAML file at path (skipped when path is empty), applies
// defaults, then applies INSPECTRA_* environment overrides. The result is
// not validated; call Validate once at startup.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	ApplyDefaults(&cfg)
	applyEnv(&cfg)
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with working local-dev defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "*"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "inspectra.db"
	}
	if cfg.Vector.Addr == "" {
		cfg.Vector.Addr = "localhost:6334"
	}
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = "inspection_records"
	}
	if cfg.Vector.Metric == "" {
		cfg.Vector.Metric = "cosine"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "ollama"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.BaseURL == "" && cfg.LLM.Provider == "ollama" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.APIKeyEnv == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
		case "anthropic":
			cfg.LLM.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.2"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 30
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.EvidenceCap == 0 {
		cfg.Retrieval.EvidenceCap = 10
	}
	if cfg.Retrieval.TimeoutMS == 0 {
		cfg.Retrieval.TimeoutMS = 5000
	}
	if cfg.Retrieval.RetryBackoffMS == 0 {
		cfg.Retrieval.RetryBackoffMS = 200
	}
	if cfg.Sessions.TTLMinutes == 0 {
		cfg.Sessions.TTLMinutes = 60
	}
	if cfg.Sessions.MaxTurns == 0 {
		cfg.Sessions.MaxTurns = 10
	}
	if cfg.Cache.Capacity == 0 {
		cfg.Cache.Capacity = 256
	}
	if cfg.Cache.TTLMinutes == 0 {
		cfg.Cache.TTLMinutes = 10
	}
	if cfg.Events.NATSURL == "" {
		cfg.Events.NATSURL = "nats://localhost:4222"
	}
}

// applyEnv overrides config fields from INSPECTRA_* environment variables.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "INSPECTRA_HOST")
	setInt(&cfg.Server.Port, "INSPECTRA_PORT")
	setString(&cfg.Server.CORSOrigin, "INSPECTRA_CORS_ORIGIN")
	setString(&cfg.Store.Path, "INSPECTRA_DB_PATH")
	setString(&cfg.Vector.Addr, "INSPECTRA_QDRANT_ADDR")
	setString(&cfg.Vector.Collection, "INSPECTRA_COLLECTION")
	setString(&cfg.Vector.Metric, "INSPECTRA_METRIC")
	setString(&cfg.Embedding.Provider, "INSPECTRA_EMBED_PROVIDER")
	setString(&cfg.Embedding.BaseURL, "INSPECTRA_EMBED_URL")
	setString(&cfg.Embedding.Model, "INSPECTRA_EMBED_MODEL")
	setInt(&cfg.Embedding.Dimensions, "INSPECTRA_EMBED_DIMS")
	setString(&cfg.LLM.Provider, "INSPECTRA_LLM_PROVIDER")
	setString(&cfg.LLM.BaseURL, "INSPECTRA_LLM_URL")
	setString(&cfg.LLM.APIKeyEnv, "INSPECTRA_LLM_KEY_ENV")
	setString(&cfg.LLM.Model, "INSPECTRA_LLM_MODEL")
	setInt(&cfg.Retrieval.TopK, "INSPECTRA_TOPK")
	setInt(&cfg.Retrieval.EvidenceCap, "INSPECTRA_EVIDENCE_CAP")
	setString(&cfg.Events.NATSURL, "INSPECTRA_NATS_URL")
	setBool(&cfg.Events.Enabled, "INSPECTRA_EVENTS_ENABLED")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the config for values the engine cannot run with.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Vector.Metric != "cosine" && c.Vector.Metric != "dot" {
		return fmt.Errorf("vector.metric %q: must be cosine or dot", c.Vector.Metric)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Embedding.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("embedding.provider %q: must be ollama or openai", c.Embedding.Provider)
	}
	switch c.LLM.Provider {
	case "ollama", "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider %q: must be ollama, openai or anthropic", c.LLM.Provider)
	}
	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 50 {
		return fmt.Errorf("retrieval.top_k %d out of range [1, 50]", c.Retrieval.TopK)
	}
	if c.Retrieval.EvidenceCap < c.Retrieval.TopK {
		return fmt.Errorf("retrieval.evidence_cap %d below top_k %d", c.Retrieval.EvidenceCap, c.Retrieval.TopK)
	}
	if c.Sessions.MaxTurns < 1 {
		return fmt.Errorf("sessions.max_turns must be positive, got %d", c.Sessions.MaxTurns)
	}
	return nil
}
