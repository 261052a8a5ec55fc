// Package config provides hierarchical configuration loading for the core
// layer. Precedence: defaults < YAML file < environment variables.
package config

import (
	"sync"
	"time"
)

// ConfigHolder provides thread-safe access to a Config with reset support
// for tests (see ResetForTests in loader.go).
type ConfigHolder struct {
	mu  sync.RWMutex
	cfg Config
}

// NewHolder creates a ConfigHolder from an initial Config.
func NewHolder(cfg *Config) *ConfigHolder {
	return &ConfigHolder{cfg: *cfg}
}

// Get returns a copy of the held Config.
func (h *ConfigHolder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Set replaces the held Config. Used by tests to install a fresh Config
// without re-reading the environment.
func (h *ConfigHolder) Set(cfg Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}

// Config holds all runtime configuration for the core layer.
type Config struct {
	LLM       LLM       `yaml:"llm"`
	Embedding Embedding `yaml:"embedding"`
	Cache     Cache     `yaml:"cache"`
	Postgres  Postgres  `yaml:"postgres"`
	Retry     Retry     `yaml:"retry"`
	Breaker   Breaker   `yaml:"breaker"`
	Logging   Logging   `yaml:"logging"`
}

// LLM holds LLM provider and rate-limit configuration.
type LLM struct {
	Provider          string  `yaml:"provider"`    // e.g. "openai", "azure", "mock"
	Model             string  `yaml:"model"`
	Endpoint          string  `yaml:"endpoint"`
	APIKey            string  `yaml:"api_key" json:"-"`
	APIVersion        string  `yaml:"api_version"`
	Streaming         bool    `yaml:"streaming"` // aggregate SSE chunks instead of a single-shot completion
	RateLimitEnabled  bool    `yaml:"rate_limit_enabled"`
	RateLimitRequests int     `yaml:"rate_limit_requests"` // requests_limit
	RateLimitInterval float64 `yaml:"rate_limit_interval"` // interval_seconds
}

// Embedding holds embedding provider and rate-limit configuration.
type Embedding struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	Endpoint          string  `yaml:"endpoint"`
	APIKey            string  `yaml:"api_key" json:"-"`
	Mock              bool    `yaml:"mock"` // MOCK_EMBEDDING
	RateLimitEnabled  bool    `yaml:"rate_limit_enabled"`
	RateLimitRequests int     `yaml:"rate_limit_requests"`
	RateLimitInterval float64 `yaml:"rate_limit_interval"`
}

// Cache holds cache/session coordinator configuration.
type Cache struct {
	Backend         string        `yaml:"backend"` // "redis" | "fs" | "postgres"
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Enabled         bool          `yaml:"enabled"` // CACHING
	L1MaxSizeMB     int64         `yaml:"l1_max_size_mb"`
	L2TTL           time.Duration `yaml:"l2_ttl"`
	UsageLogging    bool          `yaml:"usage_logging"`
	UsageLoggingTTL time.Duration `yaml:"usage_logging_ttl"`
	FSPath          string        `yaml:"fs_path"` // sqlite file path for the fs backend
}

// Postgres holds connection settings for the optional Postgres-backed
// vector store and session/usage-log adapters.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	HealthCheck     time.Duration `yaml:"health_check_period"`
}

// Retry holds the retry/backoff decorator configuration.
type Retry struct {
	Disabled   bool          `yaml:"disabled"` // DISABLE_RETRIES
	MaxRetries int           `yaml:"max_retries"`
	Base       time.Duration `yaml:"base"`
	Factor     float64       `yaml:"factor"`
	Jitter     float64       `yaml:"jitter"`
}

// Breaker holds circuit breaker configuration for the LLM/embedding adapters.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Defaults returns the baseline configuration before YAML/env overrides.
func Defaults() *Config {
	return &Config{
		LLM: LLM{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			RateLimitEnabled:  false,
			RateLimitRequests: 60,
			RateLimitInterval: 60,
		},
		Embedding: Embedding{
			Provider:          "openai",
			Model:             "text-embedding-3-small",
			Dimensions:        1536,
			RateLimitEnabled:  false,
			RateLimitRequests: 60,
			RateLimitInterval: 60,
		},
		Cache: Cache{
			Backend:         "fs",
			Host:            "localhost",
			Port:            6379,
			Enabled:         true,
			L1MaxSizeMB:     64,
			L2TTL:           24 * time.Hour,
			UsageLogging:    true,
			UsageLoggingTTL: 30 * 24 * time.Hour,
			FSPath:          "cognee-cache.db",
		},
		Postgres: Postgres{
			MaxConns:        10,
			MinConns:        1,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 30 * time.Minute,
			HealthCheck:     time.Minute,
		},
		Retry: Retry{
			MaxRetries: 5,
			Base:       1 * time.Second,
			Factor:     2.0,
			Jitter:     0.1,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "cognee-core",
			Async:   true,
		},
	}
}

// ToDict returns a diagnostic snapshot of the configuration with secrets
// redacted.
func (c Config) ToDict() map[string]any {
	redact := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	return map[string]any{
		"llm": map[string]any{
			"provider":            c.LLM.Provider,
			"model":               c.LLM.Model,
			"endpoint":            c.LLM.Endpoint,
			"api_key":             redact(c.LLM.APIKey),
			"streaming":           c.LLM.Streaming,
			"rate_limit_enabled":  c.LLM.RateLimitEnabled,
			"rate_limit_requests": c.LLM.RateLimitRequests,
			"rate_limit_interval": c.LLM.RateLimitInterval,
		},
		"embedding": map[string]any{
			"provider":            c.Embedding.Provider,
			"model":               c.Embedding.Model,
			"dimensions":          c.Embedding.Dimensions,
			"endpoint":            c.Embedding.Endpoint,
			"api_key":             redact(c.Embedding.APIKey),
			"mock":                c.Embedding.Mock,
			"rate_limit_enabled":  c.Embedding.RateLimitEnabled,
			"rate_limit_requests": c.Embedding.RateLimitRequests,
			"rate_limit_interval": c.Embedding.RateLimitInterval,
		},
		"cache": map[string]any{
			"backend":       c.Cache.Backend,
			"host":          c.Cache.Host,
			"port":          c.Cache.Port,
			"enabled":       c.Cache.Enabled,
			"usage_logging": c.Cache.UsageLogging,
		},
	}
}
