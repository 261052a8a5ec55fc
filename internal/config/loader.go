package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for optional YAML configuration.
const DefaultConfigFile = "cognee.yaml"

var holderMu sync.Mutex
var holder *ConfigHolder

// Load returns the process-wide memoized Config, built once from
// defaults < YAML < environment. Each call returns a fresh copy of the
// same memoized values until ResetForTests is called.
func Load() *Config {
	holderMu.Lock()
	defer holderMu.Unlock()
	if holder == nil {
		cfg, err := LoadFrom(DefaultConfigFile)
		if err != nil {
			cfg = Defaults()
		}
		holder = NewHolder(cfg)
	}
	cfg := holder.Get()
	return &cfg
}

// ResetForTests clears the memoized singleton so the next Load() call
// re-reads the environment. Tests must call this before mutating env vars.
func ResetForTests() {
	holderMu.Lock()
	defer holderMu.Unlock()
	holder = nil
}

// LoadFrom loads defaults, then an optional YAML file, then environment
// variables (including an optional .env file), and returns the result.
// A missing YAML file is not an error.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load() // .env is optional; missing file is not an error

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays recognized environment variables onto cfg.
func applyEnv(cfg *Config) {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = parseBool(v)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	str("LLM_PROVIDER", &cfg.LLM.Provider)
	str("LLM_MODEL", &cfg.LLM.Model)
	str("LLM_ENDPOINT", &cfg.LLM.Endpoint)
	str("LLM_API_KEY", &cfg.LLM.APIKey)
	str("LLM_API_VERSION", &cfg.LLM.APIVersion)
	boolean("LLM_STREAMING", &cfg.LLM.Streaming)
	boolean("LLM_RATE_LIMIT_ENABLED", &cfg.LLM.RateLimitEnabled)
	integer("LLM_RATE_LIMIT_REQUESTS", &cfg.LLM.RateLimitRequests)
	float("LLM_RATE_LIMIT_INTERVAL", &cfg.LLM.RateLimitInterval)

	str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	integer("EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)
	str("EMBEDDING_ENDPOINT", &cfg.Embedding.Endpoint)
	str("EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	boolean("MOCK_EMBEDDING", &cfg.Embedding.Mock)
	boolean("EMBEDDING_RATE_LIMIT_ENABLED", &cfg.Embedding.RateLimitEnabled)
	integer("EMBEDDING_RATE_LIMIT_REQUESTS", &cfg.Embedding.RateLimitRequests)
	float("EMBEDDING_RATE_LIMIT_INTERVAL", &cfg.Embedding.RateLimitInterval)

	str("PG_DSN", &cfg.Postgres.DSN)

	boolean("DISABLE_RETRIES", &cfg.Retry.Disabled)

	str("CACHE_BACKEND", &cfg.Cache.Backend)
	str("CACHE_HOST", &cfg.Cache.Host)
	integer("CACHE_PORT", &cfg.Cache.Port)
	boolean("CACHING", &cfg.Cache.Enabled)
	boolean("USAGE_LOGGING", &cfg.Cache.UsageLogging)
	if v, ok := os.LookupEnv("USAGE_LOGGING_TTL"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.UsageLoggingTTL = time.Duration(n) * time.Second
		}
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
