package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected default LLM model gpt-4o-mini, got %s", cfg.LLM.Model)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected default embedding dimensions 1536, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Cache.Backend != "fs" {
		t.Errorf("expected default cache backend fs, got %s", cfg.Cache.Backend)
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.Base != time.Second || cfg.Retry.Factor != 2.0 || cfg.Retry.Jitter != 0.1 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}
}

func TestLoadFromYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cognee.yaml")

	content := `
llm:
  model: "gpt-4o"
embedding:
  dimensions: 768
cache:
  backend: "redis"
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", cfg.LLM.Model)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected dimensions 768, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Cache.Backend != "redis" {
		t.Errorf("expected backend redis, got %s", cfg.Cache.Backend)
	}
	// Unchanged fields keep defaults
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected default embedding model, got %s", cfg.Embedding.Model)
	}
}

func TestLoadFromMissingYAML(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path.yaml")
	if err != nil {
		t.Fatalf("missing YAML should not error, got %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected pure defaults, got model %s", cfg.LLM.Model)
	}
}

func TestLoadFromMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte(`{{{invalid yaml`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(yamlPath); err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("LLM_PROVIDER", "azure")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("LLM_RATE_LIMIT_ENABLED", "true")
	t.Setenv("LLM_RATE_LIMIT_REQUESTS", "30")
	t.Setenv("LLM_RATE_LIMIT_INTERVAL", "10.5")
	t.Setenv("EMBEDDING_DIMENSIONS", "384")
	t.Setenv("MOCK_EMBEDDING", "1")
	t.Setenv("DISABLE_RETRIES", "true")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_HOST", "cache.internal")
	t.Setenv("CACHE_PORT", "4222")
	t.Setenv("CACHING", "false")
	t.Setenv("USAGE_LOGGING_TTL", "3600")

	applyEnv(cfg)

	if cfg.LLM.Provider != "azure" || cfg.LLM.Model != "gpt-4o" {
		t.Errorf("unexpected LLM config: %+v", cfg.LLM)
	}
	if !cfg.LLM.RateLimitEnabled || cfg.LLM.RateLimitRequests != 30 || cfg.LLM.RateLimitInterval != 10.5 {
		t.Errorf("unexpected LLM rate-limit config: %+v", cfg.LLM)
	}
	if cfg.Embedding.Dimensions != 384 || !cfg.Embedding.Mock {
		t.Errorf("unexpected embedding config: %+v", cfg.Embedding)
	}
	if !cfg.Retry.Disabled {
		t.Error("expected DISABLE_RETRIES to disable retries")
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.Host != "cache.internal" || cfg.Cache.Port != 4222 {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Cache.Enabled {
		t.Error("expected CACHING=false to disable caching")
	}
	if cfg.Cache.UsageLoggingTTL != time.Hour {
		t.Errorf("expected USAGE_LOGGING_TTL=3600 to parse as 1h, got %v", cfg.Cache.UsageLoggingTTL)
	}
}

func TestEnvOverrideIgnoresInvalidValues(t *testing.T) {
	cfg := Defaults()

	t.Setenv("EMBEDDING_DIMENSIONS", "notanumber")
	t.Setenv("LLM_RATE_LIMIT_INTERVAL", "abc")

	applyEnv(cfg)

	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("invalid int env should be ignored, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.LLM.RateLimitInterval != 60 {
		t.Errorf("invalid float env should be ignored, got %v", cfg.LLM.RateLimitInterval)
	}
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "on"} {
		if !parseBool(v) {
			t.Errorf("expected %q to parse true", v)
		}
	}
	for _, v := range []string{"0", "false", "off", "", "nope"} {
		if parseBool(v) {
			t.Errorf("expected %q to parse false", v)
		}
	}
}

func TestToDictRedactsSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.APIKey = "sk-very-secret"
	cfg.Embedding.APIKey = ""

	d := cfg.ToDict()

	llm := d["llm"].(map[string]any)
	if llm["api_key"] != "****" {
		t.Errorf("expected LLM api key redacted to ****, got %v", llm["api_key"])
	}
	emb := d["embedding"].(map[string]any)
	if emb["api_key"] != "" {
		t.Errorf("expected empty embedding api key to stay empty, got %v", emb["api_key"])
	}
}
