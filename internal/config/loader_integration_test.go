package config

import (
	"os"
	"path/filepath"
	"testing"
)

// Integration tests that exercise the full loading pipeline:
// defaults < YAML < environment variables, plus the process-wide
// memoized singleton.

func TestLoadFrom_FullHierarchy(t *testing.T) {
	// YAML sets model=yaml-model, env overrides it. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
llm:
  model: "yaml-model"
logging:
  level: "debug"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("LLM_MODEL", "env-model")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.LLM.Model != "env-model" {
		t.Errorf("env should override YAML: got model %q, want env-model", cfg.LLM.Model)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("YAML should override defaults: got level %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadFrom_YAMLPartialOverride(t *testing.T) {
	// YAML sets only logging.level; all other fields keep defaults.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
logging:
  level: "error"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Logging.Level != "error" {
		t.Errorf("got level %q, want error", cfg.Logging.Level)
	}
	if cfg.Cache.Backend != "fs" {
		t.Errorf("default cache backend should be fs, got %q", cfg.Cache.Backend)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("default dimensions should be 1536, got %d", cfg.Embedding.Dimensions)
	}
}

func TestLoad_MemoizesUntilReset(t *testing.T) {
	ResetForTests()
	defer ResetForTests()

	t.Setenv("LLM_MODEL", "first-model")
	a := Load()
	if a.LLM.Model != "first-model" {
		t.Fatalf("expected the env value on first load, got %s", a.LLM.Model)
	}

	t.Setenv("LLM_MODEL", "second-model")
	b := Load()
	if b.LLM.Model != "first-model" {
		t.Fatalf("expected the memoized value until reset, got %s", b.LLM.Model)
	}

	ResetForTests()
	c := Load()
	if c.LLM.Model != "second-model" {
		t.Fatalf("expected a fresh read after reset, got %s", c.LLM.Model)
	}
}

func TestHolder_SetReplacesConfig(t *testing.T) {
	cfg := Defaults()
	h := NewHolder(cfg)

	updated := *cfg
	updated.LLM.Model = "replaced"
	h.Set(updated)

	if got := h.Get(); got.LLM.Model != "replaced" {
		t.Fatalf("expected Set to replace the held config, got %q", got.LLM.Model)
	}
}
