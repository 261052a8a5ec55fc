package wiring_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cognee-core/engine/internal/config"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/wiring"
)

func offlineConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := *config.Defaults()
	cfg.Embedding.Mock = true
	cfg.LLM.Provider = "mock"
	cfg.Cache.Backend = "fs"
	cfg.Cache.FSPath = filepath.Join(t.TempDir(), "cache.db")
	return cfg
}

func TestBuildOfflineCore(t *testing.T) {
	core, err := wiring.Build(context.Background(), offlineConfig(t), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer func() { _ = core.Close() }()

	if core.Embedding == nil || core.LLM == nil || core.Cache == nil || core.Coordinator == nil || core.VectorStore == nil {
		t.Fatalf("expected every collaborator wired, got %+v", core)
	}
	if !core.Coordinator.IsAvailable() {
		t.Fatal("expected the fs coordinator to report available")
	}

	// The offline core should answer a full embed-insert-search round trip.
	ctx := context.Background()
	if err := core.VectorStore.CreateCollection(ctx, "smoke"); err != nil {
		t.Fatal(err)
	}
	ok, err := core.VectorStore.HasCollection(ctx, "smoke")
	if err != nil || !ok {
		t.Fatalf("expected the collection to exist, got (%v, %v)", ok, err)
	}
}

func TestBuildCloseIsSafe(t *testing.T) {
	core, err := wiring.Build(context.Background(), offlineConfig(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := core.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestBuildRejectsUnknownProviders(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Embedding.Mock = false
	cfg.Embedding.Provider = "nonsense"
	if _, err := wiring.Build(context.Background(), cfg, nil); !errs.Is(err, errs.KindInvalidValueError) {
		t.Fatalf("expected InvalidValueError for an unknown embedding provider, got %v", err)
	}

	cfg = offlineConfig(t)
	cfg.LLM.Provider = "nonsense"
	if _, err := wiring.Build(context.Background(), cfg, nil); !errs.Is(err, errs.KindInvalidValueError) {
		t.Fatalf("expected InvalidValueError for an unknown llm provider, got %v", err)
	}
}

func TestBuildRejectsNonPositiveDimensions(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Embedding.Dimensions = 0
	if _, err := wiring.Build(context.Background(), cfg, nil); !errs.Is(err, errs.KindInvalidValueError) {
		t.Fatalf("expected InvalidValueError for zero dimensions, got %v", err)
	}
}

func TestBuildRejectsPostgresBackendWithoutDSN(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.Cache.Backend = "postgres"
	cfg.Postgres.DSN = ""
	if _, err := wiring.Build(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected an error for cache backend postgres without a DSN")
	}
}
