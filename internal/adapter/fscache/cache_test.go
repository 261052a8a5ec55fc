package fscache_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cognee-core/engine/internal/adapter/fscache"
	"github.com/cognee-core/engine/internal/port/cache/cachetest"
)

func newCache(t *testing.T) *fscache.Cache {
	t.Helper()
	c, err := fscache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestFSCacheCompliance(t *testing.T) {
	cachetest.RunComplianceTests(t, newCache(t))
}

func TestFSCachePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := t.Context()

	c1, err := fscache.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c1.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := c1.Close(); err != nil {
		t.Fatal(err)
	}

	c2, err := fscache.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c2.Close() }()

	val, found, err := c2.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(val) != "v" {
		t.Fatalf("expected the entry to survive reopening the file, got (%s, %v)", val, found)
	}
}

func TestFSCacheExpiredEntryIsEvictedOnGet(t *testing.T) {
	c := newCache(t)
	ctx := t.Context()

	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	_, found, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected an expired entry to read as a miss")
	}
}
