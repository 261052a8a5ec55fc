// Package cachetest provides a compliance suite shared by every
// cache.Cache adapter, so each backend (ristretto, natskv, fscache) is
// checked against the same behavioral contract instead of hand-rolling
// its own Get/Set/Delete assertions.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/cognee-core/engine/internal/port/cache"
)

// settler is implemented by adapters (e.g. ristretto) whose writes apply
// asynchronously; RunComplianceTests calls Wait after every Set/Delete so
// the suite observes read-your-writes consistency regardless of backend.
type settler interface {
	Wait()
}

func settle(c cache.Cache) {
	if s, ok := c.(settler); ok {
		s.Wait()
	}
}

// RunComplianceTests runs the standard compliance test suite against any
// Cache implementation.
func RunComplianceTests(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "compliance-key", []byte("compliance-val"), time.Minute); err != nil {
			t.Fatal(err)
		}
		settle(c)
		val, found, err := c.Get(ctx, "compliance-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "compliance-val" {
			t.Fatalf("expected compliance-val, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "nonexistent-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "del-key", []byte("del-val"), time.Minute)
		settle(c)
		if err := c.Delete(ctx, "del-key"); err != nil {
			t.Fatal(err)
		}
		settle(c)
		_, found, err := c.Get(ctx, "del-key")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, "never-existed"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "ow-key", []byte("v1"), time.Minute)
		settle(c)
		_ = c.Set(ctx, "ow-key", []byte("v2"), time.Minute)
		settle(c)
		val, found, err := c.Get(ctx, "ow-key")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})
}
