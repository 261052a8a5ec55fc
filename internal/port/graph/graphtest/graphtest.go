// Package graphtest provides a compliance suite shared by every graph.Graph
// adapter.
package graphtest

import (
	"context"
	"testing"
	"time"

	"github.com/cognee-core/engine/internal/port/graph"
)

// RunComplianceTests runs the standard compliance test suite against any
// Graph implementation.
func RunComplianceTests(t *testing.T, g graph.Graph) {
	t.Helper()
	ctx := context.Background()

	t.Run("UpsertNodeAndNeighborhood", func(t *testing.T) {
		if err := g.UpsertNode(ctx, "n1", "Node One", nil); err != nil {
			t.Fatal(err)
		}
		if err := g.UpsertNode(ctx, "n2", "Node Two", nil); err != nil {
			t.Fatal(err)
		}
		if err := g.UpsertEdge(ctx, "n1", "relates", "n2", nil); err != nil {
			t.Fatal(err)
		}
		triplets, err := g.Neighborhood(ctx, "n1")
		if err != nil {
			t.Fatal(err)
		}
		if len(triplets) != 1 {
			t.Fatalf("expected 1 triplet, got %d", len(triplets))
		}
		if got := triplets[0].Text(); got != "Node One -- relates -- Node Two" {
			t.Fatalf("unexpected triplet text: %q", got)
		}
	})

	t.Run("NeighborhoodMissingNode", func(t *testing.T) {
		triplets, err := g.Neighborhood(ctx, "never-existed")
		if err != nil {
			t.Fatal(err)
		}
		if len(triplets) != 0 {
			t.Fatalf("expected no triplets, got %d", len(triplets))
		}
	})

	t.Run("UpsertEdgeAppendsRatherThanDeduplicates", func(t *testing.T) {
		_ = g.UpsertNode(ctx, "a1", "A1", nil)
		_ = g.UpsertNode(ctx, "a2", "A2", nil)
		_ = g.UpsertEdge(ctx, "a1", "knows", "a2", nil)
		_ = g.UpsertEdge(ctx, "a1", "knows", "a2", nil)
		triplets, err := g.Neighborhood(ctx, "a1")
		if err != nil {
			t.Fatal(err)
		}
		if len(triplets) != 2 {
			t.Fatalf("expected 2 independent edges, got %d", len(triplets))
		}
	})

	t.Run("CollectTimeIDsBounded", func(t *testing.T) {
		from := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC)
		ids, err := g.CollectTimeIDs(ctx, &from, &to)
		if err != nil {
			t.Fatal(err)
		}
		_ = ids // implementations vary in seeded events; this exercises the call shape only
	})

	t.Run("CollectEventsSkipsMissing", func(t *testing.T) {
		events, err := g.CollectEvents(ctx, []string{"never-existed"})
		if err != nil {
			t.Fatal(err)
		}
		if len(events) != 0 {
			t.Fatalf("expected no events, got %d", len(events))
		}
	})

	t.Run("Dump", func(t *testing.T) {
		triplets, err := g.Dump(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(triplets) == 0 {
			t.Fatal("expected at least the edges seeded by earlier subtests")
		}
	})
}
