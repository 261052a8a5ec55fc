// Package vectorstoretest provides a compliance suite shared by every
// vectorstore.Store adapter (in-memory, pgvector), so each backend is
// checked against the same collection-lifecycle and search contract
// instead of hand-rolling its own assertions per adapter.
package vectorstoretest

import (
	"context"
	"testing"

	"github.com/cognee-core/engine/internal/domain/datapoint"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/vectorstore"
)

func newPoint(text string) datapoint.DataPoint {
	return datapoint.New(map[string]any{"text": text}, "text")
}

// RunComplianceTests runs the standard compliance test suite against any
// Store implementation. Each subtest uses a collection name derived from
// t.Name() so the suite is safe to run against a shared, persistent
// backend (e.g. Postgres) as well as a throwaway in-memory one.
func RunComplianceTests(t *testing.T, store vectorstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateCollectionIsIdempotent", func(t *testing.T) {
		name := "vst_" + t.Name()
		if err := store.CreateCollection(ctx, name); err != nil {
			t.Fatal(err)
		}
		if err := store.CreateCollection(ctx, name); err != nil {
			t.Fatalf("second CreateCollection call should be a no-op, got %v", err)
		}
		ok, err := store.HasCollection(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("expected the collection to exist")
		}
	})

	t.Run("CreateDataPointsRequiresExistingCollection", func(t *testing.T) {
		name := "vst_" + t.Name()
		err := store.CreateDataPoints(ctx, name, []datapoint.DataPoint{newPoint("hello")})
		if !errs.Is(err, errs.KindCollectionNotFound) {
			t.Fatalf("expected CollectionNotFound, got %v", err)
		}
	})

	t.Run("CreateAndRetrieveRoundTrip", func(t *testing.T) {
		name := "vst_" + t.Name()
		_ = store.CreateCollection(ctx, name)

		p := newPoint("round trip content")
		if err := store.CreateDataPoints(ctx, name, []datapoint.DataPoint{p}); err != nil {
			t.Fatal(err)
		}

		results, err := store.Retrieve(ctx, name, []string{p.ID.String()})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 || results[0].ID != p.ID {
			t.Fatalf("expected the point to round-trip by id, got %+v", results)
		}
	})

	t.Run("RetrieveSkipsUnknownIDs", func(t *testing.T) {
		name := "vst_" + t.Name()
		_ = store.CreateCollection(ctx, name)
		p := newPoint("a")
		_ = store.CreateDataPoints(ctx, name, []datapoint.DataPoint{p})

		results, err := store.Retrieve(ctx, name, []string{p.ID.String(), "not-a-uuid", "00000000-0000-0000-0000-000000000000"})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 {
			t.Fatalf("expected only the valid known id to resolve, got %d results", len(results))
		}
	})

	t.Run("SearchOrdersByNormalizedDistance", func(t *testing.T) {
		name := "vst_" + t.Name()
		_ = store.CreateCollection(ctx, name)

		exact := newPoint("apple banana cherry")
		near := newPoint("apple banana")
		far := newPoint("zzz qqq xxx")
		if err := store.CreateDataPoints(ctx, name, []datapoint.DataPoint{exact, near, far}); err != nil {
			t.Fatal(err)
		}

		results, err := store.Search(ctx, name, "apple banana cherry", nil, 0, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if results[0].Score != 0 {
			t.Fatalf("expected the best match to carry score 0, got %f", results[0].Score)
		}
		for i := 1; i < len(results); i++ {
			if results[i].Score < results[i-1].Score {
				t.Fatalf("expected scores in ascending order, got %v", results)
			}
		}
		if results[len(results)-1].Score != 1 {
			t.Fatalf("expected the worst match to carry score 1, got %f", results[len(results)-1].Score)
		}
	})

	t.Run("SearchRequiresTextOrVector", func(t *testing.T) {
		name := "vst_" + t.Name()
		_ = store.CreateCollection(ctx, name)

		_, err := store.Search(ctx, name, "", nil, 0, false)
		if !errs.Is(err, errs.KindMissingQueryParameter) {
			t.Fatalf("expected MissingQueryParameter, got %v", err)
		}
	})

	t.Run("SearchMissingCollectionReturnsEmpty", func(t *testing.T) {
		name := "vst_never_created_" + t.Name()
		results, err := store.Search(ctx, name, "q", nil, 0, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 0 {
			t.Fatalf("expected no results for a missing collection, got %d", len(results))
		}
	})

	t.Run("DeleteDataPointsIsIdempotent", func(t *testing.T) {
		name := "vst_" + t.Name()
		_ = store.CreateCollection(ctx, name)
		p := newPoint("a")
		_ = store.CreateDataPoints(ctx, name, []datapoint.DataPoint{p})

		if err := store.DeleteDataPoints(ctx, name, []string{p.ID.String()}); err != nil {
			t.Fatal(err)
		}
		if err := store.DeleteDataPoints(ctx, name, []string{p.ID.String()}); err != nil {
			t.Fatal(err)
		}

		results, err := store.Retrieve(ctx, name, []string{p.ID.String()})
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 0 {
			t.Fatalf("expected the deleted point to be gone, got %+v", results)
		}
	})

	t.Run("BatchSearchMatchesPerQueryOrdering", func(t *testing.T) {
		name := "vst_" + t.Name()
		_ = store.CreateCollection(ctx, name)
		alpha := newPoint("alpha")
		beta := newPoint("beta")
		_ = store.CreateDataPoints(ctx, name, []datapoint.DataPoint{alpha, beta})

		results, err := store.BatchSearch(ctx, name, []string{"alpha", "beta"}, 0, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Fatalf("expected one result set per query, got %d", len(results))
		}
		if results[0][0].ID != alpha.ID {
			t.Fatalf("expected first query's top hit to be alpha, got %+v", results[0][0])
		}
		if results[1][0].ID != beta.ID {
			t.Fatalf("expected second query's top hit to be beta, got %+v", results[1][0])
		}
	})
}
