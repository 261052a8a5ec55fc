// Package vectorstore defines the port interface for the vector store
// abstraction: collection lifecycle, point upsert, kNN search, batch
// search, delete, and prune, consumed by the retriever core.
package vectorstore

import (
	"context"

	"github.com/cognee-core/engine/internal/domain/datapoint"
)

// Store is the uniform vector-store interface; one instance owns one or
// more named collections sharing a distance metric (cosine).
type Store interface {
	// HasCollection reports whether name exists, with no side effects.
	HasCollection(ctx context.Context, name string) (bool, error)

	// CreateCollection is idempotent: the collection exists when this
	// returns without error, whether or not it already did.
	CreateCollection(ctx context.Context, name string) error

	// CreateDataPoints upserts points by id into name, embedding each
	// point's index fields via the embedding engine.
	CreateDataPoints(ctx context.Context, name string, points []datapoint.DataPoint) error

	// Retrieve returns the points in name matching ids, in no particular
	// order, each with Score=0. Missing ids are silently dropped.
	Retrieve(ctx context.Context, name string, ids []string) ([]datapoint.ScoredResult, error)

	// Search performs a kNN query against name by text (embedded via the
	// embedding engine) or by a precomputed vector; exactly one must be
	// provided. limit=0
	// means no limit (substitute collection cardinality). Returns an
	// empty slice, not an error, if the collection is absent.
	Search(ctx context.Context, name string, text string, vector []float32, limit int, withVector bool) ([]datapoint.ScoredResult, error)

	// BatchSearch runs Search once per entry in texts, preserving order:
	// result[i] depends only on texts[i].
	BatchSearch(ctx context.Context, name string, texts []string, limit int, withVector bool) ([][]datapoint.ScoredResult, error)

	// DeleteDataPoints removes ids from name. Absent ids are a no-op.
	DeleteDataPoints(ctx context.Context, name string, ids []string) error

	// Prune drops every collection owned by this store.
	Prune(ctx context.Context) error
}
