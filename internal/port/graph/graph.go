// Package graph defines the port interface for the graph-database
// collaborator consumed (read/write) by the retriever core: node/edge
// upsert, directed neighborhood queries, and the time-window collection
// operations the temporal retriever relies on.
package graph

import (
	"context"
	"time"

	"github.com/cognee-core/engine/internal/domain/graphmodel"
)

// Graph is the uniform interface the retriever core and its supporting
// ingestion collaborators consume. Unlike the vector store, this package
// does not implement the production adapter: only the in-memory reference
// adapter (internal/adapter/memgraph), used by tests and local
// development, ships with the core. A production graph database driver is
// an external collaborator implementing this interface.
type Graph interface {
	// UpsertNode creates or updates a node identified by id, with name as
	// its display text and attrs as additional payload.
	UpsertNode(ctx context.Context, id, name string, attrs map[string]any) error

	// UpsertEdge creates a directed edge; repeated calls with the same
	// (sourceID, relationship, targetID) add independent edges rather than
	// deduplicating, matching the graph backend's append-only edge model.
	UpsertEdge(ctx context.Context, sourceID, relationship, targetID string, edgePayload map[string]any) error

	// Neighborhood returns every edge touching nodeID as either endpoint,
	// resolved to display names where known.
	Neighborhood(ctx context.Context, nodeID string) ([]graphmodel.Triplet, error)

	// CollectTimeIDs returns the ids of event nodes whose timestamp falls
	// within [from, to]; either bound may be nil to mean unbounded on that
	// side. Both nil returns every event id.
	CollectTimeIDs(ctx context.Context, from, to *time.Time) ([]string, error)

	// CollectEvents hydrates event ids into their full payloads, skipping
	// any id that no longer exists.
	CollectEvents(ctx context.Context, ids []string) ([]graphmodel.Event, error)

	// Dump returns every edge in the graph as a triplet, for pipelines that
	// need a full export (e.g. re-embedding Triplet_text from scratch).
	Dump(ctx context.Context) ([]graphmodel.Triplet, error)
}
