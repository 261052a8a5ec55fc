// Package memgraph implements the in-memory reference adapter for the
// graph port (internal/port/graph): a mutex-guarded node/edge/event store
// in the same shape as internal/vectorstore's brute-force MemoryStore.
// It backs tests and local development; production deployments bring
// their own graph-database driver behind the same port.
//
// Not to be confused with the third-party Memgraph database: this package
// is named for what it is, an in-memory graph, and has no relation to it.
package memgraph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cognee-core/engine/internal/domain/graphmodel"
	"github.com/cognee-core/engine/internal/port/graph"
)

type nodeRecord struct {
	id    string
	name  string
	attrs map[string]any
}

type edgeRecord struct {
	sourceID     string
	relationship string
	targetID     string
	payload      map[string]any
}

type eventRecord struct {
	id        string
	text      string
	timestamp time.Time
}

// Graph is an in-process, mutex-guarded implementation of graph.Graph.
type Graph struct {
	mu     sync.RWMutex
	nodes  map[string]*nodeRecord
	edges  []*edgeRecord
	events map[string]*eventRecord
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		nodes:  map[string]*nodeRecord{},
		events: map[string]*eventRecord{},
	}
}

func (g *Graph) UpsertNode(_ context.Context, id, name string, attrs map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[id] = &nodeRecord{id: id, name: name, attrs: attrs}
	return nil
}

func (g *Graph) UpsertEdge(_ context.Context, sourceID, relationship, targetID string, edgePayload map[string]any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, &edgeRecord{sourceID: sourceID, relationship: relationship, targetID: targetID, payload: edgePayload})
	return nil
}

// IndexEvent seeds an event node directly, bypassing UpsertNode: a
// convenience for tests and for the ingestion side, which knows event
// timestamps up front rather than deriving them from attrs.
func (g *Graph) IndexEvent(id, text string, timestamp time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events[id] = &eventRecord{id: id, text: text, timestamp: timestamp}
}

// displayName must be called with g.mu held for reading.
func (g *Graph) displayName(id string) string {
	if n, ok := g.nodes[id]; ok && n.name != "" {
		return n.name
	}
	return id
}

func (g *Graph) Neighborhood(_ context.Context, nodeID string) ([]graphmodel.Triplet, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []graphmodel.Triplet
	for _, e := range g.edges {
		if e.sourceID != nodeID && e.targetID != nodeID {
			continue
		}
		out = append(out, graphmodel.Triplet{
			SourceNodeID:     e.sourceID,
			RelationshipName: e.relationship,
			TargetNodeID:     e.targetID,
			SourceName:       g.displayName(e.sourceID),
			TargetName:       g.displayName(e.targetID),
			EdgePayload:      e.payload,
		})
	}
	return out, nil
}

func (g *Graph) CollectTimeIDs(_ context.Context, from, to *time.Time) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for id, ev := range g.events {
		if from != nil && ev.timestamp.Before(*from) {
			continue
		}
		if to != nil && ev.timestamp.After(*to) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (g *Graph) CollectEvents(_ context.Context, ids []string) ([]graphmodel.Event, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]graphmodel.Event, 0, len(ids))
	for _, id := range ids {
		ev, ok := g.events[id]
		if !ok {
			continue
		}
		out = append(out, graphmodel.Event{ID: ev.id, Text: ev.text, Timestamp: ev.timestamp})
	}
	return out, nil
}

func (g *Graph) Dump(_ context.Context) ([]graphmodel.Triplet, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]graphmodel.Triplet, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, graphmodel.Triplet{
			SourceNodeID:     e.sourceID,
			RelationshipName: e.relationship,
			TargetNodeID:     e.targetID,
			SourceName:       g.displayName(e.sourceID),
			TargetName:       g.displayName(e.targetID),
			EdgePayload:      e.payload,
		})
	}
	return out, nil
}

var _ graph.Graph = (*Graph)(nil)
