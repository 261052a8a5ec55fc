// Package vectorstore implements the in-process brute-force
// cosine-similarity vector store: a mutex-guarded collection map with a
// per-instance lock making CreateCollection idempotent under races. A
// Postgres/pgvector-backed adapter for durable deployments lives in
// internal/adapter/pgvector.
package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cognee-core/engine/internal/domain/datapoint"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/embedding"
	"github.com/cognee-core/engine/internal/port/vectorstore"
)

type point struct {
	id      uuid.UUID
	payload map[string]any
	vector  []float32
}

type collection struct {
	mu     sync.RWMutex
	points map[uuid.UUID]*point
}

// MemoryStore is a brute-force, cosine-similarity vectorstore.Store held
// entirely in process memory. Suitable for tests, MOCK_EMBEDDING runs, and
// small deployments; CreateCollection is guarded by vdbLock so concurrent
// callers racing to create the same collection observe a single creation.
type MemoryStore struct {
	engine embedding.Engine

	vdbLock     sync.Mutex
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewMemoryStore creates a MemoryStore that embeds text via engine.
func NewMemoryStore(engine embedding.Engine) *MemoryStore {
	return &MemoryStore{
		engine:      engine,
		collections: map[string]*collection{},
	}
}

func (s *MemoryStore) HasCollection(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

// CreateCollection is idempotent under races: vdbLock serializes the
// check-then-create so two concurrent callers for the same name never
// create two collection objects.
func (s *MemoryStore) CreateCollection(_ context.Context, name string) error {
	s.vdbLock.Lock()
	defer s.vdbLock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &collection{points: map[uuid.UUID]*point{}}
	}
	return nil
}

func (s *MemoryStore) lookup(name string) (*collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	return c, ok
}

// CreateDataPoints upserts points by id, embedding each point's declared
// index fields via the configured embedding engine. The collection must
// already exist.
func (s *MemoryStore) CreateDataPoints(ctx context.Context, name string, points []datapoint.DataPoint) error {
	c, ok := s.lookup(name)
	if !ok {
		return errs.CollectionNotFound(name)
	}
	if len(points) == 0 {
		return nil
	}

	texts := make([]string, len(points))
	for i, p := range points {
		texts[i] = p.EmbeddingText()
	}
	vectors, err := s.engine.EmbedText(ctx, texts)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range points {
		c.points[p.ID] = &point{id: p.ID, payload: p.Payload, vector: vectors[i]}
	}
	return nil
}

func (s *MemoryStore) Retrieve(_ context.Context, name string, ids []string) ([]datapoint.ScoredResult, error) {
	c, ok := s.lookup(name)
	if !ok {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]datapoint.ScoredResult, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		p, ok := c.points[id]
		if !ok {
			continue
		}
		out = append(out, datapoint.ScoredResult{ID: p.id, Payload: p.payload, Score: 0})
	}
	return out, nil
}

// cosineDistance returns cosine distance in [0,2]: 1 - cosine_similarity.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return 1 - sim
}

func (s *MemoryStore) search(c *collection, vector []float32, limit int, withVector bool) []datapoint.ScoredResult {
	c.mu.RLock()
	type scored struct {
		p    *point
		dist float64
	}
	all := make([]scored, 0, len(c.points))
	for _, p := range c.points {
		all = append(all, scored{p: p, dist: cosineDistance(vector, p.vector)})
	}
	c.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].dist != all[j].dist {
			return all[i].dist < all[j].dist
		}
		return all[i].p.id.String() < all[j].p.id.String()
	})

	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	minDist, maxDist := math.MaxFloat64, -math.MaxFloat64
	for _, sc := range all {
		if sc.dist < minDist {
			minDist = sc.dist
		}
		if sc.dist > maxDist {
			maxDist = sc.dist
		}
	}

	out := make([]datapoint.ScoredResult, len(all))
	for i, sc := range all {
		var score float64
		if maxDist > minDist {
			score = (sc.dist - minDist) / (maxDist - minDist)
		}
		res := datapoint.ScoredResult{ID: sc.p.id, Payload: sc.p.payload, Score: score}
		if withVector {
			res.Vector = sc.p.vector
		}
		out[i] = res
	}
	return out
}

func (s *MemoryStore) Search(ctx context.Context, name string, text string, vector []float32, limit int, withVector bool) ([]datapoint.ScoredResult, error) {
	if text == "" && vector == nil {
		return nil, errs.MissingQueryParameter("search requires text or vector")
	}

	c, ok := s.lookup(name)
	if !ok {
		return []datapoint.ScoredResult{}, nil
	}

	q := vector
	if q == nil {
		vecs, err := s.engine.EmbedText(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		q = vecs[0]
	}
	return s.search(c, q, limit, withVector), nil
}

func (s *MemoryStore) BatchSearch(ctx context.Context, name string, texts []string, limit int, withVector bool) ([][]datapoint.ScoredResult, error) {
	out := make([][]datapoint.ScoredResult, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	c, ok := s.lookup(name)
	if !ok {
		for i := range out {
			out[i] = []datapoint.ScoredResult{}
		}
		return out, nil
	}

	vectors, err := s.engine.EmbedText(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, v := range vectors {
		out[i] = s.search(c, v, limit, withVector)
	}
	return out, nil
}

func (s *MemoryStore) DeleteDataPoints(_ context.Context, name string, ids []string) error {
	c, ok := s.lookup(name)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		delete(c.points, id)
	}
	return nil
}

func (s *MemoryStore) Prune(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = map[string]*collection{}
	return nil
}

var _ vectorstore.Store = (*MemoryStore)(nil)
