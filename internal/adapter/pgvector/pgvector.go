// Package pgvector provides a Postgres-backed vectorstore.Store adapter:
// a single vector_points table partitioned by collection name, queried
// through the pgvector extension's cosine-distance operator with
// embeddings encoded via the pgvector-go client.
package pgvector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/cognee-core/engine/internal/adapter/postgres"
	"github.com/cognee-core/engine/internal/domain/datapoint"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/embedding"
	"github.com/cognee-core/engine/internal/port/vectorstore"
)

// Store is a vectorstore.Store backed by a single Postgres table with a
// pgvector column, partitioned by collection name. All collections share
// the dimensionality of the configured embedding engine.
type Store struct {
	pool   *pgxpool.Pool
	engine embedding.Engine
}

// New creates a Store. The target table (see migrations/0001_vector_store.sql)
// must already exist with a vector column sized to engine.VectorSize().
func New(pool *pgxpool.Pool, engine embedding.Engine) *Store {
	return &Store{pool: pool, engine: engine}
}

func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check collection: %w", err)
	}
	return exists, nil
}

// CreateCollection inserts a row into vector_collections if absent. The
// ON CONFLICT clause makes this idempotent under races without an explicit
// advisory lock: Postgres's own unique-index conflict resolution serves
// the same role the in-process mutex plays for the memory adapter.
func (s *Store) CreateCollection(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vector_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

func (s *Store) CreateDataPoints(ctx context.Context, name string, points []datapoint.DataPoint) error {
	ok, err := s.HasCollection(ctx, name)
	if err != nil {
		return err
	}
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

	batch := &pgx.Batch{}
	for i, p := range points {
		batch.Queue(
			`INSERT INTO vector_points (collection, id, payload, embedding)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (collection, id) DO UPDATE SET payload = EXCLUDED.payload, embedding = EXCLUDED.embedding`,
			name, p.ID, p.Payload, pgv.NewVector(vectors[i]))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()
	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert data point: %w", err)
		}
	}
	return nil
}

func (s *Store) Retrieve(ctx context.Context, name string, ids []string) ([]datapoint.ScoredResult, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, payload FROM vector_points WHERE collection = $1 AND id = ANY($2)`, name, valid)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	defer rows.Close()

	var out []datapoint.ScoredResult
	for rows.Next() {
		var res datapoint.ScoredResult
		if err := rows.Scan(&res.ID, &res.Payload); err != nil {
			return nil, fmt.Errorf("scan retrieve row: %w", err)
		}
		out = append(out, res)
	}
	return postgres.OrEmpty(out), rows.Err()
}

type row struct {
	id      string
	payload map[string]any
	dist    float64
	vector  []float32
}

func (s *Store) queryByVector(ctx context.Context, name string, vec []float32, limit int, withVector bool) ([]row, error) {
	selectCols := "id, payload, embedding <=> $2 AS dist"
	if withVector {
		selectCols += ", embedding"
	}
	q := fmt.Sprintf(`SELECT %s FROM vector_points WHERE collection = $1 ORDER BY dist ASC, id ASC`, selectCols)
	args := []any{name, pgv.NewVector(vec)}
	if limit > 0 {
		q += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		var r row
		var vraw pgv.Vector
		if withVector {
			if err := rows.Scan(&r.id, &r.payload, &r.dist, &vraw); err != nil {
				return nil, fmt.Errorf("scan search row: %w", err)
			}
			r.vector = vraw.Slice()
		} else {
			if err := rows.Scan(&r.id, &r.payload, &r.dist); err != nil {
				return nil, fmt.Errorf("scan search row: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// normalize rewrites raw cosine distances into [0,1] scores, min distance
// mapping to score 0 (best match) and max distance to score 1, so ranking
// stays backend-agnostic regardless of each engine's raw distance range.
func normalize(rows []row) []datapoint.ScoredResult {
	if len(rows) == 0 {
		return []datapoint.ScoredResult{}
	}
	minD, maxD := rows[0].dist, rows[0].dist
	for _, r := range rows {
		if r.dist < minD {
			minD = r.dist
		}
		if r.dist > maxD {
			maxD = r.dist
		}
	}
	out := make([]datapoint.ScoredResult, 0, len(rows))
	for _, r := range rows {
		var score float64
		if maxD > minD {
			score = (r.dist - minD) / (maxD - minD)
		}
		id, err := uuid.Parse(r.id)
		if err != nil {
			continue
		}
		out = append(out, datapoint.ScoredResult{ID: id, Payload: r.payload, Score: score, Vector: r.vector})
	}
	return out
}

func (s *Store) Search(ctx context.Context, name string, text string, vector []float32, limit int, withVector bool) ([]datapoint.ScoredResult, error) {
	if text == "" && vector == nil {
		return nil, errs.MissingQueryParameter("search requires text or vector")
	}

	ok, err := s.HasCollection(ctx, name)
	if err != nil {
		return nil, err
	}
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

	rows, err := s.queryByVector(ctx, name, q, limit, withVector)
	if err != nil {
		return nil, err
	}
	return normalize(rows), nil
}

func (s *Store) BatchSearch(ctx context.Context, name string, texts []string, limit int, withVector bool) ([][]datapoint.ScoredResult, error) {
	out := make([][]datapoint.ScoredResult, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	ok, err := s.HasCollection(ctx, name)
	if err != nil {
		return nil, err
	}
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
		rows, err := s.queryByVector(ctx, name, v, limit, withVector)
		if err != nil {
			return nil, err
		}
		out[i] = normalize(rows)
	}
	return out, nil
}

func (s *Store) DeleteDataPoints(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM vector_points WHERE collection = $1 AND id = ANY($2)`, name, ids)
	if err != nil {
		return fmt.Errorf("delete data points: %w", err)
	}
	return nil
}

func (s *Store) Prune(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("prune: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM vector_points`); err != nil {
		return fmt.Errorf("prune points: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM vector_collections`); err != nil {
		return fmt.Errorf("prune collections: %w", err)
	}
	return tx.Commit(ctx)
}

var _ vectorstore.Store = (*Store)(nil)
