// Package wiring turns a parsed config.Config into concrete adapter
// instances. Adapter selection is a plain switch over each tagged
// configuration field rather than a self-registering registry: there are
// exactly four fixed switchpoints (embedding provider, LLM provider,
// cache/coordinator backend, vector-store backend), not an open-ended
// plugin surface.
package wiring

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/cognee-core/engine/internal/adapter/fscache"
	"github.com/cognee-core/engine/internal/adapter/litellm"
	"github.com/cognee-core/engine/internal/adapter/natskv"
	"github.com/cognee-core/engine/internal/adapter/pgsession"
	"github.com/cognee-core/engine/internal/adapter/pgvector"
	"github.com/cognee-core/engine/internal/adapter/postgres"
	"github.com/cognee-core/engine/internal/adapter/ristretto"
	"github.com/cognee-core/engine/internal/adapter/tiered"
	"github.com/cognee-core/engine/internal/config"
	coreembedding "github.com/cognee-core/engine/internal/embedding"
	"github.com/cognee-core/engine/internal/errs"
	corellm "github.com/cognee-core/engine/internal/llmgateway"
	"github.com/cognee-core/engine/internal/port/cache"
	"github.com/cognee-core/engine/internal/port/coordinator"
	embeddingport "github.com/cognee-core/engine/internal/port/embedding"
	llmport "github.com/cognee-core/engine/internal/port/llmgateway"
	vectorstoreport "github.com/cognee-core/engine/internal/port/vectorstore"
	"github.com/cognee-core/engine/internal/resilience"
	"github.com/cognee-core/engine/internal/secrets"
	"github.com/cognee-core/engine/internal/usagelog"
	corevectorstore "github.com/cognee-core/engine/internal/vectorstore"
)

const (
	cacheKVBucket       = "cognee_cache"
	coordinatorKVBucket = "cognee_coordinator"
)

// Core bundles the adapter-selected collaborators the session manager and
// retriever layer are built from, plus the handles a caller must release
// on shutdown.
type Core struct {
	Embedding   embeddingport.Engine
	LLM         llmport.Gateway
	Cache       cache.Cache
	Coordinator coordinator.Coordinator
	VectorStore vectorstoreport.Store

	EmbeddingBreaker *resilience.Breaker
	LLMBreaker       *resilience.Breaker
	Vault            *secrets.Vault

	closers []io.Closer
}

// Close releases every resource Build opened (NATS connection, SQLite file
// handles, Postgres pool). Safe to call once; closers run in reverse
// acquisition order so a shared Postgres pool closes last.
func (c *Core) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Build wires a full Core from cfg: the embedding engine, LLM gateway,
// cache/coordinator pair, and vector store, each selected per its tagged
// configuration field, with named circuit breakers attached to the
// HTTP-backed adapters and the secrets vault attached to the LLM client
// and the usage-log sanitizer. Callers own the returned Core and
// must call Close when done with it.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*Core, error) {
	if log == nil {
		log = slog.Default()
	}

	vault, err := secrets.NewCoreVault()
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	core := &Core{
		EmbeddingBreaker: resilience.NewBreaker("embedding", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout),
		LLMBreaker:       resilience.NewBreaker("llm", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout),
		Vault:            vault,
	}

	stateChange := func(name string, from, to resilience.State) {
		log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
	}
	core.EmbeddingBreaker.OnStateChange(stateChange)
	core.LLMBreaker.OnStateChange(stateChange)

	usagelog.SetVault(vault)

	core.Embedding, err = newEmbeddingEngine(cfg, core.EmbeddingBreaker)
	if err != nil {
		return nil, fmt.Errorf("embedding engine: %w", err)
	}

	core.LLM, err = newLLMGateway(cfg, vault, core.LLMBreaker, log)
	if err != nil {
		return nil, fmt.Errorf("llm gateway: %w", err)
	}

	var pool *pgxpool.Pool
	needsPool := cfg.Cache.Backend == "postgres" || cfg.Postgres.DSN != ""
	if needsPool {
		pool, err = postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		core.closers = append(core.closers, closerFunc(func() error { pool.Close(); return nil }))
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	core.Cache, core.Coordinator, err = newCacheAndCoordinator(ctx, cfg, pool, &core.closers)
	if err != nil {
		return nil, fmt.Errorf("cache/coordinator: %w", err)
	}

	core.VectorStore = newVectorStore(cfg, pool, core.Embedding)

	return core, nil
}

// newEmbeddingEngine selects the HTTP or mock embedding engine per
// cfg.Embedding.Mock (the MOCK_EMBEDDING switch) and Provider, after
// validating the configured dimensionality.
func newEmbeddingEngine(cfg config.Config, breaker *resilience.Breaker) (embeddingport.Engine, error) {
	if cfg.Embedding.Dimensions <= 0 {
		return nil, errs.InvalidValue(fmt.Sprintf("embedding dimensions must be positive, got %d", cfg.Embedding.Dimensions))
	}
	if cfg.Embedding.Mock || cfg.Embedding.Provider == "mock" {
		return coreembedding.NewMockEngine(cfg.Embedding.Dimensions), nil
	}
	switch cfg.Embedding.Provider {
	case "", "openai", "azure", "litellm":
		return coreembedding.NewHTTPEngine(cfg.Embedding, cfg.Retry, breaker), nil
	default:
		return nil, errs.InvalidValue(fmt.Sprintf("unknown embedding provider %q", cfg.Embedding.Provider))
	}
}

// newLLMGateway selects the HTTP or mock LLM gateway per cfg.LLM.Provider.
// "mock" is this module's extension of the provider tag, symmetric to
// Embedding.Mock, since LLM.Provider otherwise has no offline-test path.
func newLLMGateway(cfg config.Config, vault *secrets.Vault, breaker *resilience.Breaker, log *slog.Logger) (llmport.Gateway, error) {
	if cfg.LLM.Provider == "mock" {
		return corellm.NewMockGateway(), nil
	}
	switch cfg.LLM.Provider {
	case "", "openai", "azure", "litellm":
		client := litellm.NewClient(cfg.LLM.Endpoint, cfg.LLM.APIKey)
		client.SetBreaker(breaker)
		client.SetVault(vault)
		return corellm.New(client, cfg.LLM, cfg.Retry, log), nil
	default:
		return nil, errs.InvalidValue(fmt.Sprintf("unknown llm provider %q", cfg.LLM.Provider))
	}
}

// newCacheAndCoordinator selects the cache/coordinator backend pair per
// cfg.Cache.Backend: "fs" (SQLite, the zero-dependency local default),
// "redis" (this module's legacy tag for the NATS JetStream KV remote
// tier; Cache.Host/Port name the NATS server), or "postgres" (reusing
// the vector store's connection pool so a Postgres-only deployment needs
// no second infrastructure dependency). ristretto always serves as L1;
// "postgres" has no standalone cache.Cache adapter, so it runs L1-only
// with no L2 tiering.
func newCacheAndCoordinator(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, closers *[]io.Closer) (cache.Cache, coordinator.Coordinator, error) {
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB * 1024 * 1024)
	if err != nil {
		return nil, nil, fmt.Errorf("ristretto l1 cache: %w", err)
	}
	*closers = append(*closers, closerFunc(func() error { l1.Close(); return nil }))

	switch cfg.Cache.Backend {
	case "fs", "":
		l2, err := fscache.Open(cfg.Cache.FSPath)
		if err != nil {
			return nil, nil, fmt.Errorf("fscache cache: %w", err)
		}
		*closers = append(*closers, l2)

		coord, err := fscache.OpenCoordinator(cfg.Cache.FSPath)
		if err != nil {
			return nil, nil, fmt.Errorf("fscache coordinator: %w", err)
		}
		*closers = append(*closers, coord)

		return tiered.New(l1, l2, cfg.Cache.L2TTL), coord, nil

	case "redis":
		nc, cacheKV, coordKV, err := dialNATSKV(ctx, cfg.Cache)
		if err != nil {
			return nil, nil, err
		}
		*closers = append(*closers, closerFunc(func() error { nc.Close(); return nil }))

		l2 := natskv.New(cacheKV)
		coord := natskv.NewCoordinator(coordKV)
		return tiered.New(l1, l2, cfg.Cache.L2TTL), coord, nil

	case "postgres":
		if pool == nil {
			return nil, nil, errs.InvalidValue("cache backend postgres requires postgres.dsn to be set")
		}
		return l1, pgsession.New(pool), nil

	default:
		return nil, nil, errs.InvalidValue(fmt.Sprintf("unknown cache backend %q", cfg.Cache.Backend))
	}
}

// dialNATSKV connects to NATS and ensures the two JetStream KV buckets
// this module needs (cache, coordinator) exist.
func dialNATSKV(ctx context.Context, cfg config.Cache) (*nats.Conn, jetstream.KeyValue, jetstream.KeyValue, error) {
	url := fmt.Sprintf("nats://%s:%d", cfg.Host, cfg.Port)
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, nil, fmt.Errorf("jetstream init: %w", err)
	}

	cacheKV, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: cacheKVBucket})
	if err != nil {
		nc.Close()
		return nil, nil, nil, fmt.Errorf("cache kv bucket: %w", err)
	}

	coordKV, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: coordinatorKVBucket})
	if err != nil {
		nc.Close()
		return nil, nil, nil, fmt.Errorf("coordinator kv bucket: %w", err)
	}

	return nc, cacheKV, coordKV, nil
}

// newVectorStore selects the Postgres/pgvector store when a Postgres pool
// is available, falling back to the in-process brute-force store
// otherwise.
func newVectorStore(cfg config.Config, pool *pgxpool.Pool, engine embeddingport.Engine) vectorstoreport.Store {
	if pool != nil {
		return pgvector.New(pool, engine)
	}
	return corevectorstore.NewMemoryStore(engine)
}
