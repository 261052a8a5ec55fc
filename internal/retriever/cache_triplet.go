package retriever

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cognee-core/engine/internal/domain/datapoint"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/llmgateway"
	"github.com/cognee-core/engine/internal/port/vectorstore"
	"github.com/cognee-core/engine/internal/session"
)

// CacheTripletRetriever is TripletRetriever's twin reading from the
// cache-backed vector engine's CacheCollection instead of
// TripletCollection. A dedicated store is injected so this variant can
// point at a distinct engine instance (e.g. an L1/L2 cache tier) from the
// main TripletRetriever.
type CacheTripletRetriever struct {
	base
	cacheStore vectorstore.Store
}

// NewCacheTripletRetriever creates a CacheTripletRetriever over cacheStore.
func NewCacheTripletRetriever(cacheStore vectorstore.Store, llm llmgateway.Gateway, sessionMgr *session.Manager, log *slog.Logger, opts Options) *CacheTripletRetriever {
	return &CacheTripletRetriever{base: newBase(llm, sessionMgr, log, opts), cacheStore: cacheStore}
}

func (c *CacheTripletRetriever) GetRetrievedObjects(ctx context.Context, query string) (any, error) {
	has, err := c.cacheStore.HasCollection(ctx, CacheCollection)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, errs.NoData(CacheCollection)
	}
	return c.cacheStore.Search(ctx, CacheCollection, query, nil, c.topK, false)
}

func (c *CacheTripletRetriever) GetContextFromObjects(_ context.Context, _ string, objects any) (string, error) {
	results, _ := objects.([]datapoint.ScoredResult)
	if len(results) == 0 {
		return "", nil
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, textFromCachePayload(r.Payload))
	}
	return strings.Join(lines, "\n"), nil
}

func (c *CacheTripletRetriever) GetCompletionFromContext(ctx context.Context, query string, _ any, contextText string) ([]string, error) {
	return c.completeWithContext(ctx, query, contextText)
}

// textFromCachePayload extracts display text from a cache result payload,
// which is a full DataPoint snapshot rather than a pre-flattened "text"
// field: fall back to the first declared index field when "text" is
// absent.
func textFromCachePayload(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	if text, ok := payload["text"].(string); ok {
		return text
	}
	meta, _ := payload["metadata"].(map[string]any)
	if meta != nil {
		if fields, ok := meta["index_fields"].([]string); ok && len(fields) > 0 {
			if v, ok := payload[fields[0]].(string); ok {
				return v
			}
		}
	}
	return ""
}

var _ Retriever = (*CacheTripletRetriever)(nil)
