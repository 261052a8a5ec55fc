package retriever

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cognee-core/engine/internal/domain/datapoint"
	"github.com/cognee-core/engine/internal/domain/graphmodel"
	"github.com/cognee-core/engine/internal/port/graph"
	"github.com/cognee-core/engine/internal/port/llmgateway"
	"github.com/cognee-core/engine/internal/port/vectorstore"
	"github.com/cognee-core/engine/internal/session"
)

const temporalExtractionSystemPrompt = "If the user's question refers to a specific time window, respond with " +
	"time_from and time_to as RFC3339 timestamps bounding it. Leave both fields empty if no time window is implied."

// eventResults carries re-ranked event candidates between GetRetrievedObjects
// and GetContextFromObjects for the time-windowed path. The triplet fallback
// path instead returns a []datapoint.ScoredResult, as GraphCompletionRetriever
// does, and is handled by delegating to the embedded retriever's own methods.
type eventResults []datapoint.ScoredResult

// TemporalRetriever narrows context to a time window extracted from the
// query: it resolves the window's event ids through the graph
// collaborator, re-ranks them by vector similarity to the query, and
// falls back to the embedded GraphCompletionRetriever's flat triplet
// search when no window is present or the window contains no events.
type TemporalRetriever struct {
	*GraphCompletionRetriever
	eventStore vectorstore.Store
}

// NewTemporalRetriever creates a TemporalRetriever. eventStore searches
// EventCollection; store and g are passed through to the embedded
// GraphCompletionRetriever for the non-temporal fallback path.
func NewTemporalRetriever(store, eventStore vectorstore.Store, g graph.Graph, llm llmgateway.Gateway, sessionMgr *session.Manager, log *slog.Logger, opts Options) *TemporalRetriever {
	return &TemporalRetriever{
		GraphCompletionRetriever: NewGraphCompletionRetriever(store, g, llm, sessionMgr, log, opts),
		eventStore:               eventStore,
	}
}

func (t *TemporalRetriever) GetRetrievedObjects(ctx context.Context, query string) (any, error) {
	from, to, ok := t.extractInterval(ctx, query)
	if !ok {
		return t.GraphCompletionRetriever.GetRetrievedObjects(ctx, query)
	}

	ids, err := t.graph.CollectTimeIDs(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return t.GraphCompletionRetriever.GetRetrievedObjects(ctx, query)
	}

	events, err := t.graph.CollectEvents(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return t.GraphCompletionRetriever.GetRetrievedObjects(ctx, query)
	}

	ranked, err := t.rerankEvents(ctx, query, events)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return t.GraphCompletionRetriever.GetRetrievedObjects(ctx, query)
	}
	return eventResults(ranked), nil
}

// extractInterval asks the LLM gateway for a [time_from, time_to] window
// and reports ok=false when neither bound parses, meaning no window was
// implied by the query.
func (t *TemporalRetriever) extractInterval(ctx context.Context, query string) (from, to *time.Time, ok bool) {
	parsed, err := t.llm.AcreateStructuredOutput(ctx, query, temporalExtractionSystemPrompt, llmgateway.Schema{
		Fields: map[string]string{"time_from": "string", "time_to": "string"},
	})
	if err != nil {
		return nil, nil, false
	}

	fromStr, _ := parsed["time_from"].(string)
	toStr, _ := parsed["time_to"].(string)

	if v, err := time.Parse(time.RFC3339, fromStr); err == nil {
		from = &v
	}
	if v, err := time.Parse(time.RFC3339, toStr); err == nil {
		to = &v
	}
	return from, to, from != nil || to != nil
}

// rerankEvents searches EventCollection for query and keeps, in ranked
// order, only the results whose id is among events' ids, truncated to
// t.topK.
func (t *TemporalRetriever) rerankEvents(ctx context.Context, query string, events []graphmodel.Event) ([]datapoint.ScoredResult, error) {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[e.ID] = true
	}

	ranked, err := t.eventStore.Search(ctx, EventCollection, query, nil, 0, false)
	if err != nil {
		return nil, err
	}

	out := make([]datapoint.ScoredResult, 0, t.topK)
	for _, r := range ranked {
		if !allowed[r.ID.String()] {
			continue
		}
		out = append(out, r)
		if len(out) == t.topK {
			break
		}
	}
	return out, nil
}

func (t *TemporalRetriever) GetContextFromObjects(ctx context.Context, query string, objects any) (string, error) {
	events, ok := objects.(eventResults)
	if !ok {
		return t.GraphCompletionRetriever.GetContextFromObjects(ctx, query, objects)
	}
	if len(events) == 0 {
		return "", nil
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		if text, ok := e.Payload["text"].(string); ok && text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

func (t *TemporalRetriever) GetCompletionFromContext(ctx context.Context, query string, _ any, contextText string) ([]string, error) {
	return t.completeWithContext(ctx, query, contextText)
}

var _ Retriever = (*TemporalRetriever)(nil)
