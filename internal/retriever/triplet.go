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

// TripletRetriever answers questions from the flat set of triplets whose
// textual surface form is nearest the query in TripletCollection.
type TripletRetriever struct {
	base
	store vectorstore.Store
}

// NewTripletRetriever creates a TripletRetriever.
func NewTripletRetriever(store vectorstore.Store, llm llmgateway.Gateway, sessionMgr *session.Manager, log *slog.Logger, opts Options) *TripletRetriever {
	return &TripletRetriever{base: newBase(llm, sessionMgr, log, opts), store: store}
}

func (t *TripletRetriever) GetRetrievedObjects(ctx context.Context, query string) (any, error) {
	has, err := t.store.HasCollection(ctx, TripletCollection)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, errs.NoData(TripletCollection)
	}
	return t.store.Search(ctx, TripletCollection, query, nil, t.topK, false)
}

func (t *TripletRetriever) GetContextFromObjects(_ context.Context, _ string, objects any) (string, error) {
	return joinTripletTexts(objects)
}

func (t *TripletRetriever) GetCompletionFromContext(ctx context.Context, query string, _ any, contextText string) ([]string, error) {
	return t.completeWithContext(ctx, query, contextText)
}

// joinTripletTexts renders a []datapoint.ScoredResult's "text" payload
// field, one per line, in ranked order.
func joinTripletTexts(objects any) (string, error) {
	results, _ := objects.([]datapoint.ScoredResult)
	if len(results) == 0 {
		return "", nil
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		if text, ok := r.Payload["text"].(string); ok && text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

var _ Retriever = (*TripletRetriever)(nil)
