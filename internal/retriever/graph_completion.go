package retriever

import (
	"context"
	"log/slog"

	"github.com/cognee-core/engine/internal/domain/datapoint"
	"github.com/cognee-core/engine/internal/domain/graphmodel"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/graph"
	"github.com/cognee-core/engine/internal/port/llmgateway"
	"github.com/cognee-core/engine/internal/port/vectorstore"
	"github.com/cognee-core/engine/internal/session"
)

// GraphCompletionRetriever answers questions from triplets resolved to
// "nodeA -- relation -- nodeB" lines, joined by graphSeparator.
// Candidates still come from a TripletCollection vector
// search (the query needs some entry point into the graph); each hit is
// then re-resolved through the graph collaborator so edits to node display
// names since the last embedding pass are reflected in the answer.
type GraphCompletionRetriever struct {
	base
	store vectorstore.Store
	graph graph.Graph // optional: nil falls back to the embedded triplet text verbatim
}

// NewGraphCompletionRetriever creates a GraphCompletionRetriever. g may be
// nil, in which case candidates are rendered from their embedded text
// without a graph-freshness pass.
func NewGraphCompletionRetriever(store vectorstore.Store, g graph.Graph, llm llmgateway.Gateway, sessionMgr *session.Manager, log *slog.Logger, opts Options) *GraphCompletionRetriever {
	return &GraphCompletionRetriever{base: newBase(llm, sessionMgr, log, opts), store: store, graph: g}
}

func (gr *GraphCompletionRetriever) GetRetrievedObjects(ctx context.Context, query string) (any, error) {
	has, err := gr.store.HasCollection(ctx, TripletCollection)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, errs.NoData(TripletCollection)
	}
	return gr.store.Search(ctx, TripletCollection, query, nil, gr.topK, false)
}

func (gr *GraphCompletionRetriever) GetContextFromObjects(ctx context.Context, _ string, objects any) (string, error) {
	results, _ := objects.([]datapoint.ScoredResult)
	if len(results) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, gr.resolveTripletLine(ctx, r.Payload))
	}
	return joinLines(lines, graphSeparator), nil
}

// resolveTripletLine prefers a fresh re-resolution through the graph
// collaborator (by source node id) and falls back to the payload's stored
// text when the graph is unavailable or the edge can no longer be found.
func (gr *GraphCompletionRetriever) resolveTripletLine(ctx context.Context, payload map[string]any) string {
	sourceID, _ := payload["source_node_id"].(string)
	targetID, _ := payload["target_node_id"].(string)
	relationship, _ := payload["relationship_name"].(string)

	if gr.graph != nil && sourceID != "" {
		neighbors, err := gr.graph.Neighborhood(ctx, sourceID)
		if err == nil {
			for _, t := range neighbors {
				if t.TargetNodeID == targetID && t.RelationshipName == relationship {
					return t.Text()
				}
			}
		}
	}

	if text, ok := payload["text"].(string); ok && text != "" {
		return text
	}
	return graphmodel.Triplet{SourceNodeID: sourceID, RelationshipName: relationship, TargetNodeID: targetID}.Text()
}

func (gr *GraphCompletionRetriever) GetCompletionFromContext(ctx context.Context, query string, _ any, contextText string) ([]string, error) {
	return gr.completeWithContext(ctx, query, contextText)
}

func joinLines(lines []string, sep string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += sep
		}
		out += l
	}
	return out
}

var _ Retriever = (*GraphCompletionRetriever)(nil)
