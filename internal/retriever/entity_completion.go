package retriever

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/graph"
	"github.com/cognee-core/engine/internal/port/llmgateway"
	"github.com/cognee-core/engine/internal/port/vectorstore"
	"github.com/cognee-core/engine/internal/session"
)

// EntityCollection is the well-known vector collection holding node display
// names, searched to resolve an extracted entity mention to its node id.
const EntityCollection = "Entity_name"

const entityExtractionSystemPrompt = "List the named entities (people, places, organizations, or concepts) " +
	"mentioned in the user's question. Respond with a single comma-separated line and nothing else."

// EntityExtractor pulls candidate entity mentions out of a query. The
// llmgateway port has no array-typed schema field, so the default
// implementation asks for a comma-separated scalar and splits it, rather
// than requiring a repeated-field schema extension.
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, query string) ([]string, error)
}

// ContextProvider turns a resolved set of entity ids into a context block.
type ContextProvider interface {
	GetContext(ctx context.Context, entityIDs []string) (string, error)
}

type llmEntityExtractor struct {
	llm llmgateway.Gateway
}

// NewLLMEntityExtractor returns an EntityExtractor backed by a scalar
// structured-output call against llm.
func NewLLMEntityExtractor(llm llmgateway.Gateway) EntityExtractor {
	return &llmEntityExtractor{llm: llm}
}

func (e *llmEntityExtractor) ExtractEntities(ctx context.Context, query string) ([]string, error) {
	parsed, err := e.llm.AcreateStructuredOutput(ctx, query, entityExtractionSystemPrompt, llmgateway.Schema{Scalar: "string"})
	if err != nil {
		return nil, err
	}
	raw := strings.Split(scalarString(parsed), ",")
	entities := make([]string, 0, len(raw))
	for _, r := range raw {
		if name := strings.TrimSpace(r); name != "" {
			entities = append(entities, name)
		}
	}
	return entities, nil
}

type graphContextProvider struct {
	graph graph.Graph
}

// NewGraphContextProvider returns a ContextProvider that resolves each
// entity id's neighborhood via g and joins the triplet lines.
func NewGraphContextProvider(g graph.Graph) ContextProvider {
	return &graphContextProvider{graph: g}
}

func (g *graphContextProvider) GetContext(ctx context.Context, entityIDs []string) (string, error) {
	seen := make(map[string]bool)
	var lines []string
	for _, id := range entityIDs {
		triplets, err := g.graph.Neighborhood(ctx, id)
		if err != nil {
			return "", err
		}
		for _, t := range triplets {
			line := t.Text()
			if seen[line] {
				continue
			}
			seen[line] = true
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// EntityCompletionRetriever answers questions by extracting the entities
// named in the query, resolving each to a graph node via a
// name-similarity search, and contextualizing from their combined
// neighborhoods.
type EntityCompletionRetriever struct {
	base
	entityStore vectorstore.Store
	extractor   EntityExtractor
	contextProv ContextProvider
}

// NewEntityCompletionRetriever creates an EntityCompletionRetriever.
func NewEntityCompletionRetriever(entityStore vectorstore.Store, extractor EntityExtractor, contextProv ContextProvider, llm llmgateway.Gateway, sessionMgr *session.Manager, log *slog.Logger, opts Options) *EntityCompletionRetriever {
	return &EntityCompletionRetriever{
		base:        newBase(llm, sessionMgr, log, opts),
		entityStore: entityStore,
		extractor:   extractor,
		contextProv: contextProv,
	}
}

// entityObjects carries the resolved node ids between GetRetrievedObjects
// and GetContextFromObjects.
type entityObjects struct {
	nodeIDs []string
}

func (er *EntityCompletionRetriever) GetRetrievedObjects(ctx context.Context, query string) (any, error) {
	mentions, err := er.extractor.ExtractEntities(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(mentions) == 0 {
		return entityObjects{}, nil
	}

	has, err := er.entityStore.HasCollection(ctx, EntityCollection)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, errs.NoData(EntityCollection)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, mention := range mentions {
		results, err := er.entityStore.Search(ctx, EntityCollection, mention, nil, 1, false)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			id := r.ID.String()
			if r.ID == uuid.Nil || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return entityObjects{nodeIDs: ids}, nil
}

func (er *EntityCompletionRetriever) GetContextFromObjects(ctx context.Context, _ string, objects any) (string, error) {
	eo, _ := objects.(entityObjects)
	if len(eo.nodeIDs) == 0 {
		return "", nil
	}
	return er.contextProv.GetContext(ctx, eo.nodeIDs)
}

func (er *EntityCompletionRetriever) GetCompletionFromContext(ctx context.Context, query string, _ any, contextText string) ([]string, error) {
	return er.completeWithContext(ctx, query, contextText)
}

var _ Retriever = (*EntityCompletionRetriever)(nil)
