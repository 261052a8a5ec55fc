// Package retriever implements the retriever core: the
// retrieve -> contextualize -> generate pipeline that composes the vector
// store, LLM gateway, and session manager into question-answering, with
// optional conversation-memory injection and concurrent
// context-summarization.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cognee-core/engine/internal/logger"
	"github.com/cognee-core/engine/internal/port/llmgateway"
	"github.com/cognee-core/engine/internal/session"
	"github.com/cognee-core/engine/internal/usagelog"
)

// DefaultTopK is the candidate-count ceiling every retriever variant falls
// back to when its caller does not specify one.
const DefaultTopK = 5

// TripletCollection is the well-known vector collection holding the
// textual surface form of every graph triplet.
const TripletCollection = "Triplet_text"

// CacheCollection is the well-known vector collection the cache-backed
// retriever searches instead of TripletCollection.
const CacheCollection = "cache"

// EventCollection is the well-known vector collection holding event
// display text, searched by the temporal retriever to rank candidate
// events by similarity once a time window has narrowed them down.
const EventCollection = "Event_text"

// graphSeparator joins resolved "nodeA -- relation -- nodeB" triplet
// lines into one context block.
const graphSeparator = "\n---\n"

const defaultSystemPrompt = "Answer the user's question using only the information in the provided context. " +
	"If the context does not contain the answer, say you don't know. Respond with a single, concise answer."

const summarizeSystemPrompt = "Summarize the following context in two or three sentences, preserving names, " +
	"relationships, and facts a reader would need to recall this conversation later."

// Retriever is the three-phase contract every retriever variant
// implements: locate candidates, turn them into a context string, then
// generate an answer from the query and context.
type Retriever interface {
	// GetRetrievedObjects locates candidates for query. Implementations
	// return errs.NoData when a collection required for retrieval does not
	// exist.
	GetRetrievedObjects(ctx context.Context, query string) (any, error)

	// GetContextFromObjects formats objects into a context block. An empty
	// candidate set must format to "", not an error.
	GetContextFromObjects(ctx context.Context, query string, objects any) (string, error)

	// GetCompletionFromContext generates the final answer(s). An empty
	// context must short-circuit to [""] without invoking the LLM gateway.
	GetCompletionFromContext(ctx context.Context, query string, objects any, contextText string) ([]string, error)
}

// Execute runs a Retriever's three phases in order, returning the final
// answer(s). A fresh call id is minted onto ctx so the summarize/generate
// phases of one retrieval can be correlated in usage logs.
func Execute(ctx context.Context, r Retriever, query string) ([]string, error) {
	if logger.CallID(ctx) == "" {
		ctx = logger.WithCallID(ctx, uuid.NewString())
	}
	objects, err := r.GetRetrievedObjects(ctx, query)
	if err != nil {
		return nil, err
	}
	contextText, err := r.GetContextFromObjects(ctx, query, objects)
	if err != nil {
		return nil, err
	}
	return r.GetCompletionFromContext(ctx, query, objects, contextText)
}

// ExecuteLogged runs Execute the same way, additionally recording the call
// through sink when it is non-nil (gated by the caller on
// config.Cache.UsageLogging). A coordinator.Coordinator satisfies
// usagelog.Sink structurally, so the coordinator backing sessionMgr can be
// passed here directly without an adapter.
func ExecuteLogged(ctx context.Context, r Retriever, query string, sink usagelog.Sink, userID string, ttl time.Duration) ([]string, error) {
	if sink == nil {
		return Execute(ctx, r, query)
	}
	if logger.CallID(ctx) == "" {
		ctx = logger.WithCallID(ctx, uuid.NewString())
	}
	return usagelog.Wrap(ctx, sink, userID, "retriever.Execute", map[string]any{"query": query}, ttl, func(ctx context.Context) ([]string, error) {
		return Execute(ctx, r, query)
	})
}

// Options configures the shared behavior every retriever variant exposes:
// candidate count, session identity, prompt override, and session Q&A TTL.
type Options struct {
	// TopK bounds the candidate count; <=0 resolves to DefaultTopK.
	TopK int
	// UserID identifies the caller for session persistence. An empty
	// UserID disables session read/write for this call.
	UserID string
	// SessionID selects the conversation; empty resolves to
	// qa.DefaultSessionID at the session-manager boundary.
	SessionID string
	// SystemPrompt overrides the default answer-generation system prompt.
	SystemPrompt string
	// QATTL is the TTL applied to the Q&A entry persisted after a
	// session-backed completion.
	QATTL time.Duration
}

// base holds the fields and generation logic shared by every retriever
// variant: LLM access, session persistence, and top-k/prompt
// configuration. Variants embed base and add their own retrieval/context
// logic.
type base struct {
	llm        llmgateway.Gateway
	sessionMgr *session.Manager
	log        *slog.Logger

	topK         int
	userID       string
	sessionID    string
	systemPrompt string
	qaTTL        time.Duration
}

func newBase(llm llmgateway.Gateway, sessionMgr *session.Manager, log *slog.Logger, opts Options) base {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = slog.Default()
	}
	return base{
		llm:          llm,
		sessionMgr:   sessionMgr,
		log:          log,
		topK:         topK,
		userID:       opts.UserID,
		sessionID:    opts.SessionID,
		systemPrompt: opts.SystemPrompt,
		qaTTL:        opts.QATTL,
	}
}

// sessionSave reports whether this call should read/write conversation
// history: a session is only engaged when both a caller identity is
// present and a cache backend is actually configured.
func (b base) sessionSave() bool {
	return b.userID != "" && b.sessionMgr != nil && b.sessionMgr.IsAvailable()
}

// completeWithContext generates the final answer from contextText,
// optionally injecting session history and persisting the resulting Q&A
// turn. An empty contextText short-circuits to [""] without invoking the
// LLM. When session persistence is engaged, context summarization and
// answer generation run concurrently.
func (b base) completeWithContext(ctx context.Context, query, contextText string) ([]string, error) {
	if contextText == "" {
		return []string{""}, nil
	}

	if !b.sessionSave() {
		answer, err := b.generateAnswer(ctx, query, contextText, "")
		if err != nil {
			return nil, err
		}
		return []string{answer}, nil
	}

	history, err := b.sessionMgr.GetLatestQAEntries(ctx, b.userID, b.sessionID, 5)
	if err != nil {
		return nil, err
	}
	historyBlock := session.FormatHistory(history)

	summary, answer, err := b.summarizeAndGenerate(ctx, query, contextText, historyBlock)
	if err != nil {
		return nil, err
	}

	qaID := uuid.NewString()
	if err := b.sessionMgr.CreateQAEntry(ctx, b.userID, b.sessionID, query, summary, answer, qaID, nil, nil, b.qaTTL); err != nil {
		b.log.Warn("session persistence failed, continuing without it", "user_id", b.userID, "session_id", b.sessionID, "error", err)
	}

	return []string{answer}, nil
}

// summarizeAndGenerate runs the context-summary and answer-generation LLM
// calls concurrently and waits for both; either failing cancels the other.
func (b base) summarizeAndGenerate(ctx context.Context, query, contextText, historyBlock string) (summary, answer string, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := b.summarize(gctx, contextText)
		summary = s
		return err
	})
	g.Go(func() error {
		a, err := b.generateAnswer(gctx, query, contextText, historyBlock)
		answer = a
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return summary, answer, nil
}

func (b base) summarize(ctx context.Context, contextText string) (string, error) {
	parsed, err := b.llm.AcreateStructuredOutput(ctx, contextText, summarizeSystemPrompt, llmgateway.Schema{Scalar: "string"})
	if err != nil {
		return "", err
	}
	return scalarString(parsed), nil
}

func (b base) generateAnswer(ctx context.Context, query, contextText, historyBlock string) (string, error) {
	sys := b.systemPrompt
	if sys == "" {
		sys = defaultSystemPrompt
	}
	userInput := renderUserPrompt(contextText, historyBlock, query)
	parsed, err := b.llm.AcreateStructuredOutput(ctx, userInput, sys, llmgateway.Schema{Scalar: "string"})
	if err != nil {
		return "", err
	}
	return scalarString(parsed), nil
}

func renderUserPrompt(contextText, historyBlock, query string) string {
	var buf strings.Builder
	if historyBlock != "" {
		buf.WriteString(historyBlock)
	}
	fmt.Fprintf(&buf, "CONTEXT:\n%s\n\nQUESTION:\n%s", contextText, query)
	return buf.String()
}

func scalarString(parsed map[string]any) string {
	v, ok := parsed["value"]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
