// Package llmgateway implements the LLM gateway: structured-output
// generation over the litellm HTTP client, rate-limited and retried, with
// JSON-schema-shaped prompting and response validation.
package llmgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cognee-core/engine/internal/adapter/litellm"
	"github.com/cognee-core/engine/internal/config"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/llmgateway"
	"github.com/cognee-core/engine/internal/ratelimit"
	"github.com/cognee-core/engine/internal/retry"
)

var contextOverflowMarkers = []string{
	"context_length_exceeded",
	"maximum context length",
	"context window",
	"too many tokens",
}

func isContextOverflow(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range contextOverflowMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Gateway is the HTTP-backed llmgateway.Gateway implementation.
type Gateway struct {
	client   *litellm.Client
	cfg      config.LLM
	retryCfg config.Retry
	limiter  *ratelimit.Limiter
	log      *slog.Logger
}

// New creates a Gateway. client should already have its breaker/vault
// configured by the caller.
func New(client *litellm.Client, cfg config.LLM, retryCfg config.Retry, log *slog.Logger) *Gateway {
	limiter := ratelimit.ForDomain(ratelimit.DomainLLM, ratelimit.Config{
		Enabled:         cfg.RateLimitEnabled,
		RequestsLimit:   cfg.RateLimitRequests,
		IntervalSeconds: cfg.RateLimitInterval,
	})
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{client: client, cfg: cfg, retryCfg: retryCfg, limiter: limiter, log: log}
}

func renderSchemaInstruction(schema llmgateway.Schema) string {
	if schema.Scalar != "" {
		return fmt.Sprintf("Respond with a single JSON object of the form {\"value\": <%s>}. Output only the JSON object.", schema.Scalar)
	}
	var b strings.Builder
	b.WriteString("Respond with a single JSON object with exactly these fields:\n")
	for name, typ := range schema.Fields {
		fmt.Fprintf(&b, "- %q: %s\n", name, typ)
	}
	b.WriteString("Output only the JSON object, no surrounding text.")
	return b.String()
}

func validateAgainstSchema(parsed map[string]any, schema llmgateway.Schema) error {
	if schema.Scalar != "" {
		if _, ok := parsed["value"]; !ok {
			return errs.SchemaValidation("response missing required \"value\" field")
		}
		return nil
	}
	for name := range schema.Fields {
		if _, ok := parsed[name]; !ok {
			return errs.SchemaValidation(fmt.Sprintf("response missing required field %q", name))
		}
	}
	return nil
}

// AcreateStructuredOutput renders textInput/systemPrompt with a schema
// instruction, invokes the provider, and validates the parsed JSON
// response against schema.
func (g *Gateway) AcreateStructuredOutput(ctx context.Context, textInput, systemPrompt string, schema llmgateway.Schema) (map[string]any, error) {
	g.limiter.WaitIfNeeded(ctx)

	start := time.Now()
	messages := []litellm.ChatMessage{
		{Role: "system", Content: systemPrompt + "\n\n" + renderSchemaInstruction(schema)},
		{Role: "user", Content: textInput},
	}

	var resp *litellm.ChatCompletionResponse
	op := func(ctx context.Context) error {
		req := litellm.ChatCompletionRequest{
			Model:    g.cfg.Model,
			Messages: messages,
		}
		var err error
		if g.cfg.Streaming {
			// Chunks are aggregated into one response before parsing;
			// no per-chunk callback is needed here.
			resp, err = g.client.ChatCompletionStream(ctx, req, nil)
		} else {
			resp, err = g.client.ChatCompletion(ctx, req)
		}
		return err
	}

	err := retry.Do(ctx, g.retryCfg, op)
	g.log.Debug("generation", "model", g.cfg.Model, "duration_ms", time.Since(start).Milliseconds(), "error", err)
	if err != nil {
		if isContextOverflow(err) {
			return nil, errs.ContextWindowExceeded(err)
		}
		return nil, err
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, errs.SchemaValidation(fmt.Sprintf("response is not valid JSON: %v", err))
	}
	if err := validateAgainstSchema(parsed, schema); err != nil {
		return nil, err
	}
	return parsed, nil
}

var _ llmgateway.Gateway = (*Gateway)(nil)
