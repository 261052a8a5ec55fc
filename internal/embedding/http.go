// Package embedding implements the embedding engine: an HTTP-backed
// adapter for OpenAI-compatible /v1/embeddings endpoints plus a
// zero-vector mock adapter for offline/test runs. Overflow handling
// recursively bisects an oversized batch; duplicate concurrent calls for
// the same batch are deduplicated via singleflight.
package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cognee-core/engine/internal/config"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/embedding"
	"github.com/cognee-core/engine/internal/ratelimit"
	"github.com/cognee-core/engine/internal/resilience"
	"github.com/cognee-core/engine/internal/retry"
)

// contextOverflowMarkers are matched case-insensitively against a provider
// error to recognize an input-too-long rejection, as distinct from other
// failures.
var contextOverflowMarkers = []string{
	"context_length_exceeded",
	"maximum context length",
	"input is too long",
	"context window",
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

// HTTPEngine calls an OpenAI-compatible /v1/embeddings endpoint.
type HTTPEngine struct {
	cfg        config.Embedding
	httpClient *http.Client
	breaker    *resilience.Breaker
	limiter    *ratelimit.Limiter
	retryCfg   config.Retry
	sf         singleflight.Group
}

// NewHTTPEngine creates an HTTPEngine from configuration. The returned
// engine is rate-limited via the embedding-domain singleton limiter and
// retried via the retry package.
func NewHTTPEngine(cfg config.Embedding, retryCfg config.Retry, breaker *resilience.Breaker) *HTTPEngine {
	limiter := ratelimit.ForDomain(ratelimit.DomainEmbedding, ratelimit.Config{
		Enabled:         cfg.RateLimitEnabled,
		RequestsLimit:   cfg.RateLimitRequests,
		IntervalSeconds: cfg.RateLimitInterval,
	})
	return &HTTPEngine{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 100 * time.Second},
		breaker:    breaker,
		limiter:    limiter,
		retryCfg:   retryCfg,
	}
}

func (e *HTTPEngine) VectorSize() int { return e.cfg.Dimensions }

// EmbedText embeds every text in texts, returning one vector per input in
// the same order. Requests exceeding the provider's context window are
// recursively bisected until each half fits or a single item fails.
func (e *HTTPEngine) EmbedText(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	key := dedupeKey(e.cfg.Model, texts)
	out, err, _ := e.sf.Do(key, func() (any, error) {
		return e.embedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return out.([][]float32), nil
}

func dedupeKey(model string, texts []string) string {
	h := sha256.New()
	h.Write([]byte(model))
	for _, t := range texts {
		h.Write([]byte{0})
		h.Write([]byte(t))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (e *HTTPEngine) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.limiter.WaitIfNeeded(ctx)

	vectors, err := e.requestEmbeddings(ctx, texts)
	if err == nil {
		return vectors, nil
	}

	if !isContextOverflow(err) {
		return nil, err
	}
	if len(texts) == 1 {
		return nil, err
	}

	mid := len(texts) / 2
	first, err := e.embedBatch(ctx, texts[:mid])
	if err != nil {
		return nil, err
	}
	second, err := e.embedBatch(ctx, texts[mid:])
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (e *HTTPEngine) requestEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	op := func(ctx context.Context) error {
		body, err := json.Marshal(embeddingRequest{Model: e.cfg.Model, Input: texts})
		if err != nil {
			return err
		}

		call := func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint+"/v1/embeddings", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			if e.cfg.APIKey != "" {
				req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
			}

			resp, err := e.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode >= 400 {
				return fmt.Errorf("embedding provider error %d: %s", resp.StatusCode, string(data))
			}

			var parsed embeddingResponse
			if err := json.Unmarshal(data, &parsed); err != nil {
				return err
			}
			vectors = make([][]float32, len(parsed.Data))
			for _, d := range parsed.Data {
				vectors[d.Index] = d.Embedding
			}
			return nil
		}

		if e.breaker != nil {
			return e.breaker.Execute(call)
		}
		return call()
	}

	if err := retry.Do(ctx, e.retryCfg, op); err != nil {
		return nil, errs.EmbeddingException(err)
	}
	return vectors, nil
}

var _ embedding.Engine = (*HTTPEngine)(nil)
