// Package litellm provides an HTTP client for the LiteLLM Proxy's
// OpenAI-compatible chat completion API, used as the transport beneath the
// LLM gateway.
package litellm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cognee-core/engine/internal/resilience"
	"github.com/cognee-core/engine/internal/secrets"
)

// Client talks to the LiteLLM Proxy's chat completion API.
type Client struct {
	baseURL    string
	masterKey  string
	vault      *secrets.Vault
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// NewClient creates a new LiteLLM proxy client.
func NewClient(baseURL, masterKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		masterKey: masterKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetBreaker attaches a circuit breaker to the client's non-streaming HTTP
// calls. ChatCompletionStream does not go through the breaker.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// SetVault attaches a secrets vault. When set, the master key is read from
// the vault on each request, so a key rotated by Vault.Reload takes effect
// on the next request.
func (c *Client) SetVault(v *secrets.Vault) {
	c.vault = v
}

// activeMasterKey returns the master key from the vault (if set and non-empty),
// falling back to the static masterKey field.
func (c *Client) activeMasterKey() string {
	if c.vault != nil {
		if k := c.vault.Get("LITELLM_MASTER_KEY"); k != "" {
			return k
		}
	}
	return c.masterKey
}

// --- Chat Completion (OpenAI-compatible) ---

// ToolFunction describes a function that can be called by the model.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolDefinition defines a tool available to the model.
type ToolDefinition struct {
	Type     string       `json:"type"` // Always "function".
	Function ToolFunction `json:"function"`
}

// ToolCallFunction holds the function name and serialized arguments of a tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ChatMessage represents a single message in a chat completion.
type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ChatCompletionRequest is the request body for /v1/chat/completions.
type ChatCompletionRequest struct {
	Model       string           `json:"model"`
	Messages    []ChatMessage    `json:"messages"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  any              `json:"tool_choice,omitempty"`
}

// ChatCompletionResponse is the parsed response from a completion call.
type ChatCompletionResponse struct {
	Content      string
	TokensIn     int
	TokensOut    int
	Model        string
	ToolCalls    []ToolCall
	FinishReason string
}

// ChatCompletion sends a chat completion request to the LiteLLM Proxy's
// OpenAI-compatible /v1/chat/completions endpoint.
func (c *Client) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) { //nolint:gocritic // hugeParam acceptable for request struct
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content   string     `json:"content"`
				ToolCalls []ToolCall `json:"tool_calls,omitempty"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
		Model string `json:"model"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal completion response: %w", err)
	}

	resp := &ChatCompletionResponse{
		TokensIn:  raw.Usage.PromptTokens,
		TokensOut: raw.Usage.CompletionTokens,
		Model:     raw.Model,
	}
	if len(raw.Choices) > 0 {
		resp.Content = raw.Choices[0].Message.Content
		resp.ToolCalls = raw.Choices[0].Message.ToolCalls
		resp.FinishReason = raw.Choices[0].FinishReason
	}

	return resp, nil
}

// StreamChunk represents a single chunk from a streaming completion response.
type StreamChunk struct {
	Content      string     // The text content of this chunk (may be empty for non-content chunks).
	Done         bool       // True when the stream is complete (final chunk or [DONE]).
	Model        string     // Model name from the response.
	TokensIn     int        // Prompt tokens (only set on the final chunk with usage data).
	TokensOut    int        // Completion tokens (only set on the final chunk with usage data).
	ToolCalls    []ToolCall // Accumulated tool calls (set on the final chunk when finish_reason is "tool_calls").
	FinishReason string     // The finish reason from the response (e.g. "stop", "tool_calls").
}

// ChatCompletionStream sends a streaming chat completion request. It calls
// onChunk for each SSE chunk received from the LiteLLM Proxy. The caller
// should accumulate content from chunks where Done is false.
func (c *Client) ChatCompletionStream(ctx context.Context, req ChatCompletionRequest, onChunk func(StreamChunk)) (*ChatCompletionResponse, error) { //nolint:gocritic // hugeParam acceptable for request struct
	// Force stream mode.
	type streamReq struct {
		ChatCompletionRequest
		Stream        bool `json:"stream"`
		StreamOptions *struct {
			IncludeUsage bool `json:"include_usage"`
		} `json:"stream_options,omitempty"`
	}
	sr := streamReq{
		ChatCompletionRequest: req,
		Stream:                true,
		StreamOptions: &struct {
			IncludeUsage bool `json:"include_usage"`
		}{IncludeUsage: true},
	}

	body, err := json.Marshal(sr)
	if err != nil {
		return nil, fmt.Errorf("marshal stream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key := c.activeMasterKey(); key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	// Use a client without the default timeout for streaming.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("stream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("litellm stream API error %d: %s", resp.StatusCode, string(data))
	}

	// Parse SSE stream.
	var fullContent strings.Builder
	var model string
	var tokensIn, tokensOut int
	var finishReason string
	// Accumulate tool calls by index. Streaming deltas reference tool calls
	// by their index field; we grow this slice as needed and concatenate
	// argument fragments.
	var toolCalls []ToolCall

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		// SSE format: "data: {json}" or "data: [DONE]"
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			if onChunk != nil {
				onChunk(StreamChunk{
					Done:         true,
					Model:        model,
					TokensIn:     tokensIn,
					TokensOut:    tokensOut,
					ToolCalls:    toolCalls,
					FinishReason: finishReason,
				})
			}
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content   string `json:"content"`
					ToolCalls []struct {
						Index    int    `json:"index"`
						ID       string `json:"id,omitempty"`
						Type     string `json:"type,omitempty"`
						Function struct {
							Name      string `json:"name,omitempty"`
							Arguments string `json:"arguments,omitempty"`
						} `json:"function"`
					} `json:"tool_calls,omitempty"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
			Model string `json:"model"`
			Usage *struct {
				PromptTokens     int `json:"prompt_tokens"`
				CompletionTokens int `json:"completion_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // Skip malformed chunks.
		}

		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			tokensIn = chunk.Usage.PromptTokens
			tokensOut = chunk.Usage.CompletionTokens
		}

		content := ""
		if len(chunk.Choices) > 0 {
			choice := chunk.Choices[0]
			content = choice.Delta.Content

			if choice.FinishReason != nil {
				finishReason = *choice.FinishReason
			}

			// Assemble tool calls by index.
			for _, tc := range choice.Delta.ToolCalls {
				// Grow slice to accommodate the index.
				for len(toolCalls) <= tc.Index {
					toolCalls = append(toolCalls, ToolCall{})
				}
				if tc.ID != "" {
					toolCalls[tc.Index].ID = tc.ID
				}
				if tc.Type != "" {
					toolCalls[tc.Index].Type = tc.Type
				}
				if tc.Function.Name != "" {
					toolCalls[tc.Index].Function.Name = tc.Function.Name
				}
				toolCalls[tc.Index].Function.Arguments += tc.Function.Arguments
			}
		}
		if content != "" {
			fullContent.WriteString(content)
		}

		if onChunk != nil {
			onChunk(StreamChunk{
				Content: content,
				Model:   model,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}

	return &ChatCompletionResponse{
		Content:      fullContent.String(),
		TokensIn:     tokensIn,
		TokensOut:    tokensOut,
		Model:        model,
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		if key := c.activeMasterKey(); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return fmt.Errorf("litellm API error %d: %s", resp.StatusCode, string(data))
		}

		result = data
		return nil
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
