package llmgateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cognee-core/engine/internal/adapter/litellm"
	"github.com/cognee-core/engine/internal/config"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/llmgateway"
	llmport "github.com/cognee-core/engine/internal/port/llmgateway"
)

func TestMockGatewayProductSchema(t *testing.T) {
	g := llmgateway.NewMockGateway()
	schema := llmport.Schema{Fields: map[string]string{"answer": "string", "score": "number", "valid": "boolean"}}

	out, err := g.AcreateStructuredOutput(context.Background(), "input", "system", schema)
	if err != nil {
		t.Fatal(err)
	}
	if out["answer"] != "" || out["score"] != 0 || out["valid"] != false {
		t.Fatalf("unexpected zero-valued response: %+v", out)
	}
}

func TestMockGatewayScalarSchema(t *testing.T) {
	g := llmgateway.NewMockGateway()
	out, err := g.AcreateStructuredOutput(context.Background(), "input", "system", llmport.Schema{Scalar: "string"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := out["value"]; !ok {
		t.Fatalf("expected a \"value\" key for a scalar schema, got %+v", out)
	}
}

func TestMockGatewayRejectsEmptySchema(t *testing.T) {
	g := llmgateway.NewMockGateway()
	if _, err := g.AcreateStructuredOutput(context.Background(), "input", "system", llmport.Schema{}); err == nil {
		t.Fatal("expected an error for an empty schema")
	}
}

func chatCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":` + content + `},"finish_reason":"stop"}],"model":"test-model"}`))
	}))
}

func TestGatewayAcreateStructuredOutputParsesAndValidates(t *testing.T) {
	srv := chatCompletionServer(t, `"{\"answer\": \"42\"}"`)
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key")
	g := llmgateway.New(client, config.LLM{Model: "gpt-test"}, config.Retry{Disabled: true}, nil)

	out, err := g.AcreateStructuredOutput(context.Background(), "what is the answer?", "you are a test", llmport.Schema{
		Fields: map[string]string{"answer": "string"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out["answer"] != "42" {
		t.Fatalf("expected answer=42, got %+v", out)
	}
}

func TestGatewayRejectsResponseMissingSchemaField(t *testing.T) {
	srv := chatCompletionServer(t, `"{\"wrong_field\": \"42\"}"`)
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key")
	g := llmgateway.New(client, config.LLM{Model: "gpt-test"}, config.Retry{Disabled: true}, nil)

	_, err := g.AcreateStructuredOutput(context.Background(), "q", "sys", llmport.Schema{
		Fields: map[string]string{"answer": "string"},
	})
	if err == nil {
		t.Fatal("expected a schema validation error for a response missing the required field")
	}
}

func TestGatewayWrapsContextOverflow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"maximum context length exceeded"}`))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key")
	g := llmgateway.New(client, config.LLM{Model: "gpt-test"}, config.Retry{Disabled: true}, nil)

	_, err := g.AcreateStructuredOutput(context.Background(), "q", "sys", llmport.Schema{Scalar: "string"})
	if !errs.Is(err, errs.KindContextWindowExceeded) {
		t.Fatalf("expected ContextWindowExceeded, got %v", err)
	}
}

func TestGatewayStreamingAggregatesChunksBeforeParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(
			"data: {\"choices\":[{\"delta\":{\"content\":\"{\\\"value\\\": \"}}],\"model\":\"test-model\"}\n\n" +
				"data: {\"choices\":[{\"delta\":{\"content\":\"\\\"streamed\\\"}\"},\"finish_reason\":\"stop\"}]}\n\n" +
				"data: [DONE]\n\n"))
	}))
	defer srv.Close()

	client := litellm.NewClient(srv.URL, "test-key")
	g := llmgateway.New(client, config.LLM{Model: "gpt-test", Streaming: true}, config.Retry{Disabled: true}, nil)

	out, err := g.AcreateStructuredOutput(context.Background(), "q", "sys", llmport.Schema{Scalar: "string"})
	if err != nil {
		t.Fatal(err)
	}
	if out["value"] != "streamed" {
		t.Fatalf("expected the chunked JSON to parse to value=streamed, got %+v", out)
	}
}
