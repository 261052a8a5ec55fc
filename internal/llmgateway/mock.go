package llmgateway

import (
	"context"

	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/llmgateway"
)

// MockGateway answers every call with a fixed, schema-shaped zero value
// instead of contacting a provider, for LLM_PROVIDER=mock offline/test
// runs (the LLM-side counterpart to embedding.MockEngine).
type MockGateway struct{}

// NewMockGateway creates a MockGateway.
func NewMockGateway() *MockGateway { return &MockGateway{} }

func (MockGateway) AcreateStructuredOutput(_ context.Context, _, _ string, schema llmgateway.Schema) (map[string]any, error) {
	if schema.Scalar != "" {
		return map[string]any{"value": ""}, nil
	}
	if len(schema.Fields) == 0 {
		return nil, errs.SchemaValidation("mock gateway requires a non-empty schema")
	}
	out := make(map[string]any, len(schema.Fields))
	for name, typ := range schema.Fields {
		switch typ {
		case "number", "integer":
			out[name] = 0
		case "boolean":
			out[name] = false
		default:
			out[name] = ""
		}
	}
	return out, nil
}

var _ llmgateway.Gateway = (*MockGateway)(nil)
