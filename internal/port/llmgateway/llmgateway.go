// Package llmgateway defines the port interface for structured-output LLM
// calls.
package llmgateway

import "context"

// Schema describes the expected shape of a structured completion: either a
// bare scalar ("string") or a named product of typed fields.
type Schema struct {
	// Scalar, when non-empty, names a primitive type ("string") and Fields
	// is ignored.
	Scalar string
	// Fields names a product type: field name -> primitive type
	// ("string", "number", "boolean", "integer").
	Fields map[string]string
}

// Gateway renders a prompt, invokes the provider with schema enforcement
// where supported, and validates the parsed response against the schema.
type Gateway interface {
	// AcreateStructuredOutput returns the parsed response as a
	// map[string]any (for product schemas) or a single scalar value keyed
	// under "value" (for scalar schemas).
	AcreateStructuredOutput(ctx context.Context, textInput, systemPrompt string, schema Schema) (map[string]any, error)
}
