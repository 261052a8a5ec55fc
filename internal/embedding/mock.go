package embedding

import (
	"context"

	"github.com/cognee-core/engine/internal/port/embedding"
)

// MockEngine returns zero-vectors of a fixed dimension and never contacts
// the network, for MOCK_EMBEDDING / offline test runs.
type MockEngine struct {
	dimensions int
}

// NewMockEngine creates a MockEngine producing vectors of the given size.
func NewMockEngine(dimensions int) *MockEngine {
	return &MockEngine{dimensions: dimensions}
}

func (m *MockEngine) VectorSize() int { return m.dimensions }

func (m *MockEngine) EmbedText(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, m.dimensions)
	}
	return out, nil
}

var _ embedding.Engine = (*MockEngine)(nil)
