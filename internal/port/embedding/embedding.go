// Package embedding defines the port interface for the embedding engine.
package embedding

import "context"

// Engine embeds text into fixed-dimensionality vectors.
type Engine interface {
	EmbedText(ctx context.Context, texts []string) ([][]float32, error)
	VectorSize() int
}
