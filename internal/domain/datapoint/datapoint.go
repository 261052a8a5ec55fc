// Package datapoint provides the domain model for vector-store records and
// their scored search results.
package datapoint

import (
	"errors"

	"github.com/google/uuid"
)

// Metadata carries payload-interpretation hints alongside a DataPoint.
// IndexFields is the ordered list of payload field names whose textual
// content defines the embedding; only these fields are concatenated and
// sent to the embedding engine.
type Metadata struct {
	IndexFields []string `json:"index_fields"`
}

// DataPoint is a single record owned by one vector-store collection: a
// stable id, an open payload mapping, and metadata describing which payload
// fields are embeddable text.
type DataPoint struct {
	ID       uuid.UUID      `json:"id"`
	Payload  map[string]any `json:"payload"`
	Metadata Metadata       `json:"metadata"`
}

// New creates a DataPoint with a freshly generated id.
func New(payload map[string]any, indexFields ...string) DataPoint {
	return DataPoint{
		ID:       uuid.New(),
		Payload:  payload,
		Metadata: Metadata{IndexFields: indexFields},
	}
}

// Validate checks that a DataPoint can be embedded and inserted.
func (d DataPoint) Validate() error {
	if d.ID == uuid.Nil {
		return errors.New("data point id is required")
	}
	if len(d.Metadata.IndexFields) == 0 {
		return errors.New("data point must declare at least one index field")
	}
	return nil
}

// EmbeddingText concatenates the textual content of the declared index
// fields, in order, separated by a newline. Missing or non-string fields
// are skipped rather than erroring; a partially-populated payload still
// produces embeddable text from whatever fields are present.
func (d DataPoint) EmbeddingText() string {
	var out string
	for i, field := range d.Metadata.IndexFields {
		v, ok := d.Payload[field]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if i > 0 && out != "" {
			out += "\n"
		}
		out += s
	}
	return out
}

// ScoredResult is an immutable search-result value: an identifier, a
// distance score normalized per response batch to [0,1] (0 is the best
// match, the batch's minimum distance), a snapshot of the payload at
// search time, and an optional raw vector.
type ScoredResult struct {
	ID      uuid.UUID      `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
	Vector  []float32      `json:"vector,omitempty"`
}
