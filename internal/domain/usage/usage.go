// Package usage provides the domain model for the append-only, per-call
// usage records captured by the usage logger decorator.
package usage

import "time"

// LogEntry is a single captured invocation of a decorated operation.
type LogEntry struct {
	Timestamp    time.Time      `json:"timestamp"`
	Type         string         `json:"type"`
	FunctionName string         `json:"function_name"`
	UserID       string         `json:"user_id,omitempty"`
	Parameters   map[string]any `json:"parameters"`
	Result       any            `json:"result,omitempty"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	DurationMS   int64          `json:"duration_ms"`
	StartTime    time.Time      `json:"start_time"`
	EndTime      time.Time      `json:"end_time"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
