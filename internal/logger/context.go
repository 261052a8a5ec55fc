package logger

import "context"

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// callIDKey is the context key for the per-call correlation id. There is no
// HTTP surface in this module, so the id is minted per retriever call
// (internal/retriever.Execute) rather than per inbound request, and flows
// into usage-log entries so a caller can line up the summarize/generate
// phases of a single retrieval with its logged usage records.
var callIDKey = contextKey{}

// WithCallID returns a new context carrying id as the active call id.
func WithCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callIDKey, id)
}

// CallID extracts the call id from the context, or "" if none is set.
func CallID(ctx context.Context) string {
	id, _ := ctx.Value(callIDKey).(string)
	return id
}
