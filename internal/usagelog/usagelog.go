// Package usagelog implements the usage-logger decorator: it wraps any
// operation, capturing its parameters, result, success flag, timing, and
// process metadata into an append-only usage.LogEntry, serialized
// JSON-safely by a cycle-breaking sanitizer.
package usagelog

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/cognee-core/engine/internal/domain/usage"
	"github.com/cognee-core/engine/internal/logger"
	"github.com/cognee-core/engine/internal/secrets"
)

// Sink is where a captured entry is persisted. The coordinator port
// (internal/port/coordinator.Coordinator) satisfies this structurally via
// its LogUsage method; no import cycle is introduced because this package
// never imports coordinator.
type Sink interface {
	LogUsage(ctx context.Context, userID string, entry usage.LogEntry, ttl time.Duration) error
}

// buildVersion and environment are process-wide metadata stamped onto every
// captured entry; set at startup via SetProcessMetadata (default "dev"/"").
var (
	buildVersion = "dev"
	environment  = ""
)

// SetProcessMetadata overrides the version/environment stamped onto every
// usage log entry. Call once at process startup.
func SetProcessMetadata(version, env string) {
	buildVersion = version
	environment = env
}

// vault, when set via SetVault, has every one of its secret values
// stripped out of logged strings by Sanitize. The core never logs
// secrets: a captured parameter or result that happens to embed an API
// key verbatim (e.g. an echoed request struct) must not leak it into a
// usage log entry.
var vault *secrets.Vault

// SetVault registers the secrets.Vault whose values Sanitize redacts.
// Call once at process startup alongside SetProcessMetadata.
func SetVault(v *secrets.Vault) {
	vault = v
}

func redact(s string) string {
	if vault == nil {
		return s
	}
	return vault.RedactString(s)
}

// Wrap invokes fn, capturing parameters, result, success, timing, and
// process metadata into a usage.LogEntry appended to sink. A failure to
// log (sink error, or sink being nil) never affects fn's own outcome:
// the wrapped result and error are always returned verbatim.
func Wrap[T any](ctx context.Context, sink Sink, userID, functionName string, params map[string]any, ttl time.Duration, fn func(context.Context) (T, error)) (result T, err error) {
	start := time.Now().UTC()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", functionName, r)
			slog.Error("usage-logged call panicked", "function", functionName, "panic", r, "stack", string(debug.Stack()))
		}
		end := time.Now().UTC()
		logEntry(ctx, sink, userID, functionName, params, result, err, start, end, ttl)
	}()

	result, err = fn(ctx)
	return result, err
}

func logEntry(ctx context.Context, sink Sink, userID, functionName string, params map[string]any, result any, callErr error, start, end time.Time, ttl time.Duration) {
	if sink == nil {
		return
	}
	entry := usage.LogEntry{
		Timestamp:    end,
		Type:         "call",
		FunctionName: functionName,
		UserID:       userID,
		Parameters:   sanitizeParams(params),
		Result:       Sanitize(result),
		Success:      callErr == nil,
		DurationMS:   end.Sub(start).Milliseconds(),
		StartTime:    start,
		EndTime:      end,
		Metadata: map[string]any{
			"version":     buildVersion,
			"environment": environment,
		},
	}
	if callID := logger.CallID(ctx); callID != "" {
		entry.Metadata["call_id"] = callID
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	if err := sink.LogUsage(ctx, userID, entry, ttl); err != nil {
		slog.Warn("failed to record usage log entry", "function", functionName, "error", err)
	}
}

func sanitizeParams(params map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(params))
	seen := map[uintptr]bool{}
	for k, v := range params {
		if k == "user" {
			continue
		}
		out[k] = sanitizeValue(v, seen)
	}
	return out
}

// Sanitize recursively converts v into a JSON-safe representation: scalars
// pass through, uuid.UUID and time.Time render as strings, byte slices
// become a placeholder (never logged raw, it may carry secrets), and cycles
// (self-referential maps/slices/pointers) are broken by reference tracking
// rather than left to the JSON encoder to fail on.
func Sanitize(v any) any {
	return sanitizeValue(v, map[uintptr]bool{})
}

func sanitizeValue(v any, seen map[uintptr]bool) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		return redact(t)
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return t
	case []byte:
		return "<cannot be serialized: Bytes>"
	case uuid.UUID:
		return t.String()
	case time.Time:
		return t.Format(time.RFC3339)
	case error:
		return redact(t.Error())
	case fmt.Stringer:
		return redact(t.String())
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		ptr := rv.Pointer()
		if seen[ptr] {
			return "<circular reference>"
		}
		seen[ptr] = true
		defer delete(seen, ptr)
	}

	switch rv.Kind() {
	case reflect.Ptr:
		return sanitizeValue(rv.Elem().Interface(), seen)
	case reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return sanitizeValue(rv.Elem().Interface(), seen)
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = sanitizeValue(iter.Value().Interface(), seen)
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return "<cannot be serialized: Bytes>"
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = sanitizeValue(rv.Index(i).Interface(), seen)
		}
		return out
	case reflect.Struct:
		rt := rv.Type()
		out := make(map[string]any, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			out[f.Name] = sanitizeValue(rv.Field(i).Interface(), seen)
		}
		return out
	case reflect.String:
		return redact(rv.String())
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprintf("<cannot be serialized: %s>", rv.Type().String())
	default:
		return fmt.Sprintf("%v", v)
	}
}
