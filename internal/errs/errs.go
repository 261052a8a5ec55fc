// Package errs defines the closed error taxonomy shared by every component
// in the core layer: a stable Kind, a human Message, and an HTTP-style
// status hint an outer API shell can map without reaching into internals.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed set of error categories the core layer raises.
type Kind string

const (
	KindCollectionNotFound           Kind = "CollectionNotFound"
	KindMissingQueryParameter        Kind = "MissingQueryParameter"
	KindEmbeddingException           Kind = "EmbeddingException"
	KindLockAcquisitionTimeout       Kind = "LockAcquisitionTimeout"
	KindCacheConnectionError         Kind = "CacheConnectionError"
	KindNoDataError                  Kind = "NoDataError"
	KindSessionParameterValidation   Kind = "SessionParameterValidationError"
	KindSessionQAEntryValidation     Kind = "SessionQAEntryValidationError"
	KindInvalidValueError            Kind = "InvalidValueError"
	KindSchemaValidationError        Kind = "SchemaValidationError"
	KindContextWindowExceeded        Kind = "ContextWindowExceeded"
	KindMissingSystemPromptPathError Kind = "MissingSystemPromptPathError"
)

// AllKinds lists the closed set of error kinds, for diagnostics/tests.
var AllKinds = []Kind{
	KindCollectionNotFound, KindMissingQueryParameter, KindEmbeddingException,
	KindLockAcquisitionTimeout, KindCacheConnectionError, KindNoDataError,
	KindSessionParameterValidation, KindSessionQAEntryValidation, KindInvalidValueError,
	KindSchemaValidationError, KindContextWindowExceeded, KindMissingSystemPromptPathError,
}

// statusHints maps each kind to the HTTP-style status code an outer API
// shell would use; the core layer never imports net/http itself.
var statusHints = map[Kind]int{
	KindCollectionNotFound:           404,
	KindMissingQueryParameter:        400,
	KindEmbeddingException:           502,
	KindLockAcquisitionTimeout:       503,
	KindCacheConnectionError:         503,
	KindNoDataError:                  404,
	KindSessionParameterValidation:   400,
	KindSessionQAEntryValidation:     400,
	KindInvalidValueError:            400,
	KindSchemaValidationError:        422,
	KindContextWindowExceeded:        413,
	KindMissingSystemPromptPathError: 500,
}

// CoreError is the concrete error type every component in this module
// returns for classified failures. It wraps an optional cause so
// errors.Is/errors.As keep working against provider-level errors.
type CoreError struct {
	Kind       Kind
	Message    string
	StatusHint int
	Cause      error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

func newErr(kind Kind, msg string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: msg, StatusHint: statusHints[kind], Cause: cause}
}

func CollectionNotFound(name string) *CoreError {
	return newErr(KindCollectionNotFound, fmt.Sprintf("collection %q not found", name), nil)
}

func MissingQueryParameter(msg string) *CoreError {
	return newErr(KindMissingQueryParameter, msg, nil)
}

func EmbeddingException(cause error) *CoreError {
	return newErr(KindEmbeddingException, "embedding provider failed", cause)
}

func LockAcquisitionTimeout(key string) *CoreError {
	return newErr(KindLockAcquisitionTimeout, fmt.Sprintf("timed out acquiring lock %q", key), nil)
}

func CacheConnectionError(cause error) *CoreError {
	return newErr(KindCacheConnectionError, "cache backend unavailable", cause)
}

func NoData(collection string) *CoreError {
	return newErr(KindNoDataError, fmt.Sprintf("required collection %q has no data", collection), nil)
}

func SessionParameterValidation(msg string) *CoreError {
	return newErr(KindSessionParameterValidation, msg, nil)
}

func SessionQAEntryValidation(msg string) *CoreError {
	return newErr(KindSessionQAEntryValidation, msg, nil)
}

func InvalidValue(msg string) *CoreError {
	return newErr(KindInvalidValueError, msg, nil)
}

func SchemaValidation(msg string) *CoreError {
	return newErr(KindSchemaValidationError, msg, nil)
}

func ContextWindowExceeded(cause error) *CoreError {
	return newErr(KindContextWindowExceeded, "prompt exceeds model context window", cause)
}

func MissingSystemPromptPath(name string) *CoreError {
	return newErr(KindMissingSystemPromptPathError, fmt.Sprintf("system prompt %q not found", name), nil)
}

// Is reports whether err is, or wraps, a CoreError of the given kind.
func Is(err error, kind Kind) bool {
	var ce *CoreError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}
