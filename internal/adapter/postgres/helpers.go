package postgres

// This file holds generic helpers shared by the two Postgres-backed
// adapters (pgvector, pgsession): not-found wrapping over pgx's
// row-not-found sentinel, row-count assertions on Exec results, and a
// zero-time-to-NULL converter.

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cognee-core/engine/internal/domain"
)

// scannable abstracts pgx.Row (and pgx.Rows mid-iteration) for ScanOneOrNotFound.
type scannable interface {
	Scan(dest ...any) error
}

// NullTime converts a zero time.Time into nil so it binds to a nullable
// TIMESTAMPTZ column as SQL NULL instead of the zero-value timestamp.
func NullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// OrEmpty returns items unchanged if non-nil, or a non-nil empty slice if
// nil, so a caller's "no rows found" always returns an empty slice rather
// than a Go nil slice.
func OrEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// NotFoundWrap checks whether err is pgx.ErrNoRows and, if so, wraps
// domain.ErrNotFound with the given message. Otherwise it wraps the
// original error.
func NotFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// ScanOneOrNotFound scans a single row, wrapping pgx.ErrNoRows as
// domain.ErrNotFound via NotFoundWrap.
func ScanOneOrNotFound(row scannable, format string, args []any, dest ...any) error {
	if err := row.Scan(dest...); err != nil {
		return NotFoundWrap(err, format, args...)
	}
	return nil
}

// ExecExpectOne verifies that an Exec affected at least one row. If it
// affected none (and err is nil), it returns domain.ErrNotFound with the
// given message.
func ExecExpectOne(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", domain.ErrNotFound)
	}
	return nil
}
