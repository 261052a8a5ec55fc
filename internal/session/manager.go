// Package session implements the thin domain layer above the cache/lock
// coordinator: default-session resolution, parameter validation, and
// prompt-ready formatting of recent Q&A history.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cognee-core/engine/internal/domain/qa"
	"github.com/cognee-core/engine/internal/errs"
	"github.com/cognee-core/engine/internal/port/coordinator"
)

// Manager resolves default sessions, validates parameters, and formats
// history for prompt construction on top of a Coordinator.
type Manager struct {
	coord coordinator.Coordinator
}

// New creates a Manager over the given coordinator.
func New(coord coordinator.Coordinator) *Manager {
	return &Manager{coord: coord}
}

// IsAvailable mirrors the underlying coordinator's availability.
func (m *Manager) IsAvailable() bool {
	return m.coord != nil && m.coord.IsAvailable()
}

func resolveSession(sessionID string) string {
	if sessionID == "" {
		return qa.DefaultSessionID
	}
	return sessionID
}

func validateParams(userID, sessionID string, lastN int) error {
	if userID == "" {
		return errs.SessionParameterValidation("user_id must not be empty")
	}
	if sessionID == "" {
		return errs.SessionParameterValidation("session_id must not be empty")
	}
	if lastN < 1 {
		return errs.SessionParameterValidation("last_n must be >= 1")
	}
	return nil
}

// CreateQAEntry appends a new Q&A entry. When no cache is configured, this
// is a no-op returning nil.
func (m *Manager) CreateQAEntry(ctx context.Context, userID, sessionID, question, qaContext, answer, qaID string, feedbackText *string, feedbackScore *int, ttl time.Duration) error {
	sessionID = resolveSession(sessionID)
	if err := validateParams(userID, sessionID, 1); err != nil {
		return err
	}
	if feedbackScore != nil && !qa.ValidFeedbackScore(*feedbackScore) {
		return errs.SessionQAEntryValidation("feedback_score must be between 0 and 5")
	}
	if !m.IsAvailable() {
		return nil
	}
	entry := qa.Entry{
		QAID:          qaID,
		Time:          time.Now().UTC(),
		Question:      question,
		Context:       qaContext,
		Answer:        answer,
		FeedbackText:  feedbackText,
		FeedbackScore: feedbackScore,
	}
	return m.coord.CreateQAEntry(ctx, userID, sessionID, entry, ttl)
}

// GetLatestQAEntries returns the most recent lastN entries, newest first.
func (m *Manager) GetLatestQAEntries(ctx context.Context, userID, sessionID string, lastN int) ([]qa.Entry, error) {
	sessionID = resolveSession(sessionID)
	if lastN <= 0 {
		lastN = 5
	}
	if err := validateParams(userID, sessionID, lastN); err != nil {
		return nil, err
	}
	if !m.IsAvailable() {
		return nil, nil
	}
	return m.coord.GetLatestQAEntries(ctx, userID, sessionID, lastN)
}

// GetAllQAEntries returns the full Q&A history in insertion order.
func (m *Manager) GetAllQAEntries(ctx context.Context, userID, sessionID string) ([]qa.Entry, error) {
	sessionID = resolveSession(sessionID)
	if err := validateParams(userID, sessionID, 1); err != nil {
		return nil, err
	}
	if !m.IsAvailable() {
		return nil, nil
	}
	return m.coord.GetAllQAEntries(ctx, userID, sessionID)
}

// UpdateQAEntry patches fields on an existing entry by qa_id.
func (m *Manager) UpdateQAEntry(ctx context.Context, userID, sessionID, qaID string, update qa.Update) (bool, error) {
	sessionID = resolveSession(sessionID)
	if err := validateParams(userID, sessionID, 1); err != nil {
		return false, err
	}
	if qaID == "" {
		return false, errs.SessionParameterValidation("qa_id must not be empty")
	}
	if update.FeedbackScore != nil && !qa.ValidFeedbackScore(*update.FeedbackScore) {
		return false, errs.SessionQAEntryValidation("feedback_score must be between 0 and 5")
	}
	if !m.IsAvailable() {
		return false, nil
	}
	return m.coord.UpdateQAEntry(ctx, userID, sessionID, qaID, update)
}

// DeleteQAEntries removes a single Q&A entry by qa_id.
func (m *Manager) DeleteQAEntries(ctx context.Context, userID, sessionID, qaID string) (bool, error) {
	sessionID = resolveSession(sessionID)
	if err := validateParams(userID, sessionID, 1); err != nil {
		return false, err
	}
	if qaID == "" {
		return false, errs.SessionParameterValidation("qa_id must not be empty")
	}
	if !m.IsAvailable() {
		return false, nil
	}
	return m.coord.DeleteQAEntries(ctx, userID, sessionID, qaID)
}

// DeleteSession removes the entire Q&A history for (user, session).
func (m *Manager) DeleteSession(ctx context.Context, userID, sessionID string) (bool, error) {
	sessionID = resolveSession(sessionID)
	if err := validateParams(userID, sessionID, 1); err != nil {
		return false, err
	}
	if !m.IsAvailable() {
		return false, nil
	}
	return m.coord.DeleteSession(ctx, userID, sessionID)
}

// FormatHistory renders entries (already ordered newest-first, as returned
// by GetLatestQAEntries) into a prompt-ready block.
func FormatHistory(entries []qa.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s]\nQUESTION: %s\nCONTEXT: %s\nANSWER: %s\n\n",
			e.Time.Format(time.RFC3339), e.Question, e.Context, e.Answer)
	}
	return b.String()
}
