// Package qa provides the domain model for session question/answer turns:
// per-session conversation memory with optional after-the-fact feedback.
package qa

import "time"

// DefaultSessionID is the literal session identifier a nil/empty session
// resolves to at the session-manager boundary.
const DefaultSessionID = "default_session"

// Entry is one question/answer turn in a (user_id, session_id) conversation,
// with optional human feedback attached after the fact.
type Entry struct {
	QAID          string    `json:"qa_id"`
	Time          time.Time `json:"time"`
	Question      string    `json:"question"`
	Context       string    `json:"context"`
	Answer        string    `json:"answer"`
	FeedbackText  *string   `json:"feedback_text,omitempty"`
	FeedbackScore *int      `json:"feedback_score,omitempty"`
}

// Update describes a partial modification to an existing Entry; nil fields
// are left unchanged.
type Update struct {
	Question      *string
	Context       *string
	Answer        *string
	FeedbackText  *string
	FeedbackScore *int
}

// Apply merges u into e, leaving unspecified fields intact.
func (u Update) Apply(e *Entry) {
	if u.Question != nil {
		e.Question = *u.Question
	}
	if u.Context != nil {
		e.Context = *u.Context
	}
	if u.Answer != nil {
		e.Answer = *u.Answer
	}
	if u.FeedbackText != nil {
		e.FeedbackText = u.FeedbackText
	}
	if u.FeedbackScore != nil {
		e.FeedbackScore = u.FeedbackScore
	}
}

// ValidFeedbackScore reports whether v is an in-range feedback score.
func ValidFeedbackScore(v int) bool {
	return v >= 0 && v <= 5
}
