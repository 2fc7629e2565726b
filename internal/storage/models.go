package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Exchange is one finished conversational turn as recorded in the journal.
type Exchange struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	CreatedAt     time.Time `json:"created_at"`
	Label         string    `json:"label"`
	UserText      string    `json:"user_text"`
	AssistantText string    `json:"assistant_text"`
	Suggestions   string    `json:"suggestions"` // JSON array stored as text
	Outcome       string    `json:"outcome"`     // "applied", "skipped", "failed"
	PatchCount    int       `json:"patch_count"`
	Error         string    `json:"error,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
}
