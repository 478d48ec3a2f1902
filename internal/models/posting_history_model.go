package models

import (
	"time"

	"github.com/postpilot/dispatch/internal/platform"
)

// PostingHistory records the terminal outcome of one dispatch.
type PostingHistory struct {
	ID           int64             `db:"id" json:"id"`
	JobID        string            `db:"job_id" json:"job_id"`
	ContentID    string            `db:"content_id" json:"content_id"`
	Platform     platform.Platform `db:"platform" json:"platform"`
	PublishedID  string            `db:"published_id" json:"published_id,omitempty"`
	Outcome      string            `db:"outcome" json:"outcome"`
	ErrorMessage string            `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
}
