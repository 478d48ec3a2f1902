package models

import (
	"time"

	"github.com/postpilot/dispatch/internal/platform"
)

type Content struct {
	ID        string            `db:"id" json:"id"`
	UserID    int64             `db:"user_id" json:"user_id"`
	Title     string            `db:"title" json:"title"`
	Body      string            `db:"body" json:"body"`
	Platform  platform.Platform `db:"platform" json:"platform"`
	MediaRef  string            `db:"media_ref" json:"media_ref,omitempty"`
	Status    string            `db:"status" json:"status"`
	Reason    string            `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

const (
	ContentStatusScheduled = "scheduled"
	ContentStatusPublished = "published"
	ContentStatusHeld      = "held"
	ContentStatusError     = "error"
)
