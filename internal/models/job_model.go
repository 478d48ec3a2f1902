package models

import (
	"time"

	"github.com/postpilot/dispatch/internal/platform"
)

type Job struct {
	ID             string            `db:"id" json:"id"`
	ContentID      string            `db:"content_id" json:"content_id"`
	Platform       platform.Platform `db:"platform" json:"platform"`
	RunAt          time.Time         `db:"run_at" json:"run_at"`
	Attempts       int               `db:"attempts" json:"attempts"`
	MaxAttempts    int               `db:"max_attempts" json:"max_attempts"`
	Status         string            `db:"status" json:"status"`
	IdempotencyKey string            `db:"idempotency_key" json:"idempotency_key"`
	LastError      string            `db:"last_error" json:"last_error,omitempty"`
	NextRetryAt    time.Time         `db:"next_retry_at" json:"next_retry_at,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// DefaultMaxAttempts is the attempt ceiling applied when a job is enqueued
// without an explicit override.
const DefaultMaxAttempts = 5

// Terminal reports whether a job status has no outgoing transitions.
func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobSummary is the listing projection returned by the API.
type JobSummary struct {
	ID        string            `json:"id"`
	ContentID string            `json:"content_id"`
	Platform  platform.Platform `json:"platform"`
	RunAt     time.Time         `json:"run_at"`
	Attempts  int               `json:"attempts"`
	Status    string            `json:"status"`
	LastError string            `json:"last_error,omitempty"`
}
