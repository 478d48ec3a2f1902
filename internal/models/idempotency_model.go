package models

import "time"

type IdempotencyRecord struct {
	Key       string    `db:"key" json:"key"`
	Status    string    `db:"status" json:"status"`
	Result    []byte    `db:"result" json:"result,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	IdempotencyStatusPending   = "pending"
	IdempotencyStatusCompleted = "completed"
	IdempotencyStatusFailed    = "failed"
)

// IdempotencyTTL is how long a committed record shields against duplicate
// dispatches. Older records are treated as absent.
const IdempotencyTTL = 24 * time.Hour

// Expired reports whether the record is past its TTL at the given instant.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.Sub(r.CreatedAt) > IdempotencyTTL
}
