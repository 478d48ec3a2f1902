// Package idempotency guards at-most-one effective dispatch per publish
// intent. The store must be consulted before any transport call.
package idempotency

import (
	"context"
	"errors"
)

var ErrEmptyKey = errors.New("idempotency: key must not be empty")

// Check is the outcome of CheckOrReserve.
type Check struct {
	// Reserved is true when this caller created the pending record and owns
	// the dispatch. All concurrent callers for the same key observe false.
	Reserved bool
	// Status and Result are populated when an unexpired record already
	// existed. Result is empty for pending records: the dispatch is in
	// progress elsewhere and must not be duplicated.
	Status string
	Result []byte
}

// Store is the idempotency ledger. CheckOrReserve must be atomic: concurrent
// callers with the same key resolve to exactly one reservation.
type Store interface {
	CheckOrReserve(ctx context.Context, key string) (Check, error)
	// Commit transitions a pending record to completed or failed and stores
	// the result. Committing an already-committed key is a no-op.
	Commit(ctx context.Context, key string, result []byte, status string) error
	// Release drops a pending reservation after an attempt that produced no
	// side effect, so a later job-level retry can reserve again. Committed
	// records are never released.
	Release(ctx context.Context, key string) error
}
