package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/postpilot/dispatch/internal/models"
)

// MemoryStore is a mutex-guarded in-process ledger. Suitable for tests and
// single-process deployments; production uses RedisStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.IdempotencyRecord
	clock   func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]*models.IdempotencyRecord),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CheckOrReserve(ctx context.Context, key string) (Check, error) {
	_ = ctx
	if key == "" {
		return Check{}, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if rec, ok := s.records[key]; ok {
		// Lazy TTL expiry on read.
		if rec.Expired(now) {
			delete(s.records, key)
		} else if rec.Status == models.IdempotencyStatusPending {
			return Check{Status: rec.Status}, nil
		} else {
			return Check{Status: rec.Status, Result: rec.Result}, nil
		}
	}

	s.records[key] = &models.IdempotencyRecord{
		Key:       key,
		Status:    models.IdempotencyStatusPending,
		CreatedAt: now,
	}
	return Check{Reserved: true}, nil
}

func (s *MemoryStore) Commit(ctx context.Context, key string, result []byte, status string) error {
	_ = ctx
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Status != models.IdempotencyStatusPending {
		return nil
	}
	rec.Status = status
	rec.Result = result
	return nil
}

func (s *MemoryStore) Release(ctx context.Context, key string) error {
	_ = ctx
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok && rec.Status == models.IdempotencyStatusPending {
		delete(s.records, key)
	}
	return nil
}
