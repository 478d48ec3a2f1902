package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/postpilot/dispatch/internal/platform"
)

// ErrRateLimitExceeded is returned when the hourly budget for a platform is
// already spent. Callers must not retry at this layer; the job scheduler
// decides whether to defer.
var ErrRateLimitExceeded = errors.New("ratelimit: hourly request budget exceeded")

const (
	// minSpacing is the minimum distance between consecutive requests to the
	// same platform.
	minSpacing = time.Second

	window = time.Hour
)

// Limiter enforces a fixed-window hourly budget and minimum inter-request
// spacing for a single platform. The window is a fixed reset, not a sliding
// one: bursts of up to twice the budget are possible at window boundaries,
// which matches the platform quotas this guards against in practice.
type Limiter struct {
	mu            sync.Mutex
	budget        int
	requestCount  int
	windowResetAt time.Time
	lastRequestAt time.Time

	clock func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithSleep overrides the spacing sleep, for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) {
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// NewLimiter creates a limiter allowing budget requests per hour.
func NewLimiter(budget int, opts ...Option) *Limiter {
	l := &Limiter{
		budget: budget,
		clock:  time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.windowResetAt = l.clock().Add(window)
	return l
}

// Acquire consumes one slot from the hourly budget, sleeping as needed to
// respect the minimum spacing. The spacing sleep is the only blocking point
// and honors ctx cancellation. Returns ErrRateLimitExceeded when the budget
// for the current window is spent.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()

	now := l.clock()
	if now.After(l.windowResetAt) {
		l.requestCount = 0
		l.windowResetAt = now.Add(window)
	}

	if l.requestCount >= l.budget {
		l.mu.Unlock()
		return ErrRateLimitExceeded
	}

	var wait time.Duration
	if !l.lastRequestAt.IsZero() {
		if elapsed := now.Sub(l.lastRequestAt); elapsed < minSpacing {
			wait = minSpacing - elapsed
		}
	}

	l.requestCount++
	l.lastRequestAt = now.Add(wait)
	l.mu.Unlock()

	if wait > 0 {
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot reports current window usage for stats and telemetry.
func (l *Limiter) Snapshot() (used, budget int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	used = l.requestCount
	if l.clock().After(l.windowResetAt) {
		used = 0
	}
	return used, l.budget, l.windowResetAt
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Registry holds one independent limiter per platform so that spacing sleeps
// for one platform never block dispatches for another.
type Registry struct {
	limiters map[platform.Platform]*Limiter
}

// NewRegistry builds a limiter per platform from the budgets map. Platforms
// missing from the map get defaultBudget.
func NewRegistry(budgets map[platform.Platform]int, defaultBudget int, opts ...Option) *Registry {
	limiters := make(map[platform.Platform]*Limiter, len(platform.All()))
	for _, p := range platform.All() {
		budget, ok := budgets[p]
		if !ok {
			budget = defaultBudget
		}
		limiters[p] = NewLimiter(budget, opts...)
	}
	return &Registry{limiters: limiters}
}

// For returns the limiter owning the given platform's counters.
func (r *Registry) For(p platform.Platform) *Limiter {
	return r.limiters[p]
}
