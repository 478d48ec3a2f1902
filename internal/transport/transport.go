// Package transport abstracts publishing one content item to a social
// platform. Every concrete transport wraps the per-platform rate limiter and
// a bounded exponential-backoff retry.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/postpilot/dispatch/internal/platform"
)

// PublishItem is the content handed to a transport for one dispatch attempt.
type PublishItem struct {
	ContentID string
	UserID    int64
	Title     string
	Body      string
	MediaURL  string
	MediaKind string
}

// Outcome is the terminal result of one dispatch attempt. Retryable refers to
// the job-level retry policy; the transport has already exhausted its own
// retries by the time an Outcome is returned.
type Outcome struct {
	Success     bool   `json:"success"`
	PublishedID string `json:"published_id,omitempty"`
	Error       string `json:"error,omitempty"`
	Retryable   bool   `json:"retryable"`
	// RateLimited marks outcomes refused by the local rate limiter. The
	// transport never retries these; the job scheduler decides when to come
	// back.
	RateLimited bool `json:"rate_limited,omitempty"`
	// Detail carries non-essential context, e.g. the constraint echo in
	// dry-run mode.
	Detail string `json:"detail,omitempty"`
}

// MetricSample is one engagement snapshot fetched from a platform.
type MetricSample struct {
	PublishedID string    `json:"published_id"`
	Impressions int64     `json:"impressions"`
	Likes       int64     `json:"likes"`
	Comments    int64     `json:"comments"`
	CollectedAt time.Time `json:"collected_at"`
}

// PlatformTransport publishes items and fetches metrics for one platform.
type PlatformTransport interface {
	Platform() platform.Platform
	Publish(ctx context.Context, item PublishItem) Outcome
	FetchMetrics(ctx context.Context, userID int64, since time.Time) ([]MetricSample, error)
}

// transientError marks failures worth retrying: network errors, 5xx,
// timeouts.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Transientf is Transient over a formatted error.
func Transientf(format string, args ...any) error {
	return &transientError{err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err is retryable at the transport layer.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// ErrRemoteLimited marks a quota or rate-limit rejection raised by the remote
// side. Never retried at this layer.
var ErrRemoteLimited = errors.New("transport: remote rate or quota limit")

// ErrNoLinkedAccount is a permanent failure: the user has no usable
// credential for the platform.
var ErrNoLinkedAccount = errors.New("transport: no linked account for platform")
