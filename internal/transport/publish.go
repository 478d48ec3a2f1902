package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/oauth2"

	"github.com/postpilot/dispatch/internal/platform"
	"github.com/postpilot/dispatch/internal/ratelimit"
	"github.com/postpilot/dispatch/internal/telemetry"
)

const (
	// retryLimit is the number of extra attempts after the first failure.
	retryLimit = 3

	retryBase = time.Second

	// callTimeout bounds one platform call; an overrun is treated as a
	// transient failure.
	callTimeout = 10 * time.Second
)

// api is the platform-specific half of a transport: one raw publish call and
// one raw metrics call, no policy.
type api interface {
	platform() platform.Platform
	publishOnce(ctx context.Context, item PublishItem, token *oauth2.Token, handle string) (string, error)
	fetchMetrics(ctx context.Context, token *oauth2.Token, handle string, since time.Time) ([]MetricSample, error)
}

// Transport composes an api with the rate limiter, constraint checks,
// credential resolution, bounded retry and dry-run synthesis.
type Transport struct {
	api     api
	limiter *ratelimit.Limiter
	creds   *credentials
	dryRun  bool

	sleep  func(context.Context, time.Duration) error
	jitter func() time.Duration
}

func newTransport(api api, limiter *ratelimit.Limiter, creds *credentials, dryRun bool) *Transport {
	return &Transport{
		api:     api,
		limiter: limiter,
		creds:   creds,
		dryRun:  dryRun,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second)))
		},
	}
}

func (t *Transport) Platform() platform.Platform {
	return t.api.platform()
}

// Publish runs one dispatch attempt end to end. It never returns an error;
// every failure mode is folded into the Outcome so the worker can drive the
// job state machine from a single value.
func (t *Transport) Publish(ctx context.Context, item PublishItem) Outcome {
	cons := ConstraintsFor(t.Platform())
	if err := cons.Check(item); err != nil {
		return Outcome{Error: err.Error()}
	}

	if err := t.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimitExceeded) {
			telemetry.RateLimitRejects.Inc()
			return Outcome{Error: "rate limit", RateLimited: true}
		}
		return Outcome{Error: err.Error(), Retryable: true}
	}

	if t.dryRun {
		return Outcome{
			Success:     true,
			PublishedID: fmt.Sprintf("dryrun-%s-%s", t.Platform(), item.ContentID),
			Detail:      fmt.Sprintf("dry-run: max_chars=%d media_required=%t", cons.MaxChars, cons.MediaRequired),
		}
	}

	token, handle, err := t.creds.token(ctx, item.UserID, t.Platform())
	if err != nil {
		return Outcome{Error: err.Error(), Retryable: IsTransient(err)}
	}

	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		publishedID, err := t.api.publishOnce(callCtx, item, token, handle)
		cancel()

		if err == nil {
			return Outcome{Success: true, PublishedID: publishedID}
		}
		if errors.Is(err, ErrRemoteLimited) {
			// Remote quota/rate rejections propagate immediately; the job
			// scheduler owns when to come back.
			return Outcome{Error: err.Error(), RateLimited: true}
		}
		if !IsTransient(err) {
			return Outcome{Error: err.Error()}
		}
		if attempt >= retryLimit {
			return Outcome{Error: err.Error(), Retryable: true}
		}

		telemetry.TransportRetries.Inc()
		backoff := retryBase*(1<<attempt) + t.jitter()
		if serr := t.sleep(ctx, backoff); serr != nil {
			return Outcome{Error: serr.Error(), Retryable: true}
		}
	}
}

// FetchMetrics pulls engagement samples published after since.
func (t *Transport) FetchMetrics(ctx context.Context, userID int64, since time.Time) ([]MetricSample, error) {
	if t.dryRun {
		return nil, nil
	}
	if err := t.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	token, handle, err := t.creds.token(ctx, userID, t.Platform())
	if err != nil {
		return nil, err
	}
	return t.api.fetchMetrics(ctx, token, handle, since)
}
