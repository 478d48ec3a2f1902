// Package publisher composes guardrail, gate, idempotency ledger and
// transport into a single dispatch operation.
package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/postpilot/dispatch/internal/gate"
	"github.com/postpilot/dispatch/internal/guardrail"
	"github.com/postpilot/dispatch/internal/idempotency"
	"github.com/postpilot/dispatch/internal/models"
	"github.com/postpilot/dispatch/internal/repository"
	"github.com/postpilot/dispatch/internal/telemetry"
	"github.com/postpilot/dispatch/internal/trace"
	"github.com/postpilot/dispatch/internal/transport"
)

// Disposition classifies how one dispatch attempt ended, driving the job
// state machine in the worker.
type Disposition string

const (
	// DispositionPublished is an effective publish: the job completes.
	DispositionPublished Disposition = "published"
	// DispositionHeld means guardrails blocked the content: the job
	// completes with the hold recorded, it is not an error.
	DispositionHeld Disposition = "held"
	// DispositionDeferred means the gate refused admission: the job goes
	// back to pending without consuming an attempt.
	DispositionDeferred Disposition = "deferred"
	// DispositionDuplicate means the ledger already holds a committed result
	// for this intent: the cached result is returned, no transport call.
	DispositionDuplicate Disposition = "duplicate"
	// DispositionRetry is a transient failure: the job retries with backoff.
	DispositionRetry Disposition = "retry"
	// DispositionFailed is a permanent failure: the job terminates.
	DispositionFailed Disposition = "failed"
)

// Result is the outcome of one Dispatch call.
type Result struct {
	Disposition  Disposition
	Reason       string
	Outcome      transport.Outcome
	NextEligible time.Time
}

// MediaResolver turns a content's media reference into a pull URL and media
// kind the transports understand.
type MediaResolver interface {
	Resolve(ctx context.Context, mediaRef string) (url, kind string, err error)
}

// Orchestrator wires the dispatch pipeline. All collaborators are required
// except media (contents without media need no resolver) and history.
type Orchestrator struct {
	contents   repository.ContentStore
	engine     *guardrail.Engine
	gate       *gate.Gate
	ledger     idempotency.Store
	transports *transport.Registry
	media      MediaResolver
	history    repository.PostingHistoryRepository
	sink       trace.Sink
	clock      func() time.Time
}

type Option func(*Orchestrator)

// WithMediaResolver attaches media resolution for contents carrying a
// media_ref.
func WithMediaResolver(m MediaResolver) Option {
	return func(o *Orchestrator) { o.media = m }
}

// WithHistory records terminal outcomes as posting history rows.
func WithHistory(h repository.PostingHistoryRepository) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func New(
	contents repository.ContentStore,
	engine *guardrail.Engine,
	g *gate.Gate,
	ledger idempotency.Store,
	transports *transport.Registry,
	sink trace.Sink,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		contents:   contents,
		engine:     engine,
		gate:       g,
		ledger:     ledger,
		transports: transports,
		sink:       sink,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch runs one attempt for the job: guardrail, then gate, then ledger,
// then transport. The ledger is always consulted before the transport call,
// never after.
func (o *Orchestrator) Dispatch(ctx context.Context, job *models.Job) Result {
	content, err := o.contents.GetContent(ctx, job.ContentID)
	if err != nil {
		return Result{Disposition: DispositionRetry, Reason: "content store unavailable: " + err.Error()}
	}
	if content == nil {
		return Result{Disposition: DispositionFailed, Reason: "content not found"}
	}

	if verdict := o.engine.Evaluate(content.Title, content.Body); verdict.Blocked {
		o.holdContent(ctx, job, content, verdict.Reason)
		return Result{Disposition: DispositionHeld, Reason: verdict.Reason}
	}

	now := o.clock()
	if decision := o.gate.Admit(job.Platform, now); !decision.Admitted {
		telemetry.Deferred.WithLabelValues(decision.Reason).Inc()
		return Result{
			Disposition:  DispositionDeferred,
			Reason:       decision.Deferred(),
			NextEligible: decision.NextEligible,
		}
	}

	check, err := o.ledger.CheckOrReserve(ctx, job.IdempotencyKey)
	if err != nil {
		return Result{Disposition: DispositionRetry, Reason: "idempotency ledger unavailable: " + err.Error()}
	}
	if !check.Reserved {
		if check.Status == models.IdempotencyStatusPending {
			// In progress elsewhere; come back later without burning an
			// attempt.
			return Result{
				Disposition:  DispositionDeferred,
				Reason:       "dispatch in progress elsewhere",
				NextEligible: now.Add(time.Minute),
			}
		}
		var cached transport.Outcome
		if len(check.Result) > 0 {
			if err := json.Unmarshal(check.Result, &cached); err != nil {
				slog.Info(err.Error())
			}
		}
		return Result{Disposition: DispositionDuplicate, Reason: "cached result for idempotency key", Outcome: cached}
	}

	o.emit(content.ID, trace.EventPublishing, string(job.Platform))

	outcome := o.publish(ctx, job, content)
	switch {
	case outcome.Success:
		o.gate.RecordPublish(job.Platform, o.clock())
		o.commit(ctx, job, outcome, models.IdempotencyStatusCompleted)
		o.setContentStatus(ctx, content.ID, models.ContentStatusPublished, "")
		o.emit(content.ID, trace.EventPublished, outcome.PublishedID)
		o.recordHistory(ctx, job, outcome, models.ContentStatusPublished)
		telemetry.Published.WithLabelValues(string(job.Platform)).Inc()
		return Result{Disposition: DispositionPublished, Outcome: outcome}

	case outcome.RateLimited, outcome.Retryable:
		// No side effect happened; free the reservation for the retry.
		o.release(ctx, job.IdempotencyKey)
		return Result{Disposition: DispositionRetry, Reason: outcome.Error, Outcome: outcome}

	default:
		o.commit(ctx, job, outcome, models.IdempotencyStatusFailed)
		o.setContentStatus(ctx, content.ID, models.ContentStatusError, outcome.Error)
		o.emit(content.ID, trace.EventFailed, outcome.Error)
		o.recordHistory(ctx, job, outcome, models.ContentStatusError)
		telemetry.Failed.WithLabelValues(string(job.Platform)).Inc()
		return Result{Disposition: DispositionFailed, Reason: outcome.Error, Outcome: outcome}
	}
}

func (o *Orchestrator) publish(ctx context.Context, job *models.Job, content *models.Content) transport.Outcome {
	tr, err := o.transports.Resolve(job.Platform)
	if err != nil {
		return transport.Outcome{Error: err.Error()}
	}

	item := transport.PublishItem{
		ContentID: content.ID,
		UserID:    content.UserID,
		Title:     content.Title,
		Body:      content.Body,
	}
	if content.MediaRef != "" && o.media != nil {
		url, kind, err := o.media.Resolve(ctx, content.MediaRef)
		if err != nil {
			return transport.Outcome{Error: "media resolve failed: " + err.Error(), Retryable: true}
		}
		item.MediaURL = url
		item.MediaKind = kind
	}

	return tr.Publish(ctx, item)
}

func (o *Orchestrator) holdContent(ctx context.Context, job *models.Job, content *models.Content, reason string) {
	o.setContentStatus(ctx, content.ID, models.ContentStatusHeld, reason)
	o.emit(content.ID, trace.EventHeld, reason)
	o.recordHistory(ctx, job, transport.Outcome{Error: reason}, models.ContentStatusHeld)
	telemetry.Held.Inc()
}

func (o *Orchestrator) commit(ctx context.Context, job *models.Job, outcome transport.Outcome, status string) {
	data, err := json.Marshal(outcome)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	if err := o.ledger.Commit(ctx, job.IdempotencyKey, data, status); err != nil {
		slog.Info(err.Error())
	}
}

func (o *Orchestrator) release(ctx context.Context, key string) {
	if err := o.ledger.Release(ctx, key); err != nil {
		slog.Info(err.Error())
	}
}

func (o *Orchestrator) setContentStatus(ctx context.Context, id, status, reason string) {
	if err := o.contents.SetStatus(ctx, id, status, reason); err != nil {
		slog.Info(err.Error())
	}
}

func (o *Orchestrator) recordHistory(ctx context.Context, job *models.Job, outcome transport.Outcome, result string) {
	if o.history == nil {
		return
	}
	_, err := o.history.Create(ctx, &models.PostingHistory{
		JobID:        job.ID,
		ContentID:    job.ContentID,
		Platform:     job.Platform,
		PublishedID:  outcome.PublishedID,
		Outcome:      result,
		ErrorMessage: outcome.Error,
	})
	if err != nil {
		slog.Info(err.Error())
	}
}

// emit is fire-and-forget: a panicking or failing sink must never fail the
// dispatch.
func (o *Orchestrator) emit(contentID string, event trace.Event, detail string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Info("trace sink panicked", "recovered", r)
		}
	}()
	o.sink.Emit(contentID, event, detail)
}
