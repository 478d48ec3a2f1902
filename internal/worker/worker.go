// Package worker owns the job queue: enqueueing, the periodic tick that runs
// due jobs, and the pending-job control operations.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/postpilot/dispatch/internal/idempotency"
	"github.com/postpilot/dispatch/internal/models"
	"github.com/postpilot/dispatch/internal/platform"
	"github.com/postpilot/dispatch/internal/publisher"
	"github.com/postpilot/dispatch/internal/repository"
	"github.com/postpilot/dispatch/internal/telemetry"
	"github.com/postpilot/dispatch/internal/trace"
)

var (
	ErrJobNotFound   = errors.New("worker: job not found")
	ErrJobNotPending = errors.New("worker: job is not pending")
	ErrInvalidRunAt  = errors.New("worker: run_at must not be in the past")
)

// dueLookahead widens the tick cutoff so jobs landing just after a tick are
// not delayed a full interval.
const dueLookahead = time.Minute

// backoffSchedule is indexed by failure count; attempts beyond the table get
// the last entry.
var backoffSchedule = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	60 * time.Minute,
}

// Dispatcher runs one dispatch attempt for a job.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *models.Job) publisher.Result
}

// Worker drives pending jobs through the dispatcher. One Tick runs at a time;
// overlapping invocations are dropped.
type Worker struct {
	store      repository.JobStore
	dispatcher Dispatcher
	sink       trace.Sink
	clock      func() time.Time
	ticking    atomic.Bool
}

type Option func(*Worker)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) Option {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithSink attaches a trace sink for queue events.
func WithSink(sink trace.Sink) Option {
	return func(w *Worker) {
		if sink != nil {
			w.sink = sink
		}
	}
}

func New(store repository.JobStore, dispatcher Dispatcher, opts ...Option) *Worker {
	w := &Worker{
		store:      store,
		dispatcher: dispatcher,
		sink:       trace.NopSink{},
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Enqueue schedules a dispatch for contentID on p at runAt. A second enqueue
// of the same intent (same platform, content and minute) returns the live job
// already queued for it instead of creating another.
func (w *Worker) Enqueue(ctx context.Context, contentID string, p platform.Platform, runAt time.Time) (*models.Job, error) {
	if contentID == "" {
		return nil, errors.New("worker: content id must not be empty")
	}
	if !p.Valid() {
		return nil, fmt.Errorf("worker: unknown platform %q", p)
	}

	now := w.clock()
	if runAt.IsZero() {
		runAt = now
	}
	if runAt.Before(now.Add(-dueLookahead)) {
		return nil, ErrInvalidRunAt
	}

	key := idempotency.DeriveKey(p, contentID, runAt)
	if existing, err := w.store.GetByIdempotencyKey(ctx, key); err != nil {
		return nil, err
	} else if existing != nil && !existing.Terminal() {
		return existing, nil
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:             id,
		ContentID:      contentID,
		Platform:       p,
		RunAt:          runAt,
		MaxAttempts:    models.DefaultMaxAttempts,
		Status:         models.JobStatusPending,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := w.store.Create(ctx, job); err != nil {
		return nil, err
	}

	w.sink.Emit(contentID, trace.EventQueued, string(p))
	return job, nil
}

// Tick runs every due pending job once. It returns the number of jobs
// processed; an overlapping tick returns zero without touching the queue.
func (w *Worker) Tick(ctx context.Context) (int, error) {
	if !w.ticking.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer w.ticking.Store(false)

	now := w.clock()
	due, err := w.store.ListDue(ctx, now.Add(dueLookahead))
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, job := range due {
		if ctx.Err() != nil {
			break
		}
		w.runJob(ctx, job)
		processed++
	}

	if pending, err := w.store.CountByStatus(ctx, models.JobStatusPending); err == nil {
		telemetry.PendingJobs.Set(float64(pending))
	}
	return processed, nil
}

// RunNow dispatches a pending job immediately, skipping its scheduled wait.
// Guardrails, the gate and the ledger still apply.
func (w *Worker) RunNow(ctx context.Context, id string) (*models.Job, error) {
	job, err := w.pendingJob(ctx, id)
	if err != nil {
		return nil, err
	}

	job.RunAt = w.clock()
	w.runJob(ctx, job)
	return w.store.GetByID(ctx, id)
}

// Reschedule moves a pending job to a new run time. The dispatch identity
// follows the new time, so a rescheduled job is a distinct intent.
func (w *Worker) Reschedule(ctx context.Context, id string, runAt time.Time) (*models.Job, error) {
	job, err := w.pendingJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if runAt.Before(w.clock().Add(-dueLookahead)) {
		return nil, ErrInvalidRunAt
	}

	job.RunAt = runAt
	job.NextRetryAt = time.Time{}
	job.IdempotencyKey = idempotency.DeriveKey(job.Platform, job.ContentID, runAt)
	if err := w.store.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Cancel terminates a pending job. Running and terminal jobs cannot be
// cancelled.
func (w *Worker) Cancel(ctx context.Context, id string) (*models.Job, error) {
	job, err := w.pendingJob(ctx, id)
	if err != nil {
		return nil, err
	}

	job.Status = models.JobStatusCancelled
	if err := w.store.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns queue summaries, newest first, optionally filtered by
// status.
func (w *Worker) ListJobs(ctx context.Context, status string, limit int) ([]*models.JobSummary, error) {
	jobs, err := w.store.List(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	summaries := make([]*models.JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, &models.JobSummary{
			ID:        job.ID,
			ContentID: job.ContentID,
			Platform:  job.Platform,
			RunAt:     job.RunAt,
			Attempts:  job.Attempts,
			Status:    job.Status,
			LastError: job.LastError,
		})
	}
	return summaries, nil
}

func (w *Worker) pendingJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := w.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.Status != models.JobStatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrJobNotPending, job.Status)
	}
	return job, nil
}

// runJob executes one attempt and applies the resulting state transition. A
// panicking dispatcher marks the job for retry instead of killing the tick.
func (w *Worker) runJob(ctx context.Context, job *models.Job) {
	job.Status = models.JobStatusRunning
	if err := w.store.Update(ctx, job); err != nil {
		slog.Info(err.Error())
		return
	}

	res := w.dispatch(ctx, job)

	switch res.Disposition {
	case publisher.DispositionPublished, publisher.DispositionDuplicate:
		job.Status = models.JobStatusCompleted
		job.Attempts++
		job.LastError = ""

	case publisher.DispositionHeld:
		// A hold is a decision, not an error; the job is done.
		job.Status = models.JobStatusCompleted
		job.Attempts++
		job.LastError = res.Reason

	case publisher.DispositionDeferred:
		// No attempt consumed; come back when the gate reopens.
		job.Status = models.JobStatusPending
		job.LastError = res.Reason
		job.RunAt = res.NextEligible
		if job.RunAt.IsZero() {
			job.RunAt = w.clock().Add(time.Minute)
		}

	case publisher.DispositionRetry:
		job.Attempts++
		job.LastError = res.Reason
		if job.Attempts >= job.MaxAttempts {
			job.Status = models.JobStatusFailed
		} else {
			job.Status = models.JobStatusPending
			job.NextRetryAt = w.clock().Add(backoffDelay(job.Attempts))
			job.RunAt = job.NextRetryAt
		}

	default:
		job.Attempts++
		job.Status = models.JobStatusFailed
		job.LastError = res.Reason
	}

	if err := w.store.Update(ctx, job); err != nil {
		slog.Info(err.Error())
	}
}

func (w *Worker) dispatch(ctx context.Context, job *models.Job) (res publisher.Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Info("dispatch panicked", "job_id", job.ID, "recovered", r)
			res = publisher.Result{
				Disposition: publisher.DispositionRetry,
				Reason:      fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return w.dispatcher.Dispatch(ctx, job)
}

// backoffDelay maps the failure count to the retry delay, saturating at the
// last schedule entry.
func backoffDelay(attempts int) time.Duration {
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(backoffSchedule) {
		idx = len(backoffSchedule) - 1
	}
	return backoffSchedule[idx]
}
