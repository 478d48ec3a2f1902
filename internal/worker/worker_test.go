package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/dispatch/internal/models"
	"github.com/postpilot/dispatch/internal/platform"
	"github.com/postpilot/dispatch/internal/publisher"
	"github.com/postpilot/dispatch/internal/repository"
)

// scriptedDispatcher replays a queue of results; once drained it publishes.
type scriptedDispatcher struct {
	results []publisher.Result
	calls   int
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, _ *models.Job) publisher.Result {
	idx := d.calls
	d.calls++
	if idx < len(d.results) {
		return d.results[idx]
	}
	return publisher.Result{Disposition: publisher.DispositionPublished}
}

type panickingDispatcher struct{}

func (panickingDispatcher) Dispatch(context.Context, *models.Job) publisher.Result {
	panic("unexpected nil token")
}

type harness struct {
	worker     *Worker
	store      *repository.MemoryJobStore
	dispatcher *scriptedDispatcher
	now        time.Time
}

func newHarness(t *testing.T, results ...publisher.Result) *harness {
	t.Helper()
	h := &harness{
		store:      repository.NewMemoryJobStore(),
		dispatcher: &scriptedDispatcher{results: results},
		now:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.worker = New(h.store, h.dispatcher, WithClock(func() time.Time { return h.now }))
	return h
}

func (h *harness) mustGet(t *testing.T, id string) *models.Job {
	t.Helper()
	job, err := h.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, job)
	return job
}

func TestEnqueueCreatesPendingJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	job, err := h.worker.Enqueue(ctx, "c-1", platform.Telegram, h.now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, models.DefaultMaxAttempts, job.MaxAttempts)
	assert.NotEmpty(t, job.ID)
	assert.NotEmpty(t, job.IdempotencyKey)
}

func TestEnqueueIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	runAt := h.now.Add(time.Hour)

	first, err := h.worker.Enqueue(ctx, "c-1", platform.Telegram, runAt)
	require.NoError(t, err)

	// Same content, platform and minute: same job comes back.
	second, err := h.worker.Enqueue(ctx, "c-1", platform.Telegram, runAt.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// A different minute is a different intent.
	third, err := h.worker.Enqueue(ctx, "c-1", platform.Telegram, runAt.Add(2*time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestEnqueueRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.worker.Enqueue(ctx, "", platform.X, time.Time{})
	assert.Error(t, err)

	_, err = h.worker.Enqueue(ctx, "c-1", "myspace", time.Time{})
	assert.Error(t, err)

	_, err = h.worker.Enqueue(ctx, "c-1", platform.X, h.now.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidRunAt)
}

func TestTickCompletesDueJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	job, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now)
	require.NoError(t, err)

	processed, err := h.worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	stored := h.mustGet(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Empty(t, stored.LastError)
}

func TestTickSkipsFutureJobs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now.Add(time.Hour))
	require.NoError(t, err)

	processed, err := h.worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 0, h.dispatcher.calls)
}

func TestTickReentrancyGuard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now)
	require.NoError(t, err)

	h.worker.ticking.Store(true)
	processed, err := h.worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed, "overlapping tick must be a no-op")

	h.worker.ticking.Store(false)
	processed, err = h.worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestHeldJobCompletes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, publisher.Result{
		Disposition: publisher.DispositionHeld,
		Reason:      "contains banned word: 'bedava'",
	})

	job, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now)
	require.NoError(t, err)

	_, err = h.worker.Tick(ctx)
	require.NoError(t, err)

	stored := h.mustGet(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Contains(t, stored.LastError, "bedava")
}

func TestDeferredJobStaysPendingWithoutAttempt(t *testing.T) {
	ctx := context.Background()
	nextEligible := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	h := newHarness(t, publisher.Result{
		Disposition:  publisher.DispositionDeferred,
		Reason:       "daily quota exceeded",
		NextEligible: nextEligible,
	})

	job, err := h.worker.Enqueue(ctx, "c-1", platform.Telegram, h.now)
	require.NoError(t, err)

	_, err = h.worker.Tick(ctx)
	require.NoError(t, err)

	stored := h.mustGet(t, job.ID)
	assert.Equal(t, models.JobStatusPending, stored.Status)
	assert.Equal(t, 0, stored.Attempts, "a deferral must not consume an attempt")
	assert.Equal(t, nextEligible, stored.RunAt)

	// The job is not due again until the gate reopens.
	processed, err := h.worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestRetriesThenSucceedsAcrossTicks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		publisher.Result{Disposition: publisher.DispositionRetry, Reason: "timeout"},
		publisher.Result{Disposition: publisher.DispositionRetry, Reason: "timeout"},
		publisher.Result{Disposition: publisher.DispositionRetry, Reason: "timeout"},
	)

	job, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = h.worker.Tick(ctx)
		require.NoError(t, err)
		stored := h.mustGet(t, job.ID)
		require.Equal(t, models.JobStatusPending, stored.Status)
		h.now = stored.RunAt.Add(time.Second)
	}

	_, err = h.worker.Tick(ctx)
	require.NoError(t, err)

	stored := h.mustGet(t, job.ID)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
	assert.Equal(t, 4, stored.Attempts)
	assert.Equal(t, 4, h.dispatcher.calls)
}

func TestRetryBackoffGrowsThenJobFails(t *testing.T) {
	ctx := context.Background()
	retry := publisher.Result{Disposition: publisher.DispositionRetry, Reason: "timeout"}
	h := newHarness(t, retry, retry, retry, retry, retry, retry)

	job, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now)
	require.NoError(t, err)

	wantDelays := []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute, 60 * time.Minute}
	for _, want := range wantDelays {
		before := h.now
		_, err = h.worker.Tick(ctx)
		require.NoError(t, err)

		stored := h.mustGet(t, job.ID)
		require.Equal(t, models.JobStatusPending, stored.Status)
		assert.Equal(t, want, stored.NextRetryAt.Sub(before))
		h.now = stored.NextRetryAt.Add(time.Second)
	}

	// Fifth failure hits the attempt ceiling.
	_, err = h.worker.Tick(ctx)
	require.NoError(t, err)

	stored := h.mustGet(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, models.DefaultMaxAttempts, stored.Attempts)
	assert.Equal(t, "timeout", stored.LastError)

	// Terminal jobs are never picked up again.
	processed, err := h.worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestPermanentFailureTerminatesJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, publisher.Result{
		Disposition: publisher.DispositionFailed,
		Reason:      "account revoked",
	})

	job, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now)
	require.NoError(t, err)

	_, err = h.worker.Tick(ctx)
	require.NoError(t, err)

	stored := h.mustGet(t, job.ID)
	assert.Equal(t, models.JobStatusFailed, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "account revoked", stored.LastError)
}

func TestPanicInDispatchMarksJobForRetry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.worker = New(h.store, panickingDispatcher{}, WithClock(func() time.Time { return h.now }))

	job, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now)
	require.NoError(t, err)

	processed, err := h.worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	stored := h.mustGet(t, job.ID)
	assert.Equal(t, models.JobStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Contains(t, stored.LastError, "panic")
}

func TestRunNow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	job, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now.Add(time.Hour))
	require.NoError(t, err)

	updated, err := h.worker.RunNow(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, updated.Status)
	assert.Equal(t, 1, h.dispatcher.calls)

	_, err = h.worker.RunNow(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotPending)

	_, err = h.worker.RunNow(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestReschedule(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	job, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now.Add(time.Hour))
	require.NoError(t, err)
	oldKey := job.IdempotencyKey

	newRunAt := h.now.Add(3 * time.Hour)
	updated, err := h.worker.Reschedule(ctx, job.ID, newRunAt)
	require.NoError(t, err)
	assert.Equal(t, newRunAt, updated.RunAt)
	assert.NotEqual(t, oldKey, updated.IdempotencyKey, "a new time is a new dispatch identity")

	_, err = h.worker.Reschedule(ctx, job.ID, h.now.Add(-2*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidRunAt)
}

func TestCancelOnlyPendingJobs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	job, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now.Add(time.Hour))
	require.NoError(t, err)

	cancelled, err := h.worker.Cancel(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)

	// Already terminal.
	_, err = h.worker.Cancel(ctx, job.ID)
	assert.ErrorIs(t, err, ErrJobNotPending)

	_, err = h.worker.Cancel(ctx, "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	// Cancelled jobs never run.
	processed, err := h.worker.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestListJobs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.worker.Enqueue(ctx, "c-1", platform.X, h.now)
	require.NoError(t, err)
	_, err = h.worker.Enqueue(ctx, "c-2", platform.Telegram, h.now.Add(time.Hour))
	require.NoError(t, err)

	_, err = h.worker.Tick(ctx)
	require.NoError(t, err)

	all, err := h.worker.ListJobs(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := h.worker.ListJobs(ctx, models.JobStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "c-2", pending[0].ContentID)
}
