package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/postpilot/dispatch/internal/models"
)

// MemoryJobStore is an in-process JobStore used by tests and by single-node
// deployments without postgres.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*models.Job)}
}

func copyJob(j *models.Job) *models.Job {
	c := *j
	return &c
}

func (r *MemoryJobStore) Create(ctx context.Context, job *models.Job) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = copyJob(job)
	return nil
}

func (r *MemoryJobStore) GetByID(ctx context.Context, id string) (*models.Job, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	return copyJob(job), nil
}

func (r *MemoryJobStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *models.Job
	for _, job := range r.jobs {
		if job.IdempotencyKey != key {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, nil
	}
	return copyJob(latest), nil
}

func (r *MemoryJobStore) ListDue(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var due []*models.Job
	for _, job := range r.jobs {
		if job.Status == models.JobStatusPending && !job.RunAt.After(cutoff) {
			due = append(due, copyJob(job))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	return due, nil
}

func (r *MemoryJobStore) List(ctx context.Context, status string, limit int) ([]*models.Job, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var jobs []*models.Job
	for _, job := range r.jobs {
		if status == "" || job.Status == status {
			jobs = append(jobs, copyJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *MemoryJobStore) Update(ctx context.Context, job *models.Job) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[job.ID]
	if !ok {
		return nil
	}
	updated := *job
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	r.jobs[job.ID] = &updated
	return nil
}

func (r *MemoryJobStore) CountByStatus(ctx context.Context, status string) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, job := range r.jobs {
		if job.Status == status {
			count++
		}
	}
	return count, nil
}
