package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilot/dispatch/internal/models"
)

// JobStore owns Job records. The worker is the only mutator of jobs while
// they are processed; core logic must not assume in-process durability.
type JobStore interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error)
	ListDue(ctx context.Context, cutoff time.Time) ([]*models.Job, error)
	List(ctx context.Context, status string, limit int) ([]*models.Job, error)
	Update(ctx context.Context, job *models.Job) error
	CountByStatus(ctx context.Context, status string) (int, error)
}

type jobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) JobStore {
	return &jobStore{db: db}
}

const jobColumns = `id, content_id, platform, run_at, attempts, max_attempts, status, idempotency_key, last_error, next_retry_at, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*models.Job, error) {
	var job models.Job
	var nextRetryAt sql.NullTime
	err := row.Scan(&job.ID, &job.ContentID, &job.Platform, &job.RunAt, &job.Attempts, &job.MaxAttempts,
		&job.Status, &job.IdempotencyKey, &job.LastError, &nextRetryAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if nextRetryAt.Valid {
		job.NextRetryAt = nextRetryAt.Time
	}
	return &job, nil
}

func (r *jobStore) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, content_id, platform, run_at, attempts, max_attempts, status, idempotency_key, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query, job.ID, job.ContentID, job.Platform, job.RunAt,
		job.Attempts, job.MaxAttempts, job.Status, job.IdempotencyKey, job.LastError)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *jobStore) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

func (r *jobStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE idempotency_key = $1 ORDER BY created_at DESC LIMIT 1`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return job, nil
}

func (r *jobStore) ListDue(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 AND run_at <= $2 ORDER BY run_at`
	rows, err := r.db.QueryContext(ctx, query, models.JobStatusPending, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *jobStore) List(ctx context.Context, status string, limit int) ([]*models.Job, error) {
	var rows *sql.Rows
	var err error

	if status != "" {
		query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY created_at DESC LIMIT $2`
		rows, err = r.db.QueryContext(ctx, query, status, limit)
	} else {
		query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC LIMIT $1`
		rows, err = r.db.QueryContext(ctx, query, limit)
	}
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *jobStore) Update(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE jobs
		SET run_at = $1,
			attempts = $2,
			status = $3,
			last_error = $4,
			next_retry_at = $5,
			updated_at = $6
		WHERE id = $7
	`
	var nextRetryAt any
	if !job.NextRetryAt.IsZero() {
		nextRetryAt = job.NextRetryAt
	}
	_, err := r.db.ExecContext(ctx, query, job.RunAt, job.Attempts, job.Status, job.LastError,
		nextRetryAt, time.Now(), job.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *jobStore) CountByStatus(ctx context.Context, status string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = $1`, status).Scan(&count)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return count, nil
}
