package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/postpilot/dispatch/internal/models"
)

type PostingHistoryRepository interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
	ListByContentID(ctx context.Context, contentID string) ([]*models.PostingHistory, error)
}

type postingHistoryRepository struct {
	db *sql.DB
}

func NewPostingHistoryRepository(db *sql.DB) PostingHistoryRepository {
	return &postingHistoryRepository{db: db}
}

func (r *postingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	query := `
		INSERT INTO posting_history (job_id, content_id, platform, published_id, outcome, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, ph.JobID, ph.ContentID, ph.Platform, ph.PublishedID, ph.Outcome, ph.ErrorMessage).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *postingHistoryRepository) ListByContentID(ctx context.Context, contentID string) ([]*models.PostingHistory, error) {
	query := `SELECT id, job_id, content_id, platform, published_id, outcome, error_message, created_at
		FROM posting_history WHERE content_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, contentID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var phs []*models.PostingHistory
	for rows.Next() {
		var ph models.PostingHistory
		err := rows.Scan(&ph.ID, &ph.JobID, &ph.ContentID, &ph.Platform, &ph.PublishedID, &ph.Outcome, &ph.ErrorMessage, &ph.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		phs = append(phs, &ph)
	}
	return phs, rows.Err()
}
