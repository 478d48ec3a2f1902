package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilot/dispatch/internal/models"
)

// ContentStore is the external collaborator owning content text, media and
// status. The dispatcher reads content once per attempt and writes back only
// the terminal status.
type ContentStore interface {
	GetContent(ctx context.Context, id string) (*models.Content, error)
	SetStatus(ctx context.Context, id, status, reason string) error
}

type contentStore struct {
	db *sql.DB
}

func NewContentStore(db *sql.DB) ContentStore {
	return &contentStore{db: db}
}

func (r *contentStore) GetContent(ctx context.Context, id string) (*models.Content, error) {
	query := `SELECT id, user_id, title, body, platform, media_ref, status, reason, created_at, updated_at FROM contents WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var c models.Content
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.Body, &c.Platform, &c.MediaRef, &c.Status, &c.Reason, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &c, nil
}

func (r *contentStore) SetStatus(ctx context.Context, id, status, reason string) error {
	query := `
		UPDATE contents
		SET status = $1,
			reason = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, status, reason, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
