package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/postpilot/dispatch/internal/models"
	"github.com/postpilot/dispatch/internal/platform"
)

// AccountDirectory resolves the linked platform account (and its encrypted
// credential) for a user. Consulted by the transport layer, never by the
// worker.
type AccountDirectory interface {
	GetByPlatform(ctx context.Context, userID int64, p platform.Platform) (*models.SocialAccount, error)
	SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error
}

type accountDirectory struct {
	db *sql.DB
}

func NewAccountDirectory(db *sql.DB) AccountDirectory {
	return &accountDirectory{db: db}
}

func (r *accountDirectory) GetByPlatform(ctx context.Context, userID int64, p platform.Platform) (*models.SocialAccount, error) {
	query := `SELECT id, user_id, platform, account_handle, access_token, refresh_token, token_expires_at, created_at, updated_at
		FROM social_accounts WHERE user_id = $1 AND platform = $2`
	row := r.db.QueryRowContext(ctx, query, userID, p)

	var acc models.SocialAccount
	err := row.Scan(&acc.ID, &acc.UserID, &acc.Platform, &acc.AccountHandle, &acc.AccessToken,
		&acc.RefreshToken, &acc.TokenExpiresAt, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &acc, nil
}

func (r *accountDirectory) SetToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE social_accounts
		SET access_token = $1,
			refresh_token = $2,
			token_expires_at = $3,
			updated_at = $4
		WHERE id = $5
	`
	_, err := r.db.ExecContext(ctx, query, accessToken, refreshToken, expiresAt, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
