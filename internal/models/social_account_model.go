package models

import (
	"time"

	"github.com/postpilot/dispatch/internal/platform"
)

// SocialAccount holds the linked platform account for a user. Tokens are
// stored AES-GCM encrypted and decrypted only by the transport layer.
type SocialAccount struct {
	ID             int64             `db:"id" json:"id"`
	UserID         int64             `db:"user_id" json:"user_id"`
	Platform       platform.Platform `db:"platform" json:"platform"`
	AccountHandle  string            `db:"account_handle" json:"account_handle"`
	AccessToken    string            `db:"access_token" json:"-"`
	RefreshToken   string            `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time         `db:"token_expires_at" json:"token_expires_at"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}
