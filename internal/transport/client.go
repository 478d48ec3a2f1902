package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/postpilot/dispatch/internal/platform"
	"github.com/postpilot/dispatch/internal/repository"
	"github.com/postpilot/dispatch/pkg/utils"
)

// Doer abstracts *http.Client so platform APIs can be faked in tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// doJSON executes one JSON request and decodes the response into out,
// classifying failures into the transport error taxonomy.
func doJSON(ctx context.Context, client Doer, method, url string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Transient(ctx.Err())
		}
		slog.Info(err.Error())
		return Transientf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRemoteLimited
	case resp.StatusCode >= 500:
		return Transientf("platform returned status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("platform returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			slog.Info(err.Error())
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// credentials resolves and decrypts the stored token for a user/platform
// pair. Token material stays encrypted at rest; only transports see
// plaintext.
type credentials struct {
	directory repository.AccountDirectory
	secretKey []byte
}

func (c *credentials) token(ctx context.Context, userID int64, p platform.Platform) (*oauth2.Token, string, error) {
	acc, err := c.directory.GetByPlatform(ctx, userID, p)
	if err != nil {
		return nil, "", Transient(err)
	}
	if acc == nil {
		return nil, "", ErrNoLinkedAccount
	}

	accessToken, err := utils.Decrypt(acc.AccessToken, c.secretKey)
	if err != nil {
		return nil, "", fmt.Errorf("credential decrypt failed: %w", err)
	}

	token := &oauth2.Token{
		AccessToken: accessToken,
		Expiry:      acc.TokenExpiresAt,
	}
	if acc.RefreshToken != "" {
		if refreshToken, err := utils.Decrypt(acc.RefreshToken, c.secretKey); err == nil {
			token.RefreshToken = refreshToken
		}
	}
	if !token.Valid() && !token.Expiry.IsZero() && token.Expiry.Before(time.Now()) {
		return nil, "", fmt.Errorf("credential for %s expired at %s", p, token.Expiry.Format(time.RFC3339))
	}
	return token, acc.AccountHandle, nil
}

func bearer(token *oauth2.Token) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token.AccessToken}
}
