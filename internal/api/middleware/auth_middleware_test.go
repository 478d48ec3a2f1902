package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/postpilot/dispatch/configs"
	"github.com/postpilot/dispatch/pkg/utils"
)

func newProtectedApp(secretKey string) *fiber.App {
	app := fiber.New()
	m := NewAuthMiddleware(&config.Config{SecretKey: secretKey})
	app.Use(m.AuthMiddleware())
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"service": c.Locals("service")})
	})
	return app
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	app := newProtectedApp("secret")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	app := newProtectedApp("secret")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	app := newProtectedApp("secret")

	token, err := utils.GenerateToken("secret", "content-service", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddlewareRejectsTokenSignedWithOtherKey(t *testing.T) {
	app := newProtectedApp("secret")

	token, err := utils.GenerateToken("other-secret", "content-service", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
