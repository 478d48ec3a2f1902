package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot/dispatch/internal/gate"
	"github.com/postpilot/dispatch/internal/models"
	"github.com/postpilot/dispatch/internal/publisher"
	"github.com/postpilot/dispatch/internal/ratelimit"
	"github.com/postpilot/dispatch/internal/repository"
	"github.com/postpilot/dispatch/internal/worker"
)

type publishingDispatcher struct{}

func (publishingDispatcher) Dispatch(context.Context, *models.Job) publisher.Result {
	return publisher.Result{Disposition: publisher.DispositionPublished}
}

type stubHistory struct {
	records []*models.PostingHistory
}

func (s *stubHistory) Create(_ context.Context, ph *models.PostingHistory) (int64, error) {
	s.records = append(s.records, ph)
	return int64(len(s.records)), nil
}

func (s *stubHistory) ListByContentID(context.Context, string) ([]*models.PostingHistory, error) {
	return s.records, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	g, err := gate.New(0, 24, time.UTC, nil, 100)
	require.NoError(t, err)
	limiters := ratelimit.NewRegistry(nil, 100)
	w := worker.New(repository.NewMemoryJobStore(), publishingDispatcher{})

	h := NewJobHandler(w, g, limiters, &stubHistory{})

	app := fiber.New()
	app.Post("/api/jobs", h.Enqueue)
	app.Get("/api/jobs", h.ListJobs)
	app.Post("/api/jobs/:id/run", h.RunNow)
	app.Post("/api/jobs/:id/reschedule", h.Reschedule)
	app.Post("/api/jobs/:id/cancel", h.Cancel)
	app.Post("/api/tick", h.Tick)
	app.Get("/api/stats", h.GetUsageStats)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var decoded map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &decoded))
	}
	return resp, decoded
}

func TestEnqueueEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/jobs", map[string]string{
		"content_id": "c-1",
		"platform":   "telegram",
		"run_at":     time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "c-1", body["content_id"])
}

func TestEnqueueEndpointRejectsUnknownPlatform(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodPost, "/api/jobs", map[string]string{
		"content_id": "c-1",
		"platform":   "myspace",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "unsupported platform")
}

func TestEnqueueEndpointRejectsBadRunAt(t *testing.T) {
	app := newTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/jobs", map[string]string{
		"content_id": "c-1",
		"platform":   "x",
		"run_at":     "tomorrow",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelEndpoint(t *testing.T) {
	app := newTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/api/jobs", map[string]string{
		"content_id": "c-1",
		"platform":   "x",
		"run_at":     time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	resp, cancelled := doJSON(t, app, http.MethodPost, "/api/jobs/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", cancelled["status"])

	// A second cancel conflicts with the terminal state.
	resp, _ = doJSON(t, app, http.MethodPost, "/api/jobs/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/jobs/missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunNowEndpoint(t *testing.T) {
	app := newTestApp(t)

	_, body := doJSON(t, app, http.MethodPost, "/api/jobs", map[string]string{
		"content_id": "c-1",
		"platform":   "x",
		"run_at":     time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	resp, ran := doJSON(t, app, http.MethodPost, "/api/jobs/"+id+"/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", ran["status"])
}

func TestTickEndpoint(t *testing.T) {
	app := newTestApp(t)

	_, _ = doJSON(t, app, http.MethodPost, "/api/jobs", map[string]string{
		"content_id": "c-1",
		"platform":   "x",
	})

	resp, body := doJSON(t, app, http.MethodPost, "/api/tick", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["processed"])
}

func TestStatsEndpoint(t *testing.T) {
	app := newTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Contains(t, body, "telegram")
	entry, ok := body["telegram"].(map[string]any)
	require.True(t, ok)
	quota, ok := entry["quota"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(100), quota["limit"])
}
