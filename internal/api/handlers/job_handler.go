package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/postpilot/dispatch/internal/gate"
	"github.com/postpilot/dispatch/internal/platform"
	"github.com/postpilot/dispatch/internal/ratelimit"
	"github.com/postpilot/dispatch/internal/repository"
	"github.com/postpilot/dispatch/internal/worker"
)

type JobHandler struct {
	w        *worker.Worker
	gate     *gate.Gate
	limiters *ratelimit.Registry
	history  repository.PostingHistoryRepository
}

func NewJobHandler(w *worker.Worker, g *gate.Gate, limiters *ratelimit.Registry, history repository.PostingHistoryRepository) *JobHandler {
	return &JobHandler{w: w, gate: g, limiters: limiters, history: history}
}

type enqueueRequest struct {
	ContentID string `json:"content_id"`
	Platform  string `json:"platform"`
	RunAt     string `json:"run_at"`
}

func (h *JobHandler) Enqueue(c *fiber.Ctx) error {
	var req enqueueRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	if req.ContentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content_id is required",
		})
	}

	p, err := platform.Parse(req.Platform)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var runAt time.Time
	if req.RunAt != "" {
		runAt, err = time.Parse(time.RFC3339, req.RunAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "run_at must be RFC3339",
			})
		}
	}

	job, err := h.w.Enqueue(c.Context(), req.ContentID, p, runAt)
	if err != nil {
		return jobError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(job)
}

func (h *JobHandler) ListJobs(c *fiber.Ctx) error {
	status := c.Query("status")
	limit := c.QueryInt("limit", 50)

	jobs, err := h.w.ListJobs(c.Context(), status, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list jobs",
		})
	}

	return c.Status(fiber.StatusOK).JSON(jobs)
}

func (h *JobHandler) RunNow(c *fiber.Ctx) error {
	job, err := h.w.RunNow(c.Context(), c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(job)
}

type rescheduleRequest struct {
	RunAt string `json:"run_at"`
}

func (h *JobHandler) Reschedule(c *fiber.Ctx) error {
	var req rescheduleRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	runAt, err := time.Parse(time.RFC3339, req.RunAt)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "run_at must be RFC3339",
		})
	}

	job, err := h.w.Reschedule(c.Context(), c.Params("id"), runAt)
	if err != nil {
		return jobError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(job)
}

func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	job, err := h.w.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return jobError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(job)
}

// Tick runs one queue pass on demand, in addition to the cron-driven passes.
func (h *JobHandler) Tick(c *fiber.Ctx) error {
	processed, err := h.w.Tick(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"processed": processed,
	})
}

type platformStats struct {
	Quota     gate.Usage `json:"quota"`
	RateUsed  int        `json:"rate_used"`
	RateLimit int        `json:"rate_limit"`
	ResetAt   time.Time  `json:"rate_reset_at"`
}

// GetUsageStats reports daily quota and hourly rate usage per platform.
func (h *JobHandler) GetUsageStats(c *fiber.Ctx) error {
	now := time.Now()
	stats := make(map[string]platformStats, len(platform.All()))
	for _, p := range platform.All() {
		used, budget, resetAt := h.limiters.For(p).Snapshot()
		stats[string(p)] = platformStats{
			Quota:     h.gate.UsageFor(p, now),
			RateUsed:  used,
			RateLimit: budget,
			ResetAt:   resetAt,
		}
	}
	return c.Status(fiber.StatusOK).JSON(stats)
}

// GetHistory lists posting history for a content item.
func (h *JobHandler) GetHistory(c *fiber.Ctx) error {
	contentID := c.Query("content_id")
	if contentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "content_id is required",
		})
	}

	records, err := h.history.ListByContentID(c.Context(), contentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list posting history",
		})
	}
	return c.Status(fiber.StatusOK).JSON(records)
}

func jobError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, worker.ErrJobNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, worker.ErrJobNotPending), errors.Is(err, worker.ErrInvalidRunAt):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	slog.Info(err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
