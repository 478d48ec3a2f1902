// Package trace delivers fire-and-forget progress events for dispatches.
// Emission failures must never fail the dispatch itself.
package trace

import (
	"log/slog"

	"github.com/google/uuid"
)

// Event names the dispatch lifecycle moments observers care about.
type Event string

const (
	EventQueued     Event = "queued"
	EventPublishing Event = "publishing"
	EventPublished  Event = "published"
	EventHeld       Event = "held"
	EventFailed     Event = "failed"
)

// Sink receives structured progress events.
type Sink interface {
	Emit(contentID string, event Event, detail string)
}

// SlogSink writes events as structured log lines.
type SlogSink struct{}

func NewSlogSink() *SlogSink {
	return &SlogSink{}
}

func (s *SlogSink) Emit(contentID string, event Event, detail string) {
	slog.Info("dispatch event",
		"event_id", uuid.NewString(),
		"content_id", contentID,
		"event", string(event),
		"detail", detail,
	)
}

// NopSink discards events; used in tests that don't assert on tracing.
type NopSink struct{}

func (NopSink) Emit(string, Event, string) {}
