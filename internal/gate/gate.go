package gate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/postpilot/dispatch/internal/platform"
)

var (
	ErrInvalidWindow = errors.New("gate: window hours must satisfy 0 <= start < end <= 24")
	ErrNilLocation   = errors.New("gate: location must not be nil")
)

const (
	ReasonOutsideWindow = "outside posting window"
	ReasonQuotaExceeded = "daily quota exceeded"
)

// Decision is the gate's verdict for one dispatch.
type Decision struct {
	Admitted bool
	Reason   string
	// NextEligible hints when a deferred dispatch should be retried. Zero for
	// admitted dispatches.
	NextEligible time.Time
}

// Usage reports daily quota consumption for one platform.
type Usage struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

type quotaState struct {
	usedToday     int
	lastResetDate string
}

// Gate owns the posting-hour window and the per-platform daily counters.
// Counters reset when the wall-clock date string changes; no timer is
// involved, so the reset survives process restarts driven by the store.
type Gate struct {
	mu          sync.Mutex
	startHour   int
	endHour     int
	loc         *time.Location
	dailyLimits map[platform.Platform]int
	quotas      map[platform.Platform]*quotaState
}

// New builds a gate admitting dispatches in [startHour, endHour) local to loc.
// Platforms absent from limits get defaultLimit.
func New(startHour, endHour int, loc *time.Location, limits map[platform.Platform]int, defaultLimit int) (*Gate, error) {
	if loc == nil {
		return nil, ErrNilLocation
	}
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil, ErrInvalidWindow
	}

	dailyLimits := make(map[platform.Platform]int, len(platform.All()))
	quotas := make(map[platform.Platform]*quotaState, len(platform.All()))
	for _, p := range platform.All() {
		limit, ok := limits[p]
		if !ok {
			limit = defaultLimit
		}
		dailyLimits[p] = limit
		quotas[p] = &quotaState{}
	}

	return &Gate{
		startHour:   startHour,
		endHour:     endHour,
		loc:         loc,
		dailyLimits: dailyLimits,
		quotas:      quotas,
	}, nil
}

// Admit decides whether a dispatch for p may proceed at now. A deferred
// decision carries the reason and the next eligible time; it never consumes
// quota.
func (g *Gate) Admit(p platform.Platform, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	local := now.In(g.loc)
	if local.Hour() < g.startHour || local.Hour() >= g.endHour {
		return Decision{
			Reason:       ReasonOutsideWindow,
			NextEligible: g.nextWindowOpen(local),
		}
	}

	q := g.quota(p, local)
	if q.usedToday >= g.dailyLimits[p] {
		// Quota frees up at the next local midnight, inside the window.
		return Decision{
			Reason:       ReasonQuotaExceeded,
			NextEligible: g.nextWindowOpen(g.endOfDay(local)),
		}
	}

	return Decision{Admitted: true}
}

// RecordPublish counts one effective publish against p's daily quota. It is
// called exactly once per successful dispatch, never per retry attempt.
func (g *Gate) RecordPublish(p platform.Platform, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quota(p, now.In(g.loc)).usedToday++
}

// UsageFor reports the daily counters for p at now.
func (g *Gate) UsageFor(p platform.Platform, now time.Time) Usage {
	g.mu.Lock()
	defer g.mu.Unlock()

	q := g.quota(p, now.In(g.loc))
	limit := g.dailyLimits[p]
	remaining := limit - q.usedToday
	if remaining < 0 {
		remaining = 0
	}
	return Usage{Used: q.usedToday, Limit: limit, Remaining: remaining}
}

// quota returns p's counter, zeroing it first if the local date has changed.
func (g *Gate) quota(p platform.Platform, local time.Time) *quotaState {
	q := g.quotas[p]
	date := local.Format("2006-01-02")
	if q.lastResetDate != date {
		q.usedToday = 0
		q.lastResetDate = date
	}
	return q
}

// nextWindowOpen returns the first instant at or after local when the posting
// window is open.
func (g *Gate) nextWindowOpen(local time.Time) time.Time {
	year, month, day := local.Date()
	open := time.Date(year, month, day, g.startHour, 0, 0, 0, g.loc)
	if local.Hour() < g.startHour {
		return open
	}
	return open.Add(24 * time.Hour)
}

func (g *Gate) endOfDay(local time.Time) time.Time {
	year, month, day := local.Date()
	return time.Date(year, month, day, 23, 59, 59, 0, g.loc)
}

// Deferred formats a human-readable deferral for job surfacing.
func (d Decision) Deferred() string {
	if d.Admitted {
		return ""
	}
	return fmt.Sprintf("%s (next eligible %s)", d.Reason, d.NextEligible.Format(time.RFC3339))
}
