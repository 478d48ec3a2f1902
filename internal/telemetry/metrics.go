package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	Published        = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dispatch_published_total", Help: "Content items published"}, []string{"platform"})
	Held             = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatch_held_total", Help: "Content items held by guardrails"})
	Failed           = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dispatch_failed_total", Help: "Jobs that reached terminal failure"}, []string{"platform"})
	Deferred         = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dispatch_deferred_total", Help: "Dispatches deferred by window or quota"}, []string{"reason"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatch_rate_limit_rejects_total", Help: "Transport calls refused by the rate limiter"})
	TransportRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "dispatch_transport_retries_total", Help: "Transient transport errors retried"})
	PendingJobs      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "dispatch_pending_jobs", Help: "Jobs waiting to become due"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			Published,
			Held,
			Failed,
			Deferred,
			RateLimitRejects,
			TransportRetries,
			PendingJobs,
		)
	})
	return promhttp.Handler()
}
