// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cognigate"

// LatencyBuckets covers sub-millisecond cache hits through multi-minute
// reasoning sessions.
var LatencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1, 2.5, 5, 10, 30, 60, 120, 300,
}

var (
	// RequestsTotal counts data-plane requests by route and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total HTTP requests handled",
		},
		[]string{"route", "alias", "status_code"},
	)

	// RequestLatency tracks end-to-end request latency.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "End-to-end request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"route", "alias"},
	)

	// UpstreamAttempts counts upstream calls by provider and outcome
	// (success, permanent, transient, content, error).
	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream provider attempts by outcome",
		},
		[]string{"provider", "outcome"},
	)

	// CredentialPool tracks pool sizes per provider and state.
	CredentialPool = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credential_pool_size",
			Help:      "Credential pool size by provider and state",
		},
		[]string{"provider", "state"},
	)

	// CacheEvents counts cache lookups by result (hit, miss).
	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Response cache lookups by result",
		},
		[]string{"result"},
	)

	// SessionsActive gauges reasoning sessions currently owned by a
	// worker.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reasoning_sessions_active",
			Help:      "Reasoning sessions currently being processed",
		},
	)

	// SessionSteps observes how many loop steps finished sessions took.
	SessionSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoning_session_steps",
			Help:      "Steps taken per completed reasoning session",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 12, 16},
		},
	)

	// QueueDepth gauges waiting reasoning tasks.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "task_queue_depth",
			Help:      "Reasoning tasks waiting in the queue",
		},
	)
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one finished request.
func ObserveRequest(route, alias string, status int, started time.Time) {
	RequestsTotal.WithLabelValues(route, alias, strconv.Itoa(status)).Inc()
	RequestLatency.WithLabelValues(route, alias).Observe(time.Since(started).Seconds())
}
