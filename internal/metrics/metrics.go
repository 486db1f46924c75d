// Package metrics defines the Prometheus collectors for the drift service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drift_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drift_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "drift_api_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "drift_sse_clients",
			Help: "Current number of connected SSE clients",
		},
	)

	// Drift Lifecycle Metrics
	DriftsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drift_generated_total",
			Help: "Total number of drifts generated",
		},
		[]string{"type"},
	)

	DriftTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drift_transitions_total",
			Help: "Total number of drift lifecycle transitions",
		},
		[]string{"transition"}, // "accepted", "skipped", "completed"
	)

	// Assistant Metrics
	AssistantRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drift_assistant_requests_total",
			Help: "Total number of assistant answers by source",
		},
		[]string{"source"}, // "model", "fallback"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDriftGenerated counts a generated drift by type.
func RecordDriftGenerated(driftType string) {
	DriftsGenerated.WithLabelValues(driftType).Inc()
}

// RecordDriftTransition counts a lifecycle transition.
func RecordDriftTransition(transition string) {
	DriftTransitions.WithLabelValues(transition).Inc()
}

// RecordAssistantAnswer counts an assistant answer by source.
func RecordAssistantAnswer(source string) {
	AssistantRequests.WithLabelValues(source).Inc()
}
