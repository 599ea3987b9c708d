// Package metrics exposes Prometheus instrumentation for the governance
// pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	ToolInvocationsTotal  *prometheus.CounterVec
	ToolInvocationSeconds *prometheus.HistogramVec

	RateLimitDenialsTotal  *prometheus.CounterVec
	ApprovalRequestsTotal  prometheus.Counter
	ApprovalDecisionsTotal *prometheus.CounterVec
	AnomaliesDetectedTotal *prometheus.CounterVec
}

// New creates and registers all metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_invocations_total",
				Help: "Total number of governed tool invocations",
			},
			[]string{"tool", "status"},
		),
		ToolInvocationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_invocation_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		RateLimitDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_denials_total",
				Help: "Total number of invocations denied by the rate limiter",
			},
			[]string{"tool"},
		),
		ApprovalRequestsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "approval_requests_total",
				Help: "Total number of approval gates opened",
			},
		),
		ApprovalDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "approval_decisions_total",
				Help: "Total number of approval gate decisions",
			},
			[]string{"status"},
		),
		AnomaliesDetectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "anomalies_detected_total",
				Help: "Total number of outcome anomalies detected",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.ToolInvocationsTotal,
		m.ToolInvocationSeconds,
		m.RateLimitDenialsTotal,
		m.ApprovalRequestsTotal,
		m.ApprovalDecisionsTotal,
		m.AnomaliesDetectedTotal,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
