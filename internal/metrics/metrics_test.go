package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Scrape(t *testing.T) {
	m := New()

	m.ToolInvocationsTotal.WithLabelValues("github_create_issue", "success").Inc()
	m.ToolInvocationSeconds.WithLabelValues("github_create_issue").Observe(0.12)
	m.RateLimitDenialsTotal.WithLabelValues("github_create_issue").Inc()
	m.ApprovalRequestsTotal.Inc()
	m.ApprovalDecisionsTotal.WithLabelValues("approved").Inc()
	m.AnomaliesDetectedTotal.WithLabelValues("error_spike").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `tool_invocations_total{status="success",tool="github_create_issue"} 1`)
	assert.Contains(t, body, `rate_limit_denials_total{tool="github_create_issue"} 1`)
	assert.Contains(t, body, `approval_requests_total 1`)
	assert.Contains(t, body, `approval_decisions_total{status="approved"} 1`)
	assert.Contains(t, body, `anomalies_detected_total{kind="error_spike"} 1`)
	assert.Contains(t, body, "tool_invocation_duration_seconds")
}

func TestMetrics_IsolatedRegistries(t *testing.T) {
	// Two instances register onto separate registries without colliding.
	a := New()
	b := New()
	assert.NotSame(t, a.Registry(), b.Registry())
}
