package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// injectMetrics seeds precomputed windows, bypassing raw record ingestion.
func injectMetrics(m *Monitor, tool, integ string, hour, day *Metrics) {
	hour.Tool, hour.IntegrationID, hour.Period = tool, integ, PeriodHour
	day.Tool, day.IntegrationID, day.Period = tool, integ, PeriodDay
	m.metrics[metricsKey(tool, integ)] = map[Period]*Metrics{
		PeriodHour: hour,
		PeriodDay:  day,
	}
}

func findAnomaly(anomalies []Anomaly, kind AnomalyKind) (Anomaly, bool) {
	for _, a := range anomalies {
		if a.Kind == kind {
			return a, true
		}
	}
	return Anomaly{}, false
}

func TestDetectAnomalies_ErrorSpike(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	// Daily baseline 5% errors; the last hour runs at 40% with 8 failures.
	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 20, SuccessCount: 12, FailureCount: 8, AvgDurationMs: 100},
		&Metrics{TotalCalls: 100, SuccessCount: 95, FailureCount: 5, AvgDurationMs: 100},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)

	spike, found := findAnomaly(anomalies, AnomalyErrorSpike)
	require.True(t, found)
	assert.Equal(t, SeverityMedium, spike.Severity, "a 0.4 rate sits between the medium and high cuts")
	assert.Equal(t, "tool_x", spike.Tool)
}

func TestDetectAnomalies_ErrorSpikeSeverityHigh(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 10, SuccessCount: 4, FailureCount: 6, AvgDurationMs: 100},
		&Metrics{TotalCalls: 100, SuccessCount: 95, FailureCount: 5, AvgDurationMs: 100},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)

	spike, found := findAnomaly(anomalies, AnomalyErrorSpike)
	require.True(t, found)
	assert.Equal(t, SeverityHigh, spike.Severity)
}

func TestDetectAnomalies_SmallDailySampleIgnored(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	// All failures, but under the minimum daily sample: too quiet to judge.
	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 9, FailureCount: 9, AvgDurationMs: 100},
		&Metrics{TotalCalls: 9, FailureCount: 9, AvgDurationMs: 100},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)
	assert.Empty(t, anomalies)
}

func TestDetectAnomalies_FewFailuresNoSpike(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	// A 50% hourly rate from only 2 failures stays below the absolute floor.
	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 4, SuccessCount: 2, FailureCount: 2, AvgDurationMs: 100},
		&Metrics{TotalCalls: 100, SuccessCount: 100, AvgDurationMs: 100},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)
	_, found := findAnomaly(anomalies, AnomalyErrorSpike)
	assert.False(t, found)
}

func TestDetectAnomalies_LatencySpike(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 10, SuccessCount: 10, AvgDurationMs: 250},
		&Metrics{TotalCalls: 100, SuccessCount: 100, AvgDurationMs: 100},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)
	spike, found := findAnomaly(anomalies, AnomalyLatencySpike)
	require.True(t, found)
	assert.Equal(t, SeverityMedium, spike.Severity)
}

func TestDetectAnomalies_LatencySpikeSeverityHigh(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 10, SuccessCount: 10, AvgDurationMs: 350},
		&Metrics{TotalCalls: 100, SuccessCount: 100, AvgDurationMs: 100},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)
	spike, found := findAnomaly(anomalies, AnomalyLatencySpike)
	require.True(t, found)
	assert.Equal(t, SeverityHigh, spike.Severity)
}

func TestDetectAnomalies_VolumeDrop(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	// 240 daily calls expect 10 per hour; 4 in the last hour is a drop.
	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 4, SuccessCount: 4, AvgDurationMs: 100},
		&Metrics{TotalCalls: 240, SuccessCount: 240, AvgDurationMs: 100},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)
	_, found := findAnomaly(anomalies, AnomalyVolumeDrop)
	assert.True(t, found)
}

func TestDetectAnomalies_QuietToolNoVolumeDrop(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	// An expectation under the floor never counts as a drop.
	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 0, AvgDurationMs: 100},
		&Metrics{TotalCalls: 100, SuccessCount: 100, AvgDurationMs: 100},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)
	_, found := findAnomaly(anomalies, AnomalyVolumeDrop)
	assert.False(t, found)
}

func TestDetectAnomalies_NewErrorKind(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	// Identical counts in both windows mean the kind only appeared this hour.
	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 10, SuccessCount: 8, FailureCount: 2, AvgDurationMs: 100,
			ErrorKinds: map[string]int{"quota_exceeded": 2}},
		&Metrics{TotalCalls: 100, SuccessCount: 98, FailureCount: 2, AvgDurationMs: 100,
			ErrorKinds: map[string]int{"quota_exceeded": 2}},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)
	a, found := findAnomaly(anomalies, AnomalyNewErrorKind)
	require.True(t, found)
	assert.Contains(t, a.Detail, "quota_exceeded")
}

func TestDetectAnomalies_KnownErrorKindIgnored(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	// The daily window saw the kind before this hour.
	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 10, SuccessCount: 8, FailureCount: 2, AvgDurationMs: 100,
			ErrorKinds: map[string]int{"timeout": 2}},
		&Metrics{TotalCalls: 100, SuccessCount: 90, FailureCount: 10, AvgDurationMs: 100,
			ErrorKinds: map[string]int{"timeout": 10}},
	)

	anomalies, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)
	_, found := findAnomaly(anomalies, AnomalyNewErrorKind)
	assert.False(t, found)
}

func TestLatestAnomalies_Snapshot(t *testing.T) {
	m, _ := newTestMonitor(t, Options{})
	ctx := context.Background()

	injectMetrics(m, "tool_x", "github",
		&Metrics{TotalCalls: 10, SuccessCount: 4, FailureCount: 6, AvgDurationMs: 100},
		&Metrics{TotalCalls: 100, SuccessCount: 95, FailureCount: 5, AvgDurationMs: 100},
	)

	detected, err := m.DetectAnomalies(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, detected)

	latest, err := m.LatestAnomalies(ctx)
	require.NoError(t, err)
	assert.Len(t, latest, len(detected))
	assert.Equal(t, detected[0].Kind, latest[0].Kind)
}
