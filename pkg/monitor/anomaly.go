package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshwara/gatekit/pkg/store"
)

const latestAnomaliesKey = "anomalies:latest"

// DetectAnomalies compares each tool's hourly window against its daily
// baseline and returns every qualifying anomaly. The full set for the cycle
// is persisted as the latest snapshot.
func (m *Monitor) DetectAnomalies(ctx context.Context) ([]Anomaly, error) {
	m.mu.Lock()

	var anomalies []Anomaly
	now := m.now()
	for _, byPeriod := range m.metrics {
		hour, hasHour := byPeriod[PeriodHour]
		day, hasDay := byPeriod[PeriodDay]
		if !hasHour || !hasDay {
			continue
		}
		if day.TotalCalls < m.thresholds.MinDailySample {
			continue
		}
		anomalies = append(anomalies, m.detectForToolLocked(hour, day, now)...)
	}
	m.mu.Unlock()

	if err := store.SetJSON(ctx, m.st, latestAnomaliesKey, anomalies); err != nil {
		return nil, fmt.Errorf("failed to persist anomaly snapshot: %w", err)
	}

	if len(anomalies) > 0 {
		log.Warn().Int("count", len(anomalies)).Msg("Anomalies detected")
	}
	return anomalies, nil
}

// LatestAnomalies returns the snapshot persisted by the last detection cycle.
func (m *Monitor) LatestAnomalies(ctx context.Context) ([]Anomaly, error) {
	var anomalies []Anomaly
	if _, err := store.GetJSON(ctx, m.st, latestAnomaliesKey, &anomalies); err != nil {
		return nil, fmt.Errorf("failed to load anomaly snapshot: %w", err)
	}
	return anomalies, nil
}

func (m *Monitor) detectForToolLocked(hour, day *Metrics, now time.Time) []Anomaly {
	th := m.thresholds
	var out []Anomaly

	// Error spike: hourly error rate well above the daily baseline, with a
	// minimum absolute failure count so one bad call cannot trip it.
	hourRate := hour.ErrorRate()
	dayRate := day.ErrorRate()
	if hourRate-dayRate > th.ErrorRateDelta && hour.FailureCount >= th.MinHourlyFailures {
		severity := SeverityLow
		switch {
		case hourRate > th.HighErrorRate:
			severity = SeverityHigh
		case hourRate > th.MediumErrorRate:
			severity = SeverityMedium
		}
		out = append(out, Anomaly{
			Tool:          hour.Tool,
			IntegrationID: hour.IntegrationID,
			Kind:          AnomalyErrorSpike,
			Severity:      severity,
			Detail:        fmt.Sprintf("hourly error rate %.0f%% vs daily %.0f%%", hourRate*100, dayRate*100),
			DetectedAt:    now,
		})
	}

	// Latency spike: hourly average beyond a multiple of the daily average.
	if day.AvgDurationMs > 0 && hour.AvgDurationMs > th.LatencyFactor*day.AvgDurationMs {
		severity := SeverityMedium
		if hour.AvgDurationMs > th.LatencyHighFactor*day.AvgDurationMs {
			severity = SeverityHigh
		}
		out = append(out, Anomaly{
			Tool:          hour.Tool,
			IntegrationID: hour.IntegrationID,
			Kind:          AnomalyLatencySpike,
			Severity:      severity,
			Detail:        fmt.Sprintf("hourly avg %.0fms vs daily %.0fms", hour.AvgDurationMs, day.AvgDurationMs),
			DetectedAt:    now,
		})
	}

	// Volume drop: actual hourly volume under half the daily-rate
	// expectation, ignoring tools too quiet to judge.
	expected := float64(day.TotalCalls) / 24
	if expected > th.MinExpectedHourly && float64(hour.TotalCalls) < th.VolumeDropRatio*expected {
		out = append(out, Anomaly{
			Tool:          hour.Tool,
			IntegrationID: hour.IntegrationID,
			Kind:          AnomalyVolumeDrop,
			Severity:      SeverityMedium,
			Detail:        fmt.Sprintf("hourly volume %d vs expected %.1f", hour.TotalCalls, expected),
			DetectedAt:    now,
		})
	}

	// New error kind: repeated in the hour but unseen in the day baseline
	// outside it. The day window is a superset of the hour, so a day count
	// above the hour count means earlier occurrences exist.
	for kind, count := range hour.ErrorKinds {
		if count < th.MinNewErrorCount {
			continue
		}
		if day.ErrorKinds[kind] > count {
			continue
		}
		out = append(out, Anomaly{
			Tool:          hour.Tool,
			IntegrationID: hour.IntegrationID,
			Kind:          AnomalyNewErrorKind,
			Severity:      SeverityMedium,
			Detail:        fmt.Sprintf("error kind %q appeared %d times in the last hour", kind, count),
			DetectedAt:    now,
		})
	}

	return out
}
