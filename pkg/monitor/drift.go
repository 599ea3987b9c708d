package monitor

import "fmt"

// GetDriftReport compares a tool's day window against its week baseline.
// Requires at least MinWeeklySample calls in the week; returns an error when
// the samples are missing or too small to judge.
func (m *Monitor) GetDriftReport(tool, integrationID string) (*DriftReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPeriod, ok := m.metrics[metricsKey(tool, integrationID)]
	if !ok {
		return nil, fmt.Errorf("no metrics recorded for %s/%s", integrationID, tool)
	}
	day, hasDay := byPeriod[PeriodDay]
	week, hasWeek := byPeriod[PeriodWeek]
	if !hasDay || !hasWeek {
		return nil, fmt.Errorf("insufficient windows for %s/%s drift", integrationID, tool)
	}
	if week.TotalCalls < m.thresholds.MinWeeklySample {
		return nil, fmt.Errorf("weekly sample too small for %s/%s (%d calls)", integrationID, tool, week.TotalCalls)
	}

	report := &DriftReport{
		Tool:          tool,
		IntegrationID: integrationID,
		GeneratedAt:   m.now(),
	}

	daySuccess := 1 - day.ErrorRate()
	weekSuccess := 1 - week.ErrorRate()
	report.SuccessRateChange = daySuccess - weekSuccess

	if week.AvgDurationMs > 0 {
		report.DurationChange = (day.AvgDurationMs - week.AvgDurationMs) / week.AvgDurationMs
	}

	// Volume is judged against the daily share of the weekly total.
	expectedDaily := float64(week.TotalCalls) / 7
	if expectedDaily > 0 {
		report.VolumeChange = (float64(day.TotalCalls) - expectedDaily) / expectedDaily
	}

	for kind := range day.ErrorKinds {
		// The week window contains the day, so a kind confined to the day
		// shows identical counts in both.
		if week.ErrorKinds[kind] > day.ErrorKinds[kind] {
			continue
		}
		report.NewErrorKinds = append(report.NewErrorKinds, kind)
	}

	th := m.thresholds
	report.Significant = abs(report.SuccessRateChange) > th.DriftSuccessDelta ||
		abs(report.DurationChange) > th.DriftDurationDelta ||
		abs(report.VolumeChange) > th.DriftVolumeDelta ||
		len(report.NewErrorKinds) > 0

	return report, nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
