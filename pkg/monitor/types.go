package monitor

import "time"

// Period is a rollup window for derived metrics.
type Period string

const (
	PeriodHour Period = "hour"
	PeriodDay  Period = "day"
	PeriodWeek Period = "week"
)

var periods = []Period{PeriodHour, PeriodDay, PeriodWeek}

func (p Period) duration() time.Duration {
	switch p {
	case PeriodHour:
		return time.Hour
	case PeriodDay:
		return 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// OutcomeRecord is one raw per-call fact.
type OutcomeRecord struct {
	ID            string    `json:"id"`
	Tool          string    `json:"tool"`
	IntegrationID string    `json:"integration_id"`
	Timestamp     time.Time `json:"timestamp"`
	Success       bool      `json:"success"`
	DurationMs    int64     `json:"duration_ms"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// Metrics is the periodic statistical rollup for one (tool, integration).
type Metrics struct {
	Tool          string         `json:"tool"`
	IntegrationID string         `json:"integration_id"`
	Period        Period         `json:"period"`
	TotalCalls    int            `json:"total_calls"`
	SuccessCount  int            `json:"success_count"`
	FailureCount  int            `json:"failure_count"`
	MinDurationMs int64          `json:"min_duration_ms"`
	AvgDurationMs float64        `json:"avg_duration_ms"`
	MaxDurationMs int64          `json:"max_duration_ms"`
	P50DurationMs int64          `json:"p50_duration_ms"`
	P95DurationMs int64          `json:"p95_duration_ms"`
	P99DurationMs int64          `json:"p99_duration_ms"`
	ErrorKinds    map[string]int `json:"error_kinds,omitempty"`
	LastSuccess   *time.Time     `json:"last_success,omitempty"`
	LastFailure   *time.Time     `json:"last_failure,omitempty"`
}

// ErrorRate returns failures as a fraction of total calls.
func (m *Metrics) ErrorRate() float64 {
	if m.TotalCalls == 0 {
		return 0
	}
	return float64(m.FailureCount) / float64(m.TotalCalls)
}

// AnomalyKind classifies a detected anomaly.
type AnomalyKind string

const (
	AnomalyErrorSpike   AnomalyKind = "error_spike"
	AnomalyLatencySpike AnomalyKind = "latency_spike"
	AnomalyVolumeDrop   AnomalyKind = "volume_drop"
	AnomalyNewErrorKind AnomalyKind = "new_error_kind"
)

// Severity grades an anomaly.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Anomaly is one detected deviation of the hourly window from the daily
// baseline.
type Anomaly struct {
	Tool          string      `json:"tool"`
	IntegrationID string      `json:"integration_id"`
	Kind          AnomalyKind `json:"kind"`
	Severity      Severity    `json:"severity"`
	Detail        string      `json:"detail"`
	DetectedAt    time.Time   `json:"detected_at"`
}

// DriftReport compares the day window against the week baseline.
type DriftReport struct {
	Tool              string    `json:"tool"`
	IntegrationID     string    `json:"integration_id"`
	SuccessRateChange float64   `json:"success_rate_change"`
	DurationChange    float64   `json:"duration_change"` // relative to week average
	VolumeChange      float64   `json:"volume_change"`   // relative to daily share of week
	NewErrorKinds     []string  `json:"new_error_kinds,omitempty"`
	Significant       bool      `json:"significant"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Thresholds are the tuning parameters for anomaly and drift detection. They
// are configuration, not contract: the defaults reflect operational
// experience rather than a derivation.
type Thresholds struct {
	ErrorRateDelta    float64 `json:"error_rate_delta"`
	MinHourlyFailures int     `json:"min_hourly_failures"`
	HighErrorRate     float64 `json:"high_error_rate"`
	MediumErrorRate   float64 `json:"medium_error_rate"`
	LatencyFactor     float64 `json:"latency_factor"`
	LatencyHighFactor float64 `json:"latency_high_factor"`
	MinDailySample    int     `json:"min_daily_sample"`
	MinExpectedHourly float64 `json:"min_expected_hourly"`
	VolumeDropRatio   float64 `json:"volume_drop_ratio"`
	MinNewErrorCount  int     `json:"min_new_error_count"`

	DriftSuccessDelta  float64 `json:"drift_success_delta"`
	DriftDurationDelta float64 `json:"drift_duration_delta"`
	DriftVolumeDelta   float64 `json:"drift_volume_delta"`
	MinWeeklySample    int     `json:"min_weekly_sample"`
}

// DefaultThresholds returns the stock tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ErrorRateDelta:    0.2,
		MinHourlyFailures: 3,
		HighErrorRate:     0.5,
		MediumErrorRate:   0.3,
		LatencyFactor:     2,
		LatencyHighFactor: 3,
		MinDailySample:    10,
		MinExpectedHourly: 5,
		VolumeDropRatio:   0.5,
		MinNewErrorCount:  2,

		DriftSuccessDelta:  0.1,
		DriftDurationDelta: 0.5,
		DriftVolumeDelta:   0.5,
		MinWeeklySample:    10,
	}
}
