// Package monitor records per-call outcome telemetry, rolls it up into
// per-period metrics with duration percentiles, and detects anomalies and
// drift by comparing short windows against longer baselines.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keshwara/gatekit/pkg/store"
)

// DefaultRetention bounds the raw record window per (tool, integration).
const DefaultRetention = 168 * time.Hour

// Monitor is the outcome monitor. Raw records are persisted and pruned
// inline on every write; metrics are recomputed from the surviving window.
type Monitor struct {
	mu         sync.Mutex
	st         store.Store
	retention  time.Duration
	thresholds Thresholds
	enabled    bool
	metrics    map[string]map[Period]*Metrics
	now        func() time.Time
}

// Options configures a Monitor. Zero values take defaults.
type Options struct {
	Retention  time.Duration
	Thresholds *Thresholds
}

// New creates a monitor persisting raw records to st.
func New(st store.Store, opts Options) *Monitor {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	th := DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}

	return &Monitor{
		st:         st,
		retention:  opts.Retention,
		thresholds: th,
		enabled:    true,
		metrics:    make(map[string]map[Period]*Metrics),
		now:        time.Now,
	}
}

// SetEnabled toggles outcome recording.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
	log.Info().Bool("enabled", enabled).Msg("Outcome monitoring toggled")
}

// Enabled reports whether recording is active.
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func metricsKey(tool, integrationID string) string {
	return tool + ":" + integrationID
}

func recordsKey(tool, integrationID string) string {
	return "records:" + tool + ":" + integrationID
}

// RecordOutcome appends a raw record, prunes entries older than the
// retention window, and recomputes metrics for every period whose filtered
// record set is non-empty.
func (m *Monitor) RecordOutcome(ctx context.Context, tool, integrationID string, success bool, duration time.Duration, errKind, errMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return nil
	}

	now := m.now()
	rec := OutcomeRecord{
		ID:            uuid.New().String(),
		Tool:          tool,
		IntegrationID: integrationID,
		Timestamp:     now,
		Success:       success,
		DurationMs:    duration.Milliseconds(),
		ErrorKind:     errKind,
		ErrorMessage:  errMessage,
	}

	key := recordsKey(tool, integrationID)
	var records []OutcomeRecord
	if _, err := store.GetJSON(ctx, m.st, key, &records); err != nil {
		return fmt.Errorf("failed to load outcome records: %w", err)
	}

	records = append(records, rec)
	cutoff := now.Add(-m.retention)
	kept := records[:0]
	for _, r := range records {
		if r.Timestamp.After(cutoff) {
			kept = append(kept, r)
		}
	}
	records = kept

	if err := store.SetJSON(ctx, m.st, key, records); err != nil {
		return fmt.Errorf("failed to persist outcome records: %w", err)
	}

	m.recomputeLocked(tool, integrationID, records, now)
	return nil
}

// recomputeLocked rebuilds the per-period metrics from the raw window.
// Caller holds m.mu.
func (m *Monitor) recomputeLocked(tool, integrationID string, records []OutcomeRecord, now time.Time) {
	byPeriod, ok := m.metrics[metricsKey(tool, integrationID)]
	if !ok {
		byPeriod = make(map[Period]*Metrics)
		m.metrics[metricsKey(tool, integrationID)] = byPeriod
	}

	for _, period := range periods {
		cutoff := now.Add(-period.duration())
		var filtered []OutcomeRecord
		for _, r := range records {
			if r.Timestamp.After(cutoff) {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) == 0 {
			continue
		}
		byPeriod[period] = computeMetrics(tool, integrationID, period, filtered)
	}
}

func computeMetrics(tool, integrationID string, period Period, records []OutcomeRecord) *Metrics {
	met := &Metrics{
		Tool:          tool,
		IntegrationID: integrationID,
		Period:        period,
		TotalCalls:    len(records),
		ErrorKinds:    make(map[string]int),
	}

	durations := make([]int64, 0, len(records))
	var sum int64
	for _, r := range records {
		durations = append(durations, r.DurationMs)
		sum += r.DurationMs

		ts := r.Timestamp
		if r.Success {
			met.SuccessCount++
			if met.LastSuccess == nil || ts.After(*met.LastSuccess) {
				t := ts
				met.LastSuccess = &t
			}
		} else {
			met.FailureCount++
			if r.ErrorKind != "" {
				met.ErrorKinds[r.ErrorKind]++
			}
			if met.LastFailure == nil || ts.After(*met.LastFailure) {
				t := ts
				met.LastFailure = &t
			}
		}
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	met.MinDurationMs = durations[0]
	met.MaxDurationMs = durations[len(durations)-1]
	met.AvgDurationMs = float64(sum) / float64(len(durations))
	met.P50DurationMs = percentile(durations, 50)
	met.P95DurationMs = percentile(durations, 95)
	met.P99DurationMs = percentile(durations, 99)

	return met
}

// percentile uses nearest-rank on a sorted sample:
// sorted[max(0, ceil(p/100*n)-1)].
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// Metrics returns the rollup for one (tool, integration, period).
func (m *Monitor) Metrics(tool, integrationID string, period Period) (*Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byPeriod, ok := m.metrics[metricsKey(tool, integrationID)]
	if !ok {
		return nil, false
	}
	met, ok := byPeriod[period]
	return met, ok
}

// AllMetrics returns every rollup, for the command surface.
func (m *Monitor) AllMetrics() []*Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Metrics
	for _, byPeriod := range m.metrics {
		for _, met := range byPeriod {
			out = append(out, met)
		}
	}
	return out
}
