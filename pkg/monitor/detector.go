package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultDetectInterval is how often the background detection cycle runs.
const DefaultDetectInterval = time.Hour

// Detector runs DetectAnomalies on a fixed schedule and hands each finding to
// an optional callback.
type Detector struct {
	monitor   *Monitor
	cron      *cron.Cron
	interval  time.Duration
	onAnomaly func(Anomaly)
}

// NewDetector creates a detector for m. interval <= 0 uses the default;
// onAnomaly may be nil.
func NewDetector(m *Monitor, interval time.Duration, onAnomaly func(Anomaly)) *Detector {
	if interval <= 0 {
		interval = DefaultDetectInterval
	}
	return &Detector{
		monitor:   m,
		cron:      cron.New(),
		interval:  interval,
		onAnomaly: onAnomaly,
	}
}

// Start schedules the detection cycle and begins running it.
func (d *Detector) Start() error {
	spec := fmt.Sprintf("@every %s", d.interval)
	_, err := d.cron.AddFunc(spec, func() {
		anomalies, err := d.monitor.DetectAnomalies(context.Background())
		if err != nil {
			log.Warn().Err(err).Msg("Anomaly detection cycle failed")
			return
		}
		if d.onAnomaly != nil {
			for _, a := range anomalies {
				d.onAnomaly(a)
			}
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule anomaly detection: %w", err)
	}

	d.cron.Start()
	log.Info().Dur("interval", d.interval).Msg("Anomaly detector started")
	return nil
}

// Stop halts the schedule and waits for a running cycle to finish.
func (d *Detector) Stop() {
	ctx := d.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Anomaly detector stopped")
}
