package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper runs CleanupExpired on a fixed schedule. Lazy expiry on read stays
// the primary mechanism; the sweep catches gates nobody queries.
type Sweeper struct {
	manager  *Manager
	cron     *cron.Cron
	interval time.Duration
}

// NewSweeper creates a sweeper for m. interval <= 0 uses the default.
func NewSweeper(m *Manager, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		manager:  m,
		cron:     cron.New(),
		interval: interval,
	}
}

// Start schedules the sweep and begins running it.
func (s *Sweeper) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)
	_, err := s.cron.AddFunc(spec, func() {
		n, err := s.manager.CleanupExpired(context.Background())
		if err != nil {
			log.Warn().Err(err).Msg("Approval sweep failed")
			return
		}
		log.Debug().Int("expired", n).Msg("Approval sweep completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule approval sweep: %w", err)
	}

	s.cron.Start()
	log.Info().Dur("interval", s.interval).Msg("Approval sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Approval sweeper stopped")
}
