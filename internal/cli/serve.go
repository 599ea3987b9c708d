package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keshwara/gatekit/internal/config"
	"github.com/keshwara/gatekit/internal/logger"
	"github.com/keshwara/gatekit/internal/metrics"
	"github.com/keshwara/gatekit/internal/observability"
	"github.com/keshwara/gatekit/pkg/approval"
	"github.com/keshwara/gatekit/pkg/commands"
	"github.com/keshwara/gatekit/pkg/monitor"
	"github.com/keshwara/gatekit/pkg/pipeline"
	"github.com/keshwara/gatekit/pkg/ratelimit"
	"github.com/keshwara/gatekit/pkg/registry"
	"github.com/keshwara/gatekit/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the governance service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := store.NewSQLiteStore(filepath.Join(cfg.DataDir, "gatekit.db"))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	audit, err := observability.NewFileAuditLogger(cfg.Logging.AuditFile)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer audit.Close()

	prom := metrics.New()

	reg := registry.New(db.Namespace("registry"), registry.Options{
		HotThreshold: cfg.Registry.HotThreshold,
		MaxHotTools:  cfg.Registry.MaxHotTools,
		MinHotTools:  cfg.Registry.MinHotTools,
	})

	limiter := ratelimit.New(db.Namespace("ratelimit"), ratelimit.Limits{
		PerMinute:       cfg.RateLimit.PerMinute,
		PerHour:         cfg.RateLimit.PerHour,
		PerDay:          cfg.RateLimit.PerDay,
		CooldownSeconds: cfg.RateLimit.CooldownSeconds,
	})
	for tool, o := range cfg.RateLimit.Overrides {
		limiter.SetOverride(tool, ratelimit.Limits{
			PerMinute:       o.PerMinute,
			PerHour:         o.PerHour,
			PerDay:          o.PerDay,
			CooldownSeconds: o.CooldownSeconds,
		})
	}

	gates := approval.NewManager(db.Namespace("approvals"), audit, approval.Options{
		Policy: &approval.Policy{
			ToolSubstrings: cfg.Approval.ToolSubstrings,
			IntegrationIDs: cfg.Approval.IntegrationIDs,
			Patterns:       cfg.Approval.Patterns,
		},
		ExpirationMinutes: cfg.Approval.ExpirationMinutes,
	})

	sweeper := approval.NewSweeper(gates, time.Duration(cfg.Approval.SweepIntervalMinutes)*time.Minute)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start approval sweeper: %w", err)
	}
	defer sweeper.Stop()

	th := monitor.DefaultThresholds()
	th.ErrorRateDelta = cfg.Monitor.ErrorRateDelta
	th.HighErrorRate = cfg.Monitor.HighErrorRate
	th.MediumErrorRate = cfg.Monitor.MediumErrRate
	th.LatencyFactor = cfg.Monitor.LatencyFactor
	th.LatencyHighFactor = cfg.Monitor.LatencyHigh

	mon := monitor.New(db.Namespace("monitor"), monitor.Options{
		Retention:  cfg.Retention(),
		Thresholds: &th,
	})
	mon.SetEnabled(cfg.Monitor.Enabled)

	detector := monitor.NewDetector(mon, time.Duration(cfg.Monitor.DetectMinutes)*time.Minute, func(a monitor.Anomaly) {
		prom.AnomaliesDetectedTotal.WithLabelValues(string(a.Kind)).Inc()
	})
	if err := detector.Start(); err != nil {
		return fmt.Errorf("failed to start anomaly detector: %w", err)
	}
	defer detector.Stop()

	pipe := pipeline.New(reg, limiter, gates, mon, audit, prom)
	svc := commands.NewService(reg, limiter, gates, mon)

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", prom.Handler())
			registerAdminRoutes(mux, svc, pipe, prom)
			log.Info().Str("listen", cfg.Metrics.Listen).Msg("Metrics endpoint listening")
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				log.Error().Err(err).Msg("Metrics endpoint failed")
			}
		}()
	}

	log.Info().Msg("Gatekit service started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Gatekit service shutting down")
	return nil
}
