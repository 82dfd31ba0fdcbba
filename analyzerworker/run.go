// Package analyzerworker runs the background side of the coach: periodic
// pattern analysis across active users and the notification policy sweep.
package analyzerworker

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/config"
	"github.com/arbor-coach/arbor/server/internal/events"
	"github.com/arbor-coach/arbor/server/internal/factory"
	"github.com/arbor-coach/arbor/server/internal/logger"
	"github.com/arbor-coach/arbor/server/internal/notify"
	"github.com/arbor-coach/arbor/server/internal/patterns"
	"github.com/arbor-coach/arbor/server/internal/services"
)

// Run starts the analyzer worker and blocks until shutdown or error.
func Run() error {
	log := logger.New("analyzer-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}

	analyzer := patterns.NewAnalyzer(st, log)
	observations := services.NewObservationService(st, analyzer, log)

	bus := events.NewBus(64)
	scheduler := notify.NewScheduler(st, bus, log)
	dispatcher := notify.NewDispatcher(bus, log)
	go dispatcher.Run(ctx)

	analyzeEvery := time.Duration(cfg.AnalyzerIntervalSeconds) * time.Second
	notifyEvery := time.Duration(cfg.NotifyIntervalSeconds) * time.Second

	log.Info().
		Dur("analyze_interval", analyzeEvery).
		Dur("notify_interval", notifyEvery).
		Int("parallelism", cfg.AnalyzerParallelism).
		Msg("analyzer worker starting")

	analyzeTicker := time.NewTicker(analyzeEvery)
	defer analyzeTicker.Stop()
	notifyTicker := time.NewTicker(notifyEvery)
	defer notifyTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("analyzer worker stopping")
			return nil
		case <-analyzeTicker.C:
			sweepAnalysis(ctx, observations, cfg.AnalyzerParallelism, log)
		case <-notifyTicker.C:
			if err := scheduler.RunOnce(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("notification sweep failed")
			}
		}
	}
}

func sweepAnalysis(ctx context.Context, svc *services.ObservationService, parallelism int, log zerolog.Logger) {
	start := time.Now()
	inserted, err := svc.AnalyzeAll(ctx, parallelism)
	if err != nil {
		log.Error().Stack().Err(err).Msg("analysis sweep failed")
		return
	}
	log.Info().Int("inserted", inserted).Dur("took", time.Since(start)).Msg("analysis sweep completed")
}
