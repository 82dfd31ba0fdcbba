// Package coachservice wires the coach HTTP service: config, store, model
// provider, engine, and the router, with health-gated startup and graceful
// shutdown.
package coachservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/arbor-coach/arbor/server/internal/api"
	"github.com/arbor-coach/arbor/server/internal/auth"
	"github.com/arbor-coach/arbor/server/internal/config"
	"github.com/arbor-coach/arbor/server/internal/engine"
	"github.com/arbor-coach/arbor/server/internal/factory"
	"github.com/arbor-coach/arbor/server/internal/health"
	"github.com/arbor-coach/arbor/server/internal/localstate"
	"github.com/arbor-coach/arbor/server/internal/logger"
	"github.com/arbor-coach/arbor/server/internal/patterns"
	"github.com/arbor-coach/arbor/server/internal/services"
	"github.com/arbor-coach/arbor/server/internal/store"
	"github.com/arbor-coach/arbor/server/internal/tools"
)

// Run starts the coach service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("coach-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Str("llm_model", cfg.LLMModel).
		Msg("Coach service starting")

	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}

	if cfg.BuildTarget == "local" {
		if err := localstate.EnsureDevUser(ctx, st); err != nil {
			log.Error().Stack().Err(err).Msg("dev user bootstrap failed")
			return err
		}
	}

	svcHealth, checkers := startHealthCheckers(ctx, cfg, log, st)
	router := buildRouter(st, cfg, log, checkers)

	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// buildRouter wires the engine stack and HTTP routes.
func buildRouter(st store.Store, cfg *config.Config, log zerolog.Logger, checkers []health.HealthChecker) http.Handler {
	provider := factory.NewLLMProvider(cfg, log)

	registry := tools.NewRegistry(st)
	executor := tools.NewExecutor(registry, log)
	assembler := engine.NewAssembler(st, log)
	orchestrator := engine.NewOrchestrator(provider, registry, executor, assembler, cfg.MaxToolIterations, log)
	summarizer := engine.NewSummarizer(st, provider, cfg.SummaryTriggerCount, cfg.SummaryRetainCount, log)
	analyzer := patterns.NewAnalyzer(st, log)

	return api.NewRouter(api.Deps{
		Authorizer:    auth.NewMockAuthorizer(),
		Users:         services.NewUserService(st),
		Conversations: services.NewConversationService(st, orchestrator, summarizer, log),
		Observations:  services.NewObservationService(st, analyzer, log),
		Workspace:     services.NewWorkspaceService(st),
		Checkers:      checkers,
	})
}

// startHealthCheckers starts the store checker and the service aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) (*health.ServiceHealthChecker, []health.HealthChecker) {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)
	checkers := []health.HealthChecker{storeChecker}

	svcHealth := health.NewServiceHealthChecker(log, checkers...)
	go svcHealth.Start(ctx, interval)
	return svcHealth, checkers
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeoutSeconds := cfg.HealthIntervalSeconds * 2
	if timeoutSeconds < 60 {
		timeoutSeconds = 60
	}
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
