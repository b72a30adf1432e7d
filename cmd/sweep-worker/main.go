package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-appointment-scheduling/internal/appointment"
	"github.com/hackgods/hospital-appointment-scheduling/internal/config"
	"github.com/hackgods/hospital-appointment-scheduling/internal/db"
	"github.com/hackgods/hospital-appointment-scheduling/internal/observability/metrics"
	"github.com/hackgods/hospital-appointment-scheduling/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Default()
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "sweep-worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.SweepInterval).Msg("sweep worker starting up")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("sweep worker stopped")
	}
	logger.Info().Msg("sweep worker exited")
}

func run(cfg config.Config, logger zerolog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres connection: %w", err)
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// The sweep only flips the completed flag, so it needs no schedule lock.
	svc, err := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		nil,
		cfg,
		appointment.WithLogger(logger),
		appointment.WithMetrics(metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		return fmt.Errorf("service init: %w", err)
	}

	metricsSrv := newMetricsServer(":"+cfg.MetricsPort, prometheus.DefaultGatherer)
	go func() {
		logger.Info().Str("addr", metricsSrv.Addr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}()

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping sweep worker")
			return nil
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

// newMetricsServer exposes the worker's collectors for scraping.
func newMetricsServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.Sweep(runCtx, start)
	if err != nil {
		logger.Error().Err(err).Int("completed", n).Msg("sweep run error")
		return
	}
	logger.Info().Int("completed", n).Dur("took", time.Since(start)).Msg("sweep run complete")
}
