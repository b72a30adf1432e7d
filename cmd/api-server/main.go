package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/hospital-appointment-scheduling/internal/api"
	"github.com/hackgods/hospital-appointment-scheduling/internal/appointment"
	"github.com/hackgods/hospital-appointment-scheduling/internal/config"
	"github.com/hackgods/hospital-appointment-scheduling/internal/db"
	"github.com/hackgods/hospital-appointment-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/hospital-appointment-scheduling/internal/redis"
	"github.com/hackgods/hospital-appointment-scheduling/pkg/logging"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.Default()
		fallback.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "api-server").Logger()
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("display_timezone", cfg.DisplayTimezone.String()).
		Str("version", version).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	// Connect Redis. Without it writes still go through, guarded only by the
	// exclusion constraint.
	var (
		rdb    *redis.Client
		locker redisclient.Locker = redisclient.LocalLocker{}
	)
	rdb, err = redisclient.NewClient(rootCtx, cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, schedule locks disabled")
		rdb = nil
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisScheduleLocker(rdb, cfg.LockTTL, cfg.LockWait)
		logger.Info().Msg("connected to Redis")
	}

	schedMetrics := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)

	svc, err := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		locker,
		cfg,
		appointment.WithLogger(logger),
		appointment.WithMetrics(schedMetrics),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("service init error")
	}

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Health:  api.NewHealthHandler(pgPool, rdb, cfg.Env, version),
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
			stop()
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("api-server stopped")
}
