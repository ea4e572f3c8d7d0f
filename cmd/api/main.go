package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hanapbahay/internal/api"
	"hanapbahay/internal/app"
	"hanapbahay/internal/config"
	"hanapbahay/internal/database"
	"hanapbahay/internal/logging"
	"hanapbahay/internal/metrics"
	"hanapbahay/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, baseLogger, release, err := app.LoadConfig()
	if err != nil {
		return err
	}
	defer release()
	logger := logging.Component(baseLogger, "api-main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, baseLogger)
	if err != nil {
		logger.Error().Err(err).Msg("init application")
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("close application")
		}
	}()

	httpServer, err := api.NewHTTPServer(cfg.API, a.HTTPDeps(), logging.Component(baseLogger, "http"))
	if err != nil {
		logger.Error().Err(err).Msg("create http server")
		return err
	}

	startMetrics(ctx, cfg, logger)
	startWorkers(ctx, a)

	return startServer(ctx, httpServer, cfg, logger)
}

func startWorkers(ctx context.Context, a *app.App) {
	if a.LedgerWorker != nil {
		go a.LedgerWorker.Start(ctx)
	}

	if a.Bot != nil {
		go a.Bot.Start(ctx)
	}

	scheduler := worker.NewPaymentScheduler(a.Payments, a.Config.Payments, logging.Component(a.Logger, "scheduler"))
	go scheduler.Start(ctx)

	if a.Config.Backup.Enabled {
		backupService := database.NewBackupService(a.DB, a.Config.Database.Path, a.Config.Backup, logging.Component(a.Logger, "backup"))
		go backupService.Start(ctx)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	timeout := cfg.API.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
