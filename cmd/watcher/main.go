package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/casestar/casestar-client/internal/adapters/cli"
	"github.com/casestar/casestar-client/internal/bootstrap"
	"github.com/casestar/casestar-client/internal/config"
	"github.com/casestar/casestar-client/internal/observability/logging"
	"github.com/casestar/casestar-client/internal/observability/metrics"
)

const serviceName = "casestar-watcher"

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	logger := logging.New(os.Stderr, serviceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue, err := bootstrap.NewEventQueue(cfg)
	if err != nil {
		logger.Error("nats_connect_failed", "url", cfg.NATSURL, "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	pipelineMetrics := metrics.NewPipelineMetrics(serviceName, prometheus.NewRegistry())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WatcherMetricsPort,
		Handler:           pipelineMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("watcher_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("watcher_metrics_server_failed", "error", err)
		}
	}()

	renderer := cli.NewRenderer(os.Stdout, os.Getenv("NO_COLOR") != "", true)
	logger.Info("watcher_subscribed", "subject", cfg.NATSSubject)
	if err := cli.Follow(ctx, queue, renderer, pipelineMetrics); err != nil {
		logger.Error("watcher_subscribe_failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("watcher_metrics_shutdown_failed", "error", err)
	}
}
