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

	httpadapter "github.com/casestar/casestar-client/internal/adapters/http"
	"github.com/casestar/casestar-client/internal/bootstrap"
	"github.com/casestar/casestar-client/internal/config"
	"github.com/casestar/casestar-client/internal/observability/logging"
	"github.com/casestar/casestar-client/internal/observability/metrics"
)

const serviceName = "casestar-api"

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	logger := logging.New(os.Stdout, serviceName, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router, err := httpadapter.NewRouter(cfg, httpadapter.Dependencies{
		Processor: app.ProcessUC,
		Stages:    app.Stages,
		Settings:  app.SettingsUC,
		Queries:   app.QueryUC,
		Toasts:    app.Toasts,
		Metrics:   metrics.NewHTTPServerMetrics(serviceName, app.Registry),
	})
	if err != nil {
		logger.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: uploadWriteTimeout(cfg),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", server.Addr, "backend", cfg.BackendURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_failed", "error", err)
	}
	router.Wait()
	logger.Info("api_stopped")
}

// uploadWriteTimeout sizes writes for ?wait=true uploads, which block on the
// backend. Without a backend timeout the response has no deadline either.
func uploadWriteTimeout(cfg config.Config) time.Duration {
	if cfg.BackendTimeout() == 0 {
		return 0
	}
	return cfg.BackendTimeout() + 30*time.Second
}
