package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/casestar/casestar-client/internal/config"
	"github.com/casestar/casestar-client/internal/core/ports"
	"github.com/casestar/casestar-client/internal/core/usecase"
	"github.com/casestar/casestar-client/internal/infrastructure/backend/casestarapi"
	"github.com/casestar/casestar-client/internal/infrastructure/notify"
	"github.com/casestar/casestar-client/internal/infrastructure/queue/nats"
	"github.com/casestar/casestar-client/internal/infrastructure/repository/postgres"
	"github.com/casestar/casestar-client/internal/infrastructure/resilience"
	"github.com/casestar/casestar-client/internal/infrastructure/storage/localfs"
	"github.com/casestar/casestar-client/internal/observability/metrics"
)

type Options struct {
	// Service labels metrics; defaults to "casestar".
	Service string
	// Observers and Notifiers are attached in addition to the built-in ones.
	Observers []ports.StageObserver
	Notifiers []ports.Notifier
	// Backend overrides the HTTP client, mainly for tests.
	Backend ports.BackendAPI
	// Store overrides the configured settings store.
	Store ports.KeyValueStore
}

type App struct {
	Config config.Config

	Registry *prometheus.Registry
	Metrics  *metrics.PipelineMetrics
	Executor *resilience.Executor
	Stages   *usecase.StageMachine
	Toasts   *notify.Toaster
	Events   *nats.Queue

	ProcessUC  ports.DocumentProcessor
	QueryUC    ports.BackendQueryService
	SettingsUC ports.SettingsManager

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	service := opts.Service
	if service == "" {
		service = "casestar"
	}
	app := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
	}
	app.Metrics = metrics.NewPipelineMetrics(service, app.Registry)

	app.Executor = resilience.NewExecutor(BackendResilience(cfg, app.Metrics.ObserveBreakerState))

	backend := opts.Backend
	if backend == nil {
		backend = casestarapi.New(cfg.BackendURL, casestarapi.Options{
			Timeout:  cfg.BackendTimeout(),
			Executor: app.Executor,
			Observer: app.Metrics,
		})
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = app.openSettingsStore(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	observers := []ports.StageObserver{app.Metrics}
	if cfg.NATSEnabled {
		queue, err := NewEventQueue(cfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init stage events: %w", err)
		}
		app.Events = queue
		app.closeFns = append(app.closeFns, queue.Close)
		observers = append(observers, queue)
	}
	observers = append(observers, opts.Observers...)

	app.Stages = usecase.NewStageMachine(cfg.CompleteResetDelay(), observers...)
	app.closeFns = append(app.closeFns, app.Stages.Stop)
	app.Toasts = notify.NewToaster(cfg.ToastHistory, opts.Notifiers...)

	settingsUC, err := usecase.NewSettingsService(ctx, store)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	app.SettingsUC = settingsUC
	app.ProcessUC = usecase.NewProcessDocumentUseCase(backend, app.Stages, app.Toasts, usecase.PipelineOptions{
		ReadingDelay: cfg.ReadingDelay(),
	})
	app.QueryUC = usecase.NewQueryUseCase(backend, cfg.SearchDefaultLimit)
	return app, nil
}

func (a *App) openSettingsStore(ctx context.Context, cfg config.Config) (ports.KeyValueStore, error) {
	switch cfg.SettingsBackend {
	case "", "fs":
		store, err := localfs.New(cfg.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("init settings storage: %w", err)
		}
		return store, nil
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { closeDB(db) })
		repo := postgres.NewSettingsRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.SettingsBackend)
	}
}

// NewEventQueue connects to the stage event subject with its own breaker so
// a broker outage never shares state with backend calls.
func NewEventQueue(cfg config.Config) (*nats.Queue, error) {
	return nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.BrokerDefaults()),
	})
}

func BackendResilience(cfg config.Config, onStateChange func(operation, from, to string)) resilience.Config {
	return resilience.Config{
		RetryMaxAttempts:        cfg.BackendRetryMaxAttempts,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second,
		BreakerHalfOpenMaxCalls: 1,
		OnStateChange:           onStateChange,
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("postgres_close_failed", "error", err)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
