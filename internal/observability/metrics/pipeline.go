package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casestar/casestar-client/internal/core/domain"
)

// PipelineMetrics observes stage transitions, backend calls and breaker
// state. It plugs into the stage machine as an observer and into the backend
// client as a request observer.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	stageTransitions *prometheus.CounterVec
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	runsInFlight     prometheus.Gauge
	backendTotal     *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
	breakerState     *prometheus.GaugeVec

	mu        sync.Mutex
	runStart  time.Time
	runActive bool
}

func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	stageTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_transitions_total",
			Help:      "Total stage transitions by target stage.",
		},
		[]string{"service", "stage"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total finished pipeline runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration from upload start to completion or failure.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of pipeline runs currently in flight.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	backendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total backend calls by endpoint and outcome.",
		},
		[]string{"service", "endpoint", "outcome"},
	)
	backendDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(stageTransitions, runsTotal, runDuration, runsInFlight, backendTotal, backendDuration, breakerState)

	return &PipelineMetrics{
		registry:         registry,
		service:          service,
		stageTransitions: stageTransitions,
		runsTotal:        runsTotal,
		runDuration:      runDuration,
		runsInFlight:     runsInFlight,
		backendTotal:     backendTotal,
		backendDuration:  backendDuration,
		breakerState:     breakerState,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) OnStage(_ context.Context, event domain.StageEvent) {
	m.stageTransitions.WithLabelValues(m.service, string(event.Stage)).Inc()

	at := event.At
	if at.IsZero() {
		at = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch event.Stage {
	case domain.StageUploading:
		m.runStart = at
		m.runActive = true
		m.runsInFlight.Inc()
	case domain.StageComplete:
		m.finishRunLocked("success", at)
	case domain.StageError:
		m.finishRunLocked("error", at)
	}
}

func (m *PipelineMetrics) finishRunLocked(status string, at time.Time) {
	if !m.runActive {
		return
	}
	m.runActive = false
	m.runsInFlight.Dec()
	m.runsTotal.WithLabelValues(m.service, status).Inc()
	if d := at.Sub(m.runStart); d >= 0 {
		m.runDuration.WithLabelValues(m.service, status).Observe(d.Seconds())
	}
}

func (m *PipelineMetrics) ObserveBackendRequest(endpoint, outcome string, duration time.Duration) {
	m.backendTotal.WithLabelValues(m.service, endpoint, outcome).Inc()
	m.backendDuration.WithLabelValues(m.service, endpoint).Observe(duration.Seconds())
}

// ObserveBreakerState matches resilience.Config.OnStateChange.
func (m *PipelineMetrics) ObserveBreakerState(operation, _ string, to string) {
	value := 0.0
	switch to {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
