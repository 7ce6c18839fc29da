package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

// PipelineMetrics instruments intake runs and the resilience executor around model calls.
// It satisfies both ports.IntakeObserver and resilience.Observer.
type PipelineMetrics struct {
	service string

	annotationsTotal *prometheus.CounterVec
	decisionsTotal   *prometheus.CounterVec
	retriesTotal     *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	annotationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "annotations_total",
			Help:      "Annotation outcomes per intake run by annotation and status.",
		},
		[]string{"service", "annotation", "status"},
	)
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "decisions_total",
			Help:      "Diagnosis decisions by method.",
		},
		[]string{"service", "method"},
	)
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "retries_total",
			Help:      "Retried attempts per protected operation.",
		},
		[]string{"service", "operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(annotationsTotal, decisionsTotal, retriesTotal, breakerState)

	return &PipelineMetrics{
		service:          service,
		annotationsTotal: annotationsTotal,
		decisionsTotal:   decisionsTotal,
		retriesTotal:     retriesTotal,
		breakerState:     breakerState,
	}
}

func (m *PipelineMetrics) ObserveAnnotation(name string, degraded bool) {
	status := "ok"
	if degraded {
		status = "degraded"
	}
	m.annotationsTotal.WithLabelValues(m.service, name, status).Inc()
}

func (m *PipelineMetrics) ObserveDecision(method domain.DecisionMethod) {
	m.decisionsTotal.WithLabelValues(m.service, string(method)).Inc()
}

func (m *PipelineMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(m.service, operation).Inc()
}

func (m *PipelineMetrics) ObserveBreakerState(operation string, state string) {
	var value float64
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
