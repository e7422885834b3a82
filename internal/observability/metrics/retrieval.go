package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

// RetrievalMetrics implements ports.RetrievalObserver and records breaker
// transitions of the provider clients.
type RetrievalMetrics struct {
	service string

	outcomeTotal    *prometheus.CounterVec
	outcomeDuration *prometheus.HistogramVec
	aggregateConf   *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
	breakerTransits *prometheus.CounterVec
}

func newRetrievalMetrics(registry prometheus.Registerer, service string) *RetrievalMetrics {
	outcomeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "outcomes_total",
			Help:      "Per-domain retrieval outcomes by retrieval type.",
		},
		[]string{"service", "domain", "retrieval_type"},
	)
	outcomeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "domain_duration_seconds",
			Help:      "Per-domain retrieval duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"service", "domain"},
	)
	aggregateConf := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "aggregate_confidence",
			Help:      "Confidence of aggregated retrieval contexts.",
			Buckets:   []float64{0, 0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		},
		[]string{"service"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	breakerTransits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state transitions per operation and target state.",
		},
		[]string{"service", "operation", "state"},
	)

	registry.MustRegister(outcomeTotal, outcomeDuration, aggregateConf, breakerState, breakerTransits)

	return &RetrievalMetrics{
		service:         service,
		outcomeTotal:    outcomeTotal,
		outcomeDuration: outcomeDuration,
		aggregateConf:   aggregateConf,
		breakerState:    breakerState,
		breakerTransits: breakerTransits,
	}
}

func (m *RetrievalMetrics) ObserveOutcome(outcome domain.RetrievalOutcome, duration time.Duration) {
	m.outcomeTotal.WithLabelValues(m.service, string(outcome.Domain), string(outcome.Type)).Inc()
	m.outcomeDuration.WithLabelValues(m.service, string(outcome.Domain)).Observe(duration.Seconds())

	attrs := []any{
		"domain", outcome.Domain,
		"retrieval_type", outcome.Type,
		"confidence", outcome.Confidence,
		"results", len(outcome.Results),
		"duration_ms", duration.Milliseconds(),
	}
	if outcome.Type == domain.RetrievalError {
		slog.Warn("domain_retrieval", append(attrs, "error", outcome.Error)...)
		return
	}
	slog.Debug("domain_retrieval", attrs...)
}

func (m *RetrievalMetrics) ObserveAggregate(result domain.AggregatedContext) {
	m.aggregateConf.WithLabelValues(m.service).Observe(result.Confidence)
}

// ObserveBreakerState matches resilience.StateListener.
func (m *RetrievalMetrics) ObserveBreakerState(operation string, state gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(breakerStateValue(state))
	m.breakerTransits.WithLabelValues(m.service, operation, state.String()).Inc()
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
