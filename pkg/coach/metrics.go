package coach

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the coach.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	AICallsTotal     *prometheus.CounterVec
	AICallDuration   *prometheus.HistogramVec
	AIRetriesTotal   *prometheus.CounterVec
	SessionsActive   prometheus.Gauge
	SessionsTotal    *prometheus.CounterVec
	TransitionsTotal *prometheus.CounterVec
	ReportsSaved     prometheus.Counter
}

// NewMetrics creates and registers all collectors on a private registry
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "coach"
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		AICallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_calls_total",
			Help:      "AI calls by operation and outcome",
		}, []string{"op", "outcome"}),
		AICallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_call_duration_seconds",
			Help:      "AI call duration including retries",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"op"}),
		AIRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_retries_total",
			Help:      "Retries scheduled after rate-limit responses",
		}, []string{"op"}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Interview sessions currently connected",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished interview sessions by final state",
		}, []string{"state"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Interview state transitions",
		}, []string{"from", "to"}),
		ReportsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_saved_total",
			Help:      "Feedback reports persisted",
		}),
	}

	registry.MustRegister(
		m.AICallsTotal,
		m.AICallDuration,
		m.AIRetriesTotal,
		m.SessionsActive,
		m.SessionsTotal,
		m.TransitionsTotal,
		m.ReportsSaved,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAICall(op string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case IsRateLimitError(err):
		outcome = "rate_limited"
	default:
		outcome = "error"
	}
	m.AICallsTotal.WithLabelValues(op, outcome).Inc()
	m.AICallDuration.WithLabelValues(op).Observe(took.Seconds())
}

// ObserveRetry matches RetryNotifyFunc
func (m *Metrics) ObserveRetry(op string, attempt int, delay time.Duration, err error) {
	if m == nil {
		return
	}
	m.AIRetriesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveTransition(from, to State) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from.String(), to.String()).Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionEnded(final State) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(final.String()).Inc()
}

func (m *Metrics) ReportSaved() {
	if m == nil {
		return
	}
	m.ReportsSaved.Inc()
}
