// Package monitoring exposes Prometheus metrics for outbound requests and the
// dashboard clock.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/mailcheck/internal/outcome"
)

const namespace = "mailcheck"

// Metrics records request outcomes. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	requests   *prometheus.CounterVec
	inFlight   *prometheus.GaugeVec
	latency    *prometheus.HistogramVec
	ignored    *prometheus.CounterVec
	clockTicks prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Outbound requests by service and outcome (succeeded or error kind).",
		}, []string{"service", "outcome"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Outbound requests currently pending, by service.",
		}, []string{"service"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from issuing a request to its outcome, by service.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_ignored_total",
			Help:      "Submissions dropped because a request was already pending.",
		}, []string{"service"}),
		clockTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dashboard_clock_ticks_total",
			Help:      "Clock updates applied to the dashboard.",
		}),
	}
	reg.MustRegister(m.requests, m.inFlight, m.latency, m.ignored, m.clockTicks)
	return m
}

// RequestStarted marks a request to service as pending.
func (m *Metrics) RequestStarted(service string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(service).Inc()
}

// RequestFinished records the outcome of a request started with
// RequestStarted. A nil cerr means success.
func (m *Metrics) RequestFinished(service string, cerr *outcome.ClassifiedError, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(service).Dec()
	m.latency.WithLabelValues(service).Observe(elapsed.Seconds())
	m.requests.WithLabelValues(service, outcomeLabel(cerr)).Inc()
}

// Rejected records a validation failure that never reached the network.
func (m *Metrics) Rejected(service string, cerr *outcome.ClassifiedError) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(service, outcomeLabel(cerr)).Inc()
}

// SubmissionIgnored records a submit dropped while a request was pending.
func (m *Metrics) SubmissionIgnored(service string) {
	if m == nil {
		return
	}
	m.ignored.WithLabelValues(service).Inc()
}

// ClockTick records one dashboard clock update.
func (m *Metrics) ClockTick() {
	if m == nil {
		return
	}
	m.clockTicks.Inc()
}

func outcomeLabel(cerr *outcome.ClassifiedError) string {
	if cerr == nil {
		return "succeeded"
	}
	return cerr.Kind.String()
}
