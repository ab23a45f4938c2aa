package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MJE43/vision-guard-go/internal/session"
)

const metricsNamespace = "visionguard"

// Metrics holds the service collectors. It implements session.Observer so the
// session manager reports lifecycle changes directly.
type Metrics struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	sessionsActive   *prometheus.GaugeVec
	sessionsCreated  *prometheus.CounterVec
	sessionsDisposed *prometheus.CounterVec
	eventsDropped    *prometheus.CounterVec
	streams          prometheus.Gauge
	diagnoses        *prometheus.CounterVec
}

var _ session.Observer = (*Metrics)(nil)

// NewMetrics registers every collector on a fresh registry, along with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Structured error responses by type.",
		}, []string{"type", "category"}),
		sessionsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Live sessions by kind.",
		}, []string{"kind"}),
		sessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sessions",
			Name:      "created_total",
			Help:      "Sessions created by kind.",
		}, []string{"kind"}),
		sessionsDisposed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sessions",
			Name:      "disposed_total",
			Help:      "Sessions disposed by kind and reason.",
		}, []string{"kind", "reason"}),
		eventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "sessions",
			Name:      "events_dropped_total",
			Help:      "Change events dropped because a subscriber fell behind.",
		}, []string{"kind"}),
		streams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "sessions",
			Name:      "event_streams",
			Help:      "Open websocket event streams.",
		}),
		diagnoses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "diagnosis",
			Name:      "requests_total",
			Help:      "Diagnosis requests by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) SessionCreated(kind session.Kind) {
	m.sessionsCreated.WithLabelValues(string(kind)).Inc()
	m.sessionsActive.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) SessionDisposed(kind session.Kind, reason string) {
	m.sessionsDisposed.WithLabelValues(string(kind), reason).Inc()
	m.sessionsActive.WithLabelValues(string(kind)).Dec()
}

func (m *Metrics) EventDropped(kind session.Kind) {
	m.eventsDropped.WithLabelValues(string(kind)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
