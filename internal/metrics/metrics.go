// Package metrics exposes Prometheus metrics for backend calls and
// comparison sessions.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statvalue"

// DefaultBackendBuckets are the latency buckets for backend requests, in seconds.
var DefaultBackendBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics holds every collector on a private registry. It implements
// backend.Recorder and session.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	BackendRequests *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	Normalizations  *prometheus.CounterVec
	Sessions        prometheus.Gauge
	SupersededTotal *prometheus.CounterVec

	windowsMu sync.Mutex
	windows   map[string]*LatencyWindow
}

// New registers the collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Backend requests by endpoint and HTTP status (0 for transport errors).",
		}, []string{"endpoint", "status"}),
		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request latency by endpoint.",
			Buckets:   DefaultBackendBuckets,
		}, []string{"endpoint"}),
		Normalizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalizations_total",
			Help:      "Completed comparisons by position.",
		}, []string{"position"}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory.",
		}),
		SupersededTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "superseded_responses_total",
			Help:      "Responses discarded because a newer request replaced them.",
		}, []string{"slot"}),
		windows: make(map[string]*LatencyWindow),
	}

	reg.MustRegister(
		m.BackendRequests,
		m.BackendDuration,
		m.Normalizations,
		m.Sessions,
		m.SupersededTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend call.
func (m *Metrics) ObserveRequest(endpoint string, status int, d time.Duration) {
	m.BackendRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.BackendDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	m.window(endpoint).Record(d)
}

// Normalized counts a completed comparison.
func (m *Metrics) Normalized(position string, _ int) {
	m.Normalizations.WithLabelValues(position).Inc()
}

// Superseded counts a response discarded in slot.
func (m *Metrics) Superseded(slot string) {
	m.SupersededTotal.WithLabelValues(slot).Inc()
}

// ActiveSessions sets the live session gauge.
func (m *Metrics) ActiveSessions(n int) {
	m.Sessions.Set(float64(n))
}

// Latency returns a latency summary per backend endpoint.
func (m *Metrics) Latency() map[string]LatencySummary {
	m.windowsMu.Lock()
	defer m.windowsMu.Unlock()

	out := make(map[string]LatencySummary, len(m.windows))
	for endpoint, w := range m.windows {
		out[endpoint] = w.Summary()
	}
	return out
}

func (m *Metrics) window(endpoint string) *LatencyWindow {
	m.windowsMu.Lock()
	defer m.windowsMu.Unlock()

	w, ok := m.windows[endpoint]
	if !ok {
		w = NewLatencyWindow(0)
		m.windows[endpoint] = w
	}
	return w
}
