// Package metrics exposes the Prometheus instrumentation for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service registers. All collectors live
// on a private registry so tests can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPInFlight        prometheus.Gauge

	TransitionsTotal     *prometheus.CounterVec
	EventsTriggeredTotal prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statecraft",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	m.HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "statecraft",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "statecraft",
		Subsystem: "http",
		Name:      "in_flight_requests",
		Help:      "Requests currently being served.",
	})

	m.TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "statecraft",
		Subsystem: "game",
		Name:      "transitions_total",
		Help:      "Game state transitions by action and outcome.",
	}, []string{"action", "outcome"})

	m.EventsTriggeredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "statecraft",
		Subsystem: "game",
		Name:      "events_triggered_total",
		Help:      "Random events entering play at end of turn.",
	})

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPInFlight,
		m.TransitionsTotal,
		m.EventsTriggeredTotal,
	)
	return m
}

// ObserveTransition records one game transition outcome. Nil-safe so
// services can run without instrumentation in tests.
func (m *Metrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveEventTriggered records a random event entering play.
func (m *Metrics) ObserveEventTriggered() {
	if m == nil {
		return
	}
	m.EventsTriggeredTotal.Inc()
}

// Handler serves the scrape endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
