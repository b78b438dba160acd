// Package metrics holds the Prometheus collectors exported on /metrics.
// All recording methods are safe on a nil *Metrics so tests and tools can
// run without a registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	AuthEvents           *prometheus.CounterVec
	TokensPurged         *prometheus.CounterVec
	RateLimited          *prometheus.CounterVec
	HTTPRequests         *prometheus.CounterVec
	WebsocketConnections prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_events_total",
				Help: "Authentication events by kind and outcome",
			},
			[]string{"event", "outcome"},
		),
		TokensPurged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_purged_total",
				Help: "Expired tokens removed by the cleanup sweep",
			},
			[]string{"kind"},
		),
		RateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		WebsocketConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_connections",
				Help: "Currently connected realtime sockets",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AuthEvents,
		m.TokensPurged,
		m.RateLimited,
		m.HTTPRequests,
		m.WebsocketConnections,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) AuthEvent(event string, outcome string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) Purged(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensPurged.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) Limited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(limiter).Inc()
}

func (m *Metrics) Request(method string, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) SocketOpened() {
	if m == nil {
		return
	}
	m.WebsocketConnections.Inc()
}

func (m *Metrics) SocketClosed() {
	if m == nil {
		return
	}
	m.WebsocketConnections.Dec()
}
