package rpc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the RPC server.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeConns     prometheus.Gauge
	reloadsTotal    *prometheus.CounterVec
	representRules  prometheus.Gauge
}

// NewMetrics registers the collectors on a private registry, so several
// servers can coexist in one process (tests do).
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "misud_rpc_requests_total",
			Help: "Total number of JSON-RPC requests by method and result code",
		},
		[]string{"method", "code"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "misud_rpc_request_duration_seconds",
			Help:    "Time spent handling JSON-RPC requests",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
		[]string{"method"},
	)
	m.activeConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "misud_rpc_active_connections",
		Help: "Number of open client connections",
	})
	m.reloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "misud_represent_reloads_total",
			Help: "Representation reloads by outcome",
		},
		[]string{"status"},
	)
	m.representRules = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "misud_represent_rules",
		Help: "Number of installed representation rules",
	})

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeConns,
		m.reloadsTotal,
		m.representRules,
	)
	return m
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) observe(method string, code int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.FormatInt(code, 10)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.activeConns.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.activeConns.Dec()
	}
}

// Reloaded records one representation reload and the rule count after it.
func (m *Metrics) Reloaded(err error, rules int) {
	if m == nil {
		return
	}
	if err != nil {
		m.reloadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.reloadsTotal.WithLabelValues("ok").Inc()
	m.representRules.Set(float64(rules))
}

// SetRules updates the rule gauge after a runtime change.
func (m *Metrics) SetRules(rules int) {
	if m != nil {
		m.representRules.Set(float64(rules))
	}
}
