// Package metrics provides Prometheus metrics for the proxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the proxy.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec

	SessionsTotal *prometheus.CounterVec
	RelayBytes    *prometheus.CounterVec
}

// Session outcome label values.
const (
	OutcomeCommitted = "committed"
)

// Relay leg label values.
const (
	LegRequest  = "request"
	LegResponse = "response"
)

// New creates a Metrics instance with a custom registry and all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passthrough_proxy_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "route"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passthrough_proxy_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "route"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "passthrough_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passthrough_proxy_upstream_request_duration_seconds",
			Help:    "Time from dispatch to backend response headers in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passthrough_proxy_upstream_responses_total",
			Help: "Total backend responses by method and status code.",
		}, []string{"method", "status_code"}),

		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passthrough_proxy_sessions_total",
			Help: "Completed proxy sessions by outcome.",
		}, []string{"outcome"}),

		RelayBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passthrough_proxy_relay_bytes_total",
			Help: "Body bytes relayed by leg.",
		}, []string{"leg"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.SessionsTotal,
		m.RelayBytes,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// internalRoutes lists the proxy's own endpoints; everything else is relayed.
var internalRoutes = map[string]bool{"/healthz": true, "/proxy/status": true}

// NormalizeRoute returns a bounded route label: the path itself for the proxy's
// own endpoints and metricsPath, "proxy" for relayed traffic.
func NormalizeRoute(path, metricsPath string) string {
	if internalRoutes[path] || (metricsPath != "" && path == metricsPath) {
		return path
	}
	return "proxy"
}
