package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry holds the prometheus registry and the gate's instruments.
type Telemetry struct {
	Registry *prometheus.Registry

	// RequestsTotal counts gate requests by method, route pattern, and status.
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes gate request latency by route pattern.
	RequestDuration *prometheus.HistogramVec
}

// Package-level telemetry state, initialized by InitTelemetry before the
// gate starts serving. Health checks treat nil as "not initialized".
var (
	TelemetrySystem    *Telemetry
	PrometheusExporter http.Handler
)

// NewTelemetry builds a Telemetry with a fresh registry.
func NewTelemetry() (*Telemetry, error) {
	t := &Telemetry{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagehost_gate_requests_total",
				Help: "Total HTTP requests handled by the gate.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagehost_gate_request_duration_seconds",
				Help:    "Gate request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	if err := t.Registry.Register(t.RequestsTotal); err != nil {
		return nil, err
	}
	if err := t.Registry.Register(t.RequestDuration); err != nil {
		return nil, err
	}
	return t, nil
}

// Handler returns the /metrics handler for this telemetry's registry.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.Registry, promhttp.HandlerOpts{})
}

// InitTelemetry initializes the package-level telemetry state. Subsequent
// calls replace the previous instruments.
func InitTelemetry() error {
	t, err := NewTelemetry()
	if err != nil {
		return err
	}
	TelemetrySystem = t
	PrometheusExporter = t.Handler()
	return nil
}
