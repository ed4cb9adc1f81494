// Package observability exposes the Prometheus metrics of a running engine.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/audioroute/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Routing  *metrics.RoutingMetrics
	Host     *metrics.HostMetrics
}

// NewMetrics creates a registry with the routing and host collectors plus
// the Go runtime and process collectors.
func NewMetrics(session, backend string) (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	routing, err := metrics.NewRoutingMetrics(registry, session)
	if err != nil {
		return nil, fmt.Errorf("failed to create routing metrics: %w", err)
	}
	host, err := metrics.NewHostMetrics(registry, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create host metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Routing:  routing,
		Host:     host,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}
