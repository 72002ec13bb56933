// Package observability serves Prometheus metrics and the live subtitle
// over HTTP. Sentry error telemetry lives in the errors package.
package observability

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Pipeline *metrics.PipelineMetrics
	MQTT     *metrics.MQTTMetrics
	HTTP     *metrics.HTTPMetrics
	Errors   *metrics.ErrorMetrics
}

// NewMetrics creates a registry with every collector registered, including
// the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	errorMetrics, err := metrics.NewErrorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create error metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Pipeline: pipelineMetrics,
		MQTT:     mqttMetrics,
		HTTP:     httpMetrics,
		Errors:   errorMetrics,
	}, nil
}

// InstallErrorHook counts every built error in m.Errors. Call once per
// process; hooks are global.
func (m *Metrics) InstallErrorHook() {
	errors.AddErrorHook(func(ee *errors.EnhancedError) {
		m.Errors.Observe(ee.GetComponent(), ee.GetCategory())
	})
}

// Handler returns the Prometheus exposition handler for the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
