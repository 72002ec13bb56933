package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorMetrics counts every categorized error built by the application
type ErrorMetrics struct {
	reported *prometheus.CounterVec
}

// NewErrorMetrics creates the error counter and registers it
func NewErrorMetrics(registry prometheus.Registerer) (*ErrorMetrics, error) {
	m := &ErrorMetrics{
		reported: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "whispersubs_reported_errors_total",
				Help: "Categorized errors by component and category",
			},
			[]string{"component", "category"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register error metrics: %w", err)
	}
	return m, nil
}

// Observe counts one error
func (m *ErrorMetrics) Observe(component, category string) {
	m.reported.WithLabelValues(component, category).Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *ErrorMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.reported.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ErrorMetrics) Collect(ch chan<- prometheus.Metric) {
	m.reported.Collect(ch)
}
