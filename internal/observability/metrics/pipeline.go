package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics implements Recorder with Prometheus collectors
type PipelineMetrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	samples    *prometheus.CounterVec
	bufferFill prometheus.Gauge
	bufferCap  prometheus.Gauge
}

var _ Recorder = (*PipelineMetrics)(nil)

// NewPipelineMetrics creates the pipeline collectors and registers them
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whispersubs_operations_total",
			Help: "Pipeline operations by outcome",
		},
		[]string{"operation", "status"},
	)

	m.durations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whispersubs_operation_duration_seconds",
			Help:    "Pipeline operation latency",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
		[]string{"operation"},
	)

	m.errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whispersubs_errors_total",
			Help: "Errors by operation and category",
		},
		[]string{"operation", "category"},
	)

	m.samples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whispersubs_buffer_samples_total",
			Help: "Samples appended to, evicted from and extracted from the sample buffer",
		},
		[]string{"kind"},
	)

	m.bufferFill = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "whispersubs_buffer_samples",
		Help: "Samples currently buffered",
	})

	m.bufferCap = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "whispersubs_buffer_capacity_samples",
		Help: "Sample buffer capacity",
	})
}

func (m *PipelineMetrics) RecordOperation(operation, status string) {
	m.operations.WithLabelValues(operation, status).Inc()
}

func (m *PipelineMetrics) RecordDuration(operation string, seconds float64) {
	m.durations.WithLabelValues(operation).Observe(seconds)
}

func (m *PipelineMetrics) RecordError(operation, errorType string) {
	m.errors.WithLabelValues(operation, errorType).Inc()
}

func (m *PipelineMetrics) RecordSamples(kind string, n int) {
	if n <= 0 {
		return
	}
	m.samples.WithLabelValues(kind).Add(float64(n))
}

func (m *PipelineMetrics) SetBufferFill(samples, capacity int) {
	m.bufferFill.Set(float64(samples))
	m.bufferCap.Set(float64(capacity))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operations.Describe(ch)
	m.durations.Describe(ch)
	m.errors.Describe(ch)
	m.samples.Describe(ch)
	m.bufferFill.Describe(ch)
	m.bufferCap.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operations.Collect(ch)
	m.durations.Collect(ch)
	m.errors.Collect(ch)
	m.samples.Collect(ch)
	m.bufferFill.Collect(ch)
	m.bufferCap.Collect(ch)
}
