// Package metrics provides the Prometheus collectors for whispersubs.
package metrics

// Recorder is the metrics surface used by the pipeline. Components depend
// on it rather than on concrete collectors so tests can capture values.
type Recorder interface {
	// RecordOperation counts an operation outcome, for example
	// (OpInference, StatusSuccess).
	RecordOperation(operation, status string)

	// RecordDuration records how long an operation took in seconds
	RecordDuration(operation string, seconds float64)

	// RecordError counts an error by operation and category
	RecordError(operation, errorType string)

	// RecordSamples counts samples moving through the buffer, kind is one
	// of SamplesAppended, SamplesEvicted or SamplesExtracted.
	RecordSamples(kind string, n int)

	// SetBufferFill reports the buffered sample count and capacity
	SetBufferFill(samples, capacity int)
}

// NopRecorder discards everything
type NopRecorder struct{}

func (NopRecorder) RecordOperation(string, string)  {}
func (NopRecorder) RecordDuration(string, float64)  {}
func (NopRecorder) RecordError(string, string)      {}
func (NopRecorder) RecordSamples(string, int)       {}
func (NopRecorder) SetBufferFill(int, int)          {}
