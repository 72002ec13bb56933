package pipeline

import (
	"context"
	"time"
)

// Result is one published subtitle update
type Result struct {
	PipelineID  string        `json:"pipeline_id"`
	Name        string        `json:"name"`
	Text        string        `json:"text"`
	Language    string        `json:"language,omitempty"`
	Translated  bool          `json:"translated"`
	CapturedAt  time.Time     `json:"captured_at"`
	Audio       time.Duration `json:"audio_ns"`
	Latency     time.Duration `json:"latency_ns"`
	PublishedAt time.Time     `json:"published_at"`
}

// ResultSink receives every published result on the worker goroutine.
// Implementations should return quickly; a slow sink delays the next pass.
type ResultSink interface {
	Deliver(ctx context.Context, r Result) error
}

// SinkFunc adapts a function to ResultSink
type SinkFunc func(ctx context.Context, r Result) error

// Deliver calls f
func (f SinkFunc) Deliver(ctx context.Context, r Result) error {
	return f(ctx, r)
}
