// Package whisper defines the speech recognition engine contract used by
// the pipeline and the engines that implement it.
//
// An engine is loaded once per pipeline, handed to the inference worker
// and closed only after the worker has exited. Models are not safe for
// concurrent use.
package whisper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/whispersubs/whispersubs/internal/conf"
	"github.com/whispersubs/whispersubs/internal/errors"
)

// ErrModelClosed is returned by Process after Close
var ErrModelClosed = errors.NewStd("model is closed")

// Device is the compute device preference passed at load time
type Device struct {
	UseGPU bool
}

func (d Device) String() string {
	if d.UseGPU {
		return "gpu"
	}
	return "cpu"
}

// Params are the per-pass inference parameters
type Params struct {
	Language  string // ISO 639-1 code, "" or "auto" to detect
	Translate bool   // translate to English
	Threads   int    // 0 lets the engine decide
}

// AutoDetect reports whether the language should be detected by the engine
func (p Params) AutoDetect() bool {
	return p.Language == "" || p.Language == "auto"
}

// Segment is one transcribed span, timed relative to the start of the chunk
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Model runs inference on mono float32 audio at the engine sample rate.
// Segments from the most recent Process call stay readable until the next
// call.
type Model interface {
	Process(ctx context.Context, samples []float32, p Params) error
	SegmentCount() int
	Segment(i int) Segment
	Close() error
}

// Loader creates a Model
type Loader interface {
	Load(ctx context.Context, modelPath string, dev Device) (Model, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context, modelPath string, dev Device) (Model, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context, modelPath string, dev Device) (Model, error) {
	return f(ctx, modelPath, dev)
}

// JoinSegments concatenates the trimmed, non-empty segment texts of the
// last pass in order, separated by single spaces.
func JoinSegments(m Model) string {
	n := m.SegmentCount()
	if n == 0 {
		return ""
	}

	parts := make([]string, 0, n)
	for i := range n {
		if text := strings.TrimSpace(m.Segment(i).Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// NewLoader returns the loader for the configured engine. client may be nil
// to use a default HTTP client.
func NewLoader(s *conf.WhisperSettings, client *http.Client) (Loader, error) {
	switch s.Engine {
	case conf.EngineOpenAI:
		return &OpenAILoader{
			APIKey:     s.APIKey,
			BaseURL:    s.BaseURL,
			Timeout:    s.Timeout,
			SampleRate: s.SampleRate,
			HTTPClient: client,
		}, nil
	case conf.EngineSilent:
		return SilentLoader{}, nil
	default:
		return nil, errors.New(fmt.Errorf("unknown whisper engine %q", s.Engine)).
			Component("whisper").
			Category(errors.CategoryConfiguration).
			Context("engine", s.Engine).
			Build()
	}
}
