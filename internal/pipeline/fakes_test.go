package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/whispersubs/whispersubs/internal/whisper"
)

// fakeModel returns scripted results, one per Process call. After the
// script runs out it keeps returning the last entry.
type fakeModel struct {
	mu       sync.Mutex
	script   []fakePass
	calls    int
	lens     []int
	segments []whisper.Segment

	block      bool // Process waits for ctx cancellation
	inProcess  atomic.Bool
	closed     atomic.Bool
	usedClosed atomic.Bool
	started    chan struct{}
}

type fakePass struct {
	texts []string
	err   error
	panic bool
}

func newFakeModel(script ...fakePass) *fakeModel {
	return &fakeModel{script: script, started: make(chan struct{}, 16)}
}

func (m *fakeModel) Process(ctx context.Context, samples []float32, _ whisper.Params) error {
	if m.closed.Load() {
		m.usedClosed.Store(true)
		return whisper.ErrModelClosed
	}
	m.inProcess.Store(true)
	defer m.inProcess.Store(false)

	select {
	case m.started <- struct{}{}:
	default:
	}

	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.lens = append(m.lens, len(samples))
	m.segments = m.segments[:0]
	if len(m.script) == 0 {
		return nil
	}
	pass := m.script[min(m.calls, len(m.script)-1)]
	m.calls++
	if pass.panic {
		panic("engine exploded")
	}
	if pass.err != nil {
		return pass.err
	}
	for _, t := range pass.texts {
		m.segments = append(m.segments, whisper.Segment{Text: t})
	}
	return nil
}

func (m *fakeModel) SegmentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.segments)
}

func (m *fakeModel) Segment(i int) whisper.Segment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.segments[i]
}

func (m *fakeModel) Close() error {
	if m.inProcess.Load() {
		m.usedClosed.Store(true)
	}
	m.closed.Store(true)
	return nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *fakeModel) sampleLens() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.lens...)
}

func loaderFor(m whisper.Model) whisper.Loader {
	return whisper.LoaderFunc(func(context.Context, string, whisper.Device) (whisper.Model, error) {
		return m, nil
	})
}

// countingRecorder captures metrics for assertions
type countingRecorder struct {
	mu      sync.Mutex
	ops     map[string]int
	errs    map[string]int
	samples map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ops: map[string]int{}, errs: map[string]int{}, samples: map[string]int{}}
}

func (r *countingRecorder) RecordOperation(op, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op+"/"+status]++
}

func (r *countingRecorder) RecordDuration(string, float64) {}

func (r *countingRecorder) RecordError(op, category string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[op+"/"+category]++
}

func (r *countingRecorder) RecordSamples(kind string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[kind] += n
}

func (r *countingRecorder) SetBufferFill(int, int) {}

func (r *countingRecorder) op(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops[key]
}

func (r *countingRecorder) err(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[key]
}

func (r *countingRecorder) sample(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples[kind]
}
