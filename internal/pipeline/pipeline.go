// Package pipeline wires an audio source to the speech engine: sources
// feed samples into a bounded buffer, a background worker cuts chunks,
// runs inference and publishes the text for renderers and result sinks.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/whispersubs/whispersubs/internal/audio"
	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
	"github.com/whispersubs/whispersubs/internal/observability/metrics"
	"github.com/whispersubs/whispersubs/internal/subtitle"
	"github.com/whispersubs/whispersubs/internal/whisper"
)

const (
	// statusLogEvery is how many fed blocks pass between buffer status logs
	statusLogEvery = 500

	// overflowLogInterval throttles the eviction warning
	overflowLogInterval = 5 * time.Second
)

type lifecycle int32

const (
	stateIdle lifecycle = iota
	stateRunning
	stateStopped
)

func (s lifecycle) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRunning:
		return "running"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Pipeline owns the sample buffer, the chunk scheduler, the result
// publisher and, while running, the inference worker and its model.
type Pipeline struct {
	id     string
	cfg    Config
	loader whisper.Loader
	buf    *audio.RingBuffer
	sched  *audio.ChunkScheduler
	pub    *subtitle.Publisher
	rec    metrics.Recorder
	sinks  []ResultSink
	log    logger.Logger
	now    func() time.Time

	state       atomic.Int32
	blocks      atomic.Uint64
	evicted     atomic.Uint64
	busy        atomic.Bool // an inference pass is in flight
	overflowLog rate.Sometimes
	partialLog  rate.Sometimes

	mu     sync.Mutex // serializes Start and Stop
	cancel context.CancelFunc
	wg     sync.WaitGroup
	model  whisper.Model
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRecorder sets the metrics recorder
func WithRecorder(r metrics.Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.rec = r
		}
	}
}

// WithSinks adds result sinks, called in order after each publish
func WithSinks(sinks ...ResultSink) Option {
	return func(p *Pipeline) {
		p.sinks = append(p.sinks, sinks...)
	}
}

// WithClock replaces time.Now for publish timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New validates cfg and builds an idle pipeline. The engine is loaded by
// Start.
func New(cfg Config, loader whisper.Loader, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	buf := audio.NewRingBuffer(cfg.MaxSamples())
	sched, err := audio.NewChunkScheduler(buf, audio.SchedulerConfig{
		Format:         cfg.Input,
		ChunkDuration:  cfg.ChunkDuration,
		RetainDuration: cfg.RetainDuration,
		Policy:         cfg.ChunkPolicy,
	})
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	p := &Pipeline{
		id:          id,
		cfg:         cfg,
		loader:      loader,
		buf:         buf,
		sched:       sched,
		pub:         subtitle.NewPublisher(),
		rec:         metrics.NopRecorder{},
		log:         GetLogger().With(logger.String("pipeline_id", id[:8])),
		now:         time.Now,
		overflowLog: rate.Sometimes{First: 1, Interval: overflowLogInterval},
		partialLog:  rate.Sometimes{First: 1, Interval: overflowLogInterval},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ID returns the pipeline instance ID
func (p *Pipeline) ID() string {
	return p.id
}

// Config returns the configuration snapshot
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Publisher returns the latest-result slot owned by this pipeline
func (p *Pipeline) Publisher() *subtitle.Publisher {
	return p.pub
}

// Overlay returns a renderer view of the publisher using the configured
// staleness and display durations.
func (p *Pipeline) Overlay() *subtitle.Overlay {
	return subtitle.NewOverlay(p.pub, p.cfg.Staleness, p.cfg.DisplayDuration)
}

// Start loads the engine and starts the inference worker. A load failure
// is returned as a model-loading or configuration error and no worker is
// started. The worker stops when ctx is done or Stop is called.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s := lifecycle(p.state.Load()); s != stateIdle {
		return errors.Newf("pipeline cannot start from state %s", s).
			Component("pipeline").
			Category(errors.CategoryState).
			Build()
	}

	loadCtx := ctx
	if p.cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, p.cfg.LoadTimeout)
		defer cancel()
	}

	start := time.Now()
	model, err := p.loader.Load(loadCtx, p.cfg.Model, p.cfg.Device())
	if err != nil {
		p.rec.RecordOperation(metrics.OpModelLoad, metrics.StatusError)
		category := errors.CategoryModelLoad
		if errors.IsCategory(err, errors.CategoryConfiguration) {
			category = errors.CategoryConfiguration
		}
		return errors.New(err).
			Component("pipeline").
			Category(category).
			Context("model", p.cfg.Model).
			Build()
	}
	p.rec.RecordOperation(metrics.OpModelLoad, metrics.StatusSuccess)
	p.rec.RecordDuration(metrics.OpModelLoad, time.Since(start).Seconds())

	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.model = model
	p.state.Store(int32(stateRunning))

	p.wg.Go(func() {
		p.runWorker(workerCtx, model)
	})

	p.log.Info("pipeline started",
		logger.String("model", p.cfg.Model),
		logger.String("input", p.cfg.Input.String()),
		logger.String("policy", string(p.cfg.ChunkPolicy)),
		logger.Duration("chunk", p.cfg.ChunkDuration),
		logger.Duration("max_buffered", p.cfg.MaxBuffered))
	return nil
}

// Stop cancels the worker, waits for it to exit and only then closes the
// model. It is safe to call more than once.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch lifecycle(p.state.Load()) {
	case stateStopped:
		return nil
	case stateIdle:
		p.state.Store(int32(stateStopped))
		return nil
	}

	p.state.Store(int32(stateStopped))
	p.cancel()
	p.wg.Wait()

	err := p.model.Close()
	p.model = nil
	p.pub.Clear()
	p.buf.Reset()

	if err != nil {
		return errors.New(err).
			Component("pipeline").
			Category(errors.CategoryModelLoad).
			Context("operation", "close_model").
			Build()
	}
	p.log.Info("pipeline stopped", logger.Uint64("blocks", p.blocks.Load()), logger.Uint64("evicted", p.evicted.Load()))
	return nil
}

// Run starts the pipeline, blocks until ctx is done and stops it
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return p.Stop()
}

// Feed appends one block of interleaved float32 samples in the input
// format. It is called from the audio callback and never blocks on
// inference. A trailing partial frame is dropped. Blocks fed after Stop
// are ignored.
func (p *Pipeline) Feed(block []float32) {
	if lifecycle(p.state.Load()) == stateStopped {
		return
	}

	if rem := len(block) % p.cfg.Input.Channels; rem != 0 {
		block = block[:len(block)-rem]
		p.partialLog.Do(func() {
			p.log.Warn("dropped partial frame from audio block",
				logger.Int("samples", rem),
				logger.Int("channels", p.cfg.Input.Channels))
		})
	}
	if len(block) == 0 {
		return
	}

	evicted := p.buf.Append(block)
	p.rec.RecordSamples(metrics.SamplesAppended, len(block))
	if evicted > 0 {
		total := p.evicted.Add(uint64(evicted))
		p.rec.RecordSamples(metrics.SamplesEvicted, evicted)
		p.overflowLog.Do(func() {
			p.log.Warn("sample buffer full, dropped oldest audio",
				logger.Int("evicted", evicted),
				logger.Uint64("evicted_total", total),
				logger.Duration("max_buffered", p.cfg.MaxBuffered))
		})
	}

	if n := p.blocks.Add(1); n%statusLogEvery == 0 {
		size := p.buf.Size()
		p.rec.SetBufferFill(size, p.buf.Capacity())
		p.log.Debug("buffer status",
			logger.Uint64("blocks", n),
			logger.Int("buffered", size),
			logger.Duration("buffered_audio", p.cfg.Input.Duration(size)),
			logger.String("scheduler", p.sched.State().String()))
	}
}

// Stats is a point-in-time view of the pipeline
type Stats struct {
	ID        string        `json:"id"`
	State     string        `json:"state"`
	Buffered  int           `json:"buffered_samples"`
	Capacity  int           `json:"capacity_samples"`
	Audio     time.Duration `json:"buffered_audio_ns"`
	Blocks    uint64        `json:"blocks"`
	Evicted   uint64        `json:"evicted_samples"`
	Scheduler string        `json:"scheduler"`
	Busy      bool          `json:"busy"`
}

// Stats returns current counters
func (p *Pipeline) Stats() Stats {
	size := p.buf.Size()
	return Stats{
		ID:        p.id,
		State:     lifecycle(p.state.Load()).String(),
		Buffered:  size,
		Capacity:  p.buf.Capacity(),
		Audio:     p.cfg.Input.Duration(size),
		Blocks:    p.blocks.Load(),
		Evicted:   p.evicted.Load(),
		Scheduler: p.sched.State().String(),
		Busy:      p.busy.Load(),
	}
}

// Idle reports whether no inference pass is running and no chunk is ready.
// Audio below the chunk threshold may still be buffered.
//
// Ready is read before busy: the worker sets busy before it extracts, so a
// chunk that stops being ready is already reported as in flight.
func (p *Pipeline) Idle() bool {
	return !p.sched.Ready() && !p.busy.Load()
}

// Running reports whether the pipeline was started and not yet stopped
func (p *Pipeline) Running() bool {
	return lifecycle(p.state.Load()) == stateRunning
}
