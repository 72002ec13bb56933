package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/whispersubs/whispersubs/internal/audio"
	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
	"github.com/whispersubs/whispersubs/internal/observability/metrics"
	"github.com/whispersubs/whispersubs/internal/whisper"
)

// runWorker polls the scheduler until ctx is done. model belongs to this
// goroutine until it returns.
func (p *Pipeline) runWorker(ctx context.Context, model whisper.Model) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.log.Debug("inference worker started", logger.Duration("poll_interval", p.cfg.PollInterval))

	for {
		select {
		case <-ctx.Done():
			p.log.Debug("inference worker stopping")
			return
		case <-ticker.C:
			p.processNext(ctx, model)
		}
	}
}

// processNext runs at most one inference pass. A panic inside the pass is
// recovered so the worker keeps running.
func (p *Pipeline) processNext(ctx context.Context, model whisper.Model) {
	defer func() {
		if r := recover(); r != nil {
			p.rec.RecordError(metrics.OpInference, "panic")
			p.log.Error("recovered from panic in inference pass",
				logger.Any("panic", r),
				logger.String("stack", string(debug.Stack())))
		}
	}()

	if !p.sched.Ready() {
		return
	}
	p.busy.Store(true)
	defer p.busy.Store(false)

	chunk, err := p.sched.Extract()
	if errors.Is(err, audio.ErrNotReady) {
		return
	}
	if err != nil {
		p.rec.RecordError(metrics.OpChunkExtract, string(errors.CategoryBuffer))
		p.log.Error("chunk extraction failed", logger.Error(err))
		return
	}
	p.rec.RecordOperation(metrics.OpChunkExtract, metrics.StatusSuccess)
	p.rec.RecordSamples(metrics.SamplesExtracted, len(chunk.Samples))
	p.rec.SetBufferFill(p.buf.Size(), p.buf.Capacity())

	resampleStart := time.Now()
	samples := audio.Resample(chunk, p.cfg.EngineSampleRate)
	p.rec.RecordDuration(metrics.OpResample, time.Since(resampleStart).Seconds())

	start := time.Now()
	err = model.Process(ctx, samples, p.cfg.Params())
	elapsed := time.Since(start)
	p.rec.RecordDuration(metrics.OpInference, elapsed.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			p.log.Debug("inference interrupted by shutdown")
			return
		}
		p.inferenceFailed(err, &chunk, elapsed)
		return
	}

	text := whisper.JoinSegments(model)
	if text == "" {
		p.rec.RecordOperation(metrics.OpInference, metrics.StatusEmpty)
		p.log.Trace("no speech in chunk", logger.Duration("audio", chunk.Duration()))
		return
	}
	p.rec.RecordOperation(metrics.OpInference, metrics.StatusSuccess)

	ts := p.now()
	p.pub.Publish(text, ts)
	p.rec.RecordOperation(metrics.OpPublish, metrics.StatusSuccess)
	p.log.Debug("subtitle published",
		logger.Int("segments", model.SegmentCount()),
		logger.Duration("audio", chunk.Duration()),
		logger.Duration("inference", elapsed))

	p.deliver(ctx, Result{
		PipelineID:  p.id,
		Name:        p.cfg.Name,
		Text:        text,
		Language:    p.cfg.Language,
		Translated:  p.cfg.Translate,
		CapturedAt:  chunk.CapturedAt,
		Audio:       chunk.Duration(),
		Latency:     ts.Sub(chunk.CapturedAt),
		PublishedAt: ts,
	})
}

// inferenceFailed logs and counts a failed pass. The chunk is dropped.
func (p *Pipeline) inferenceFailed(err error, chunk *audio.Chunk, elapsed time.Duration) {
	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		ee = errors.New(err).
			Component("pipeline").
			Category(errors.CategoryModelInference).
			Context("operation", "process_chunk").
			Timing("inference", elapsed).
			Build()
	}

	p.rec.RecordOperation(metrics.OpInference, metrics.StatusError)
	p.rec.RecordError(metrics.OpInference, ee.GetCategory())
	p.log.Warn("inference failed, dropping chunk",
		logger.Error(ee),
		logger.String("category", ee.GetCategory()),
		logger.Duration("audio", chunk.Duration()),
		logger.Duration("elapsed", elapsed))
}

func (p *Pipeline) deliver(ctx context.Context, r Result) {
	for i, sink := range p.sinks {
		start := time.Now()
		err := p.safeDeliver(ctx, sink, r)
		p.rec.RecordDuration(metrics.OpSinkDeliver, time.Since(start).Seconds())
		if err != nil {
			p.rec.RecordOperation(metrics.OpSinkDeliver, metrics.StatusError)
			p.log.Warn("result sink failed", logger.Int("sink", i), logger.Error(err))
			continue
		}
		p.rec.RecordOperation(metrics.OpSinkDeliver, metrics.StatusSuccess)
	}
}

func (p *Pipeline) safeDeliver(ctx context.Context, sink ResultSink, r Result) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("result sink panicked: %v", rec)
		}
	}()
	return sink.Deliver(ctx, r)
}
