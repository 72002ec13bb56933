package analysis

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/whispersubs/whispersubs/internal/conf"
	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
	"github.com/whispersubs/whispersubs/internal/pipeline"
	"github.com/whispersubs/whispersubs/internal/source"
	"github.com/whispersubs/whispersubs/internal/subtitle"
)

// FileOptions controls FileAnalysis
type FileOptions struct {
	Path string
	Fast bool      // feed without real-time pacing
	Out  io.Writer // console subtitles, stdout when nil

	HTTPClient *http.Client // engine client, default when nil
}

// FileAnalysis plays a WAV file through the pipeline. The input format is
// taken from the file header. After the last block the remaining ready
// chunks are transcribed before returning.
func FileAnalysis(ctx context.Context, settings *conf.Settings, opts FileOptions) error {
	wf, err := source.OpenWAVFile(opts.Path)
	if err != nil {
		return err
	}
	defer wf.Close()

	cfg, err := pipeline.ConfigFromSettings(settings)
	if err != nil {
		return err
	}
	cfg.Input = wf.Format()
	if err := cfg.Validate(); err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Context("path", opts.Path).
			Build()
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	svc, err := newServices(settings, cfg, out, opts.HTTPClient)
	if err != nil {
		return err
	}

	GetLogger().Info("subtitling file",
		logger.String("path", opts.Path),
		logger.String("input", cfg.Input.String()),
		logger.Bool("fast", opts.Fast))

	return svc.run(ctx, func(ctx context.Context) error {
		var sink source.Sink = svc.pipeline
		if opts.Fast {
			sink = &backpressureSink{ctx: ctx, p: svc.pipeline, poll: cfg.PollInterval}
		}
		if err := wf.Play(ctx, sink, source.PlayOptions{BlockFrames: settings.Audio.BlockSize, Fast: opts.Fast}); err != nil {
			return err
		}
		if waitIdle(ctx, svc.pipeline, cfg.PollInterval) != nil {
			return nil // cancelled
		}
		GetLogger().Debug("file drained", logger.Int("unprocessed_samples", svc.pipeline.Stats().Buffered))
		// let the renderer pick up the last cue
		time.Sleep(2 * subtitle.FrameInterval)
		return nil
	})
}

// backpressureSink holds unpaced playback back while the buffer is full so
// a file fed faster than real time loses no audio to eviction.
type backpressureSink struct {
	ctx  context.Context
	p    *pipeline.Pipeline
	poll time.Duration
}

func (s *backpressureSink) Feed(block []float32) {
	for {
		st := s.p.Stats()
		// an idle pipeline with no room can only make room by evicting
		if st.Buffered+len(block) <= st.Capacity || !s.p.Running() || s.p.Idle() {
			break
		}
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.poll):
		}
	}
	s.p.Feed(block)
}
