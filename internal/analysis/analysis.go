// Package analysis wires audio sources, the subtitle pipeline and its
// outputs together for the realtime and file commands.
package analysis

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whispersubs/whispersubs/internal/buildinfo"
	"github.com/whispersubs/whispersubs/internal/conf"
	"github.com/whispersubs/whispersubs/internal/httpclient"
	"github.com/whispersubs/whispersubs/internal/logger"
	"github.com/whispersubs/whispersubs/internal/mqtt"
	"github.com/whispersubs/whispersubs/internal/observability"
	"github.com/whispersubs/whispersubs/internal/observability/metrics"
	"github.com/whispersubs/whispersubs/internal/pipeline"
	"github.com/whispersubs/whispersubs/internal/subtitle"
	"github.com/whispersubs/whispersubs/internal/whisper"
)

// services holds one pipeline and everything reading from it
type services struct {
	metrics  *observability.Metrics
	pipeline *pipeline.Pipeline
	mqtt     mqtt.Client
	endpoint *observability.Endpoint
	renderer *subtitle.ConsoleRenderer
}

// newServices builds the pipeline for cfg and the outputs enabled in
// settings. Console subtitles go to out; client carries engine requests
// and may be nil.
func newServices(settings *conf.Settings, cfg pipeline.Config, out io.Writer, client *http.Client) (*services, error) {
	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	if client == nil {
		client = httpclient.New(&httpclient.Config{
			DefaultTimeout: settings.Whisper.Timeout,
			UserAgent:      buildinfo.UserAgent(),
			Observer:       engineObserver(m.Pipeline),
		})
	}
	loader, err := whisper.NewLoader(&settings.Whisper, client)
	if err != nil {
		return nil, err
	}

	s := &services{metrics: m}

	opts := []pipeline.Option{pipeline.WithRecorder(m.Pipeline)}
	if settings.MQTT.Enabled {
		mcfg := mqtt.ConfigFromSettings(settings)
		s.mqtt = mqtt.NewClient(mcfg, m.MQTT)
		opts = append(opts, pipeline.WithSinks(mqtt.NewRelay(s.mqtt, mcfg.Topic)))
	}

	p, err := pipeline.New(cfg, loader, opts...)
	if err != nil {
		return nil, err
	}
	s.pipeline = p

	if settings.Telemetry.Enabled {
		m.InstallErrorHook()
		s.endpoint = observability.NewEndpoint(settings.Telemetry.Listen, m, p.Overlay(), p)
	}
	if settings.Subtitle.Console {
		s.renderer = subtitle.NewConsoleRenderer(p.Overlay(), out)
	}
	return s, nil
}

// run starts the pipeline and its outputs, then calls feed. Everything is
// stopped when feed returns or ctx is done, whichever comes first; the
// pipeline is stopped last so nothing reads a torn-down publisher.
func (s *services) run(ctx context.Context, feed func(ctx context.Context) error) error {
	if err := s.pipeline.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.pipeline.Stop(); err != nil {
			GetLogger().Error("pipeline stop failed", logger.Error(err))
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if s.mqtt != nil {
		g.Go(func() error {
			if err := s.mqtt.Connect(gctx); err != nil {
				// the relay drops results until the broker comes back
				GetLogger().Warn("MQTT broker not reachable", logger.Error(err))
			}
			<-gctx.Done()
			s.mqtt.Disconnect()
			return nil
		})
	}
	if s.endpoint != nil {
		g.Go(func() error { return s.endpoint.Run(gctx) })
	}
	if s.renderer != nil {
		g.Go(func() error { return s.renderer.Run(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return feed(gctx)
	})

	return g.Wait()
}

// waitIdle blocks until the pipeline has no chunk ready and no pass in
// flight, polling every interval.
func waitIdle(ctx context.Context, p *pipeline.Pipeline, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !p.Idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// engineObserver counts engine round trips and their latency
func engineObserver(rec metrics.Recorder) httpclient.Observer {
	return func(_ *http.Request, resp *http.Response, err error, elapsed time.Duration) {
		rec.RecordDuration(metrics.OpEngineRequest, elapsed.Seconds())
		switch {
		case err != nil:
			rec.RecordOperation(metrics.OpEngineRequest, metrics.StatusError)
			rec.RecordError(metrics.OpEngineRequest, "transport")
		case resp.StatusCode >= http.StatusBadRequest:
			rec.RecordOperation(metrics.OpEngineRequest, metrics.StatusError)
			rec.RecordError(metrics.OpEngineRequest, strconv.Itoa(resp.StatusCode))
		default:
			rec.RecordOperation(metrics.OpEngineRequest, metrics.StatusSuccess)
		}
	}
}
