package analysis

import (
	"context"
	"os"

	"github.com/whispersubs/whispersubs/internal/conf"
	"github.com/whispersubs/whispersubs/internal/logger"
	"github.com/whispersubs/whispersubs/internal/pipeline"
	"github.com/whispersubs/whispersubs/internal/source"
)

// RealtimeAnalysis captures from the configured sound card and subtitles
// it until ctx is cancelled.
func RealtimeAnalysis(ctx context.Context, settings *conf.Settings) error {
	cfg, err := pipeline.ConfigFromSettings(settings)
	if err != nil {
		return err
	}

	svc, err := newServices(settings, cfg, os.Stdout, nil)
	if err != nil {
		return err
	}

	capture, err := source.NewCapture(source.CaptureConfig{
		Device:    settings.Audio.Device,
		Format:    cfg.Input,
		BlockSize: settings.Audio.BlockSize,
	}, svc.pipeline)
	if err != nil {
		return err
	}

	GetLogger().Info("starting realtime subtitles",
		logger.String("engine", settings.Whisper.Engine),
		logger.String("model", cfg.Model),
		logger.String("language", cfg.Language),
		logger.Bool("translate", cfg.Translate),
		logger.String("input", cfg.Input.String()),
		logger.Bool("telemetry", settings.Telemetry.Enabled),
		logger.Bool("mqtt", settings.MQTT.Enabled))

	err = svc.run(ctx, capture.Run)
	GetLogger().Info("realtime subtitles stopped", logger.Uint64("frames", capture.Frames()))
	return err
}
