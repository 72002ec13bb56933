package conf

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError collects every problem found in one pass
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the whole settings tree
func ValidateSettings(s *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateWhisperSettings,
		validateAudioSettings,
		validatePipelineSettings,
		validateSubtitleSettings,
		validateTelemetrySettings,
		validateMQTTSettings,
		validateSentrySettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(s)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateWhisperSettings(s *Settings) []string {
	var errs []string
	w := &s.Whisper

	if err := validateEnvEngine(w.Engine); err != nil {
		errs = append(errs, fmt.Sprintf("whisper.engine: %v", err))
	}
	if w.Model == "" {
		errs = append(errs, "whisper.model: must not be empty")
	}
	if err := validateEnvLanguage(w.Language); err != nil {
		errs = append(errs, fmt.Sprintf("whisper.language: %v", err))
	}
	if w.Threads < 0 {
		errs = append(errs, "whisper.threads: must be 0 or positive")
	}
	if w.SampleRate <= 0 {
		errs = append(errs, "whisper.samplerate: must be positive")
	}
	if w.Engine == EngineOpenAI {
		if err := validateEnvURL(w.BaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("whisper.baseurl: %v", err))
		}
		if w.Timeout <= 0 {
			errs = append(errs, "whisper.timeout: must be positive")
		}
	}
	return errs
}

func validateAudioSettings(s *Settings) []string {
	var errs []string
	a := &s.Audio

	if a.SampleRate < 8000 || a.SampleRate > 192000 {
		errs = append(errs, fmt.Sprintf("audio.samplerate: %d outside 8000-192000", a.SampleRate))
	}
	if a.Channels < 1 || a.Channels > 8 {
		errs = append(errs, fmt.Sprintf("audio.channels: %d outside 1-8", a.Channels))
	}
	if a.BlockSize <= 0 {
		errs = append(errs, "audio.blocksize: must be positive")
	}
	return errs
}

func validatePipelineSettings(s *Settings) []string {
	var errs []string
	p := &s.Pipeline

	if p.ChunkDuration <= 0 {
		errs = append(errs, "pipeline.chunkduration: must be positive")
	}
	if p.RetainDuration < 0 || (p.ChunkDuration > 0 && p.RetainDuration >= p.ChunkDuration) {
		errs = append(errs, "pipeline.retainduration: must be 0 or positive and shorter than chunkduration")
	}
	if err := validateEnvChunkPolicy(p.ChunkPolicy); err != nil {
		errs = append(errs, fmt.Sprintf("pipeline.chunkpolicy: %v", err))
	}
	if p.MaxBuffered < p.ChunkDuration {
		errs = append(errs, "pipeline.maxbuffered: must be at least chunkduration")
	}
	if p.Staleness <= 0 {
		errs = append(errs, "pipeline.staleness: must be positive")
	}
	if p.PollInterval <= 0 || p.PollInterval > time.Second {
		errs = append(errs, "pipeline.pollinterval: must be between 1ns and 1s")
	}
	return errs
}

func validateSubtitleSettings(s *Settings) []string {
	if s.Subtitle.DisplayDuration <= 0 {
		return []string{"subtitle.displayduration: must be positive"}
	}
	return nil
}

func validateTelemetrySettings(s *Settings) []string {
	if !s.Telemetry.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Telemetry.Listen); err != nil {
		return []string{fmt.Sprintf("telemetry.listen: %v", err)}
	}
	return nil
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}

	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker: must not be empty when mqtt is enabled")
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic: must not be empty when mqtt is enabled")
	}
	if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos: must be 0, 1 or 2")
	}
	return errs
}

func validateSentrySettings(s *Settings) []string {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return []string{"sentry.dsn: must not be empty when sentry is enabled"}
	}
	return nil
}
