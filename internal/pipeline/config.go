package pipeline

import (
	"fmt"
	"time"

	"github.com/whispersubs/whispersubs/internal/audio"
	"github.com/whispersubs/whispersubs/internal/conf"
	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/whisper"
)

// Config is the immutable pipeline configuration captured at start.
// Changing settings requires a new pipeline.
type Config struct {
	Name string // instance name used in logs and sink payloads

	Model     string
	Language  string
	Translate bool
	UseGPU    bool
	Threads   int

	Input            audio.Format
	EngineSampleRate int

	ChunkDuration   time.Duration
	RetainDuration  time.Duration
	ChunkPolicy     audio.ChunkPolicy
	MaxBuffered     time.Duration
	Staleness       time.Duration
	PollInterval    time.Duration
	DisplayDuration time.Duration
	LoadTimeout     time.Duration
}

// ConfigFromSettings snapshots the settings relevant to the pipeline
func ConfigFromSettings(s *conf.Settings) (Config, error) {
	policy, err := audio.ParsePolicy(s.Pipeline.ChunkPolicy)
	if err != nil {
		return Config{}, errors.New(err).
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Build()
	}

	cfg := Config{
		Name:             s.Main.Name,
		Model:            s.Whisper.Model,
		Language:         s.Whisper.Language,
		Translate:        s.Whisper.Translate,
		UseGPU:           s.Whisper.UseGPU,
		Threads:          s.Whisper.Threads,
		Input:            audio.Format{SampleRate: s.Audio.SampleRate, Channels: s.Audio.Channels},
		EngineSampleRate: s.Whisper.SampleRate,
		ChunkDuration:    s.Pipeline.ChunkDuration,
		RetainDuration:   s.Pipeline.RetainDuration,
		ChunkPolicy:      policy,
		MaxBuffered:      s.Pipeline.MaxBuffered,
		Staleness:        s.Pipeline.Staleness,
		PollInterval:     s.Pipeline.PollInterval,
		DisplayDuration:  s.Subtitle.DisplayDuration,
		LoadTimeout:      s.Whisper.Timeout,
	}
	return cfg, cfg.Validate()
}

// DefaultConfig returns the built-in defaults for the given input format
func DefaultConfig(input audio.Format) Config {
	return Config{
		Name:             "whispersubs",
		Language:         "auto",
		Input:            input,
		EngineSampleRate: conf.DefaultEngineSampleRate,
		ChunkDuration:    conf.DefaultChunkDuration,
		RetainDuration:   conf.DefaultRetainDuration,
		ChunkPolicy:      audio.PolicySliding,
		MaxBuffered:      conf.DefaultMaxBuffered,
		Staleness:        conf.DefaultStaleness,
		PollInterval:     conf.DefaultPollInterval,
		DisplayDuration:  conf.DefaultDisplayDuration,
	}
}

// Validate checks the values the pipeline depends on
func (c *Config) Validate() error {
	var problems []string
	if err := c.Input.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.EngineSampleRate <= 0 {
		problems = append(problems, fmt.Sprintf("invalid engine sample rate %d", c.EngineSampleRate))
	}
	if c.ChunkDuration <= 0 {
		problems = append(problems, "chunk duration must be positive")
	}
	if c.MaxBuffered < c.ChunkDuration {
		problems = append(problems, "max buffered duration must not be shorter than the chunk duration")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "poll interval must be positive")
	}
	if c.Staleness <= 0 {
		problems = append(problems, "staleness must be positive")
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid pipeline config: %v", problems).
		Component("pipeline").
		Category(errors.CategoryConfiguration).
		Build()
}

// Params returns the per-pass engine parameters
func (c *Config) Params() whisper.Params {
	return whisper.Params{Language: c.Language, Translate: c.Translate, Threads: c.Threads}
}

// Device returns the engine device preference
func (c *Config) Device() whisper.Device {
	return whisper.Device{UseGPU: c.UseGPU}
}

// MaxSamples is the buffer bound in samples
func (c *Config) MaxSamples() int {
	return c.Input.Samples(c.MaxBuffered)
}
