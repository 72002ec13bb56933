package conf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/whispersubs/whispersubs/internal/errors"
)

// loadFromString decodes yaml on top of the defaults without touching the
// global viper or the filesystem search path
func loadFromString(t *testing.T, content string) (*Settings, error) {
	t.Helper()

	v := viper.New()
	setDefaultConfig(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(content)))
	return decode(v)
}

func validSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := loadFromString(t, getDefaultConfig())
	require.NoError(t, err)
	return s
}

func TestEmbeddedDefaultConfigMatchesDefaults(t *testing.T) {
	t.Parallel()

	s := validSettings(t)

	assert.Equal(t, EngineOpenAI, s.Whisper.Engine)
	assert.Equal(t, "auto", s.Whisper.Language)
	assert.Equal(t, DefaultEngineSampleRate, s.Whisper.SampleRate)
	assert.Equal(t, 30*time.Second, s.Whisper.Timeout)
	assert.Equal(t, DefaultChunkDuration, s.Pipeline.ChunkDuration)
	assert.Equal(t, DefaultRetainDuration, s.Pipeline.RetainDuration)
	assert.Equal(t, ChunkPolicySliding, s.Pipeline.ChunkPolicy)
	assert.Equal(t, DefaultMaxBuffered, s.Pipeline.MaxBuffered)
	assert.Equal(t, DefaultStaleness, s.Pipeline.Staleness)
	assert.Equal(t, DefaultPollInterval, s.Pipeline.PollInterval)
	assert.Equal(t, DefaultDisplayDuration, s.Subtitle.DisplayDuration)
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	t.Parallel()

	s, err := loadFromString(t, "")
	require.NoError(t, err)
	assert.Equal(t, validSettings(t).Pipeline, s.Pipeline)
	assert.Equal(t, 48000, s.Audio.SampleRate)
}

func TestConfigOverrides(t *testing.T) {
	t.Parallel()

	s, err := loadFromString(t, `
whisper:
  engine: silent
  language: es
  translate: true
audio:
  samplerate: 44100
  channels: 2
pipeline:
  chunkduration: 5s
  chunkpolicy: windowed
  pollinterval: 80ms
`)
	require.NoError(t, err)

	assert.Equal(t, EngineSilent, s.Whisper.Engine)
	assert.Equal(t, "es", s.Whisper.Language)
	assert.True(t, s.Whisper.Translate)
	assert.Equal(t, 44100, s.Audio.SampleRate)
	assert.Equal(t, 2, s.Audio.Channels)
	assert.Equal(t, 5*time.Second, s.Pipeline.ChunkDuration)
	assert.Equal(t, ChunkPolicyWindowed, s.Pipeline.ChunkPolicy)
	assert.Equal(t, 80*time.Millisecond, s.Pipeline.PollInterval)
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"defaults are valid", func(*Settings) {}, ""},
		{"unknown engine", func(s *Settings) { s.Whisper.Engine = "tflite" }, "whisper.engine"},
		{"empty model", func(s *Settings) { s.Whisper.Model = "" }, "whisper.model"},
		{"bad language", func(s *Settings) { s.Whisper.Language = "English" }, "whisper.language"},
		{"bad base url", func(s *Settings) { s.Whisper.BaseURL = "ftp://x" }, "whisper.baseurl"},
		{"silent engine ignores base url", func(s *Settings) {
			s.Whisper.Engine = EngineSilent
			s.Whisper.BaseURL = ""
		}, ""},
		{"sample rate too low", func(s *Settings) { s.Audio.SampleRate = 4000 }, "audio.samplerate"},
		{"zero channels", func(s *Settings) { s.Audio.Channels = 0 }, "audio.channels"},
		{"zero chunk", func(s *Settings) { s.Pipeline.ChunkDuration = 0 }, "pipeline.chunkduration"},
		{"retain not shorter than chunk", func(s *Settings) { s.Pipeline.RetainDuration = 3 * time.Second }, "pipeline.retainduration"},
		{"unknown policy", func(s *Settings) { s.Pipeline.ChunkPolicy = "greedy" }, "pipeline.chunkpolicy"},
		{"max buffered below chunk", func(s *Settings) { s.Pipeline.MaxBuffered = time.Second }, "pipeline.maxbuffered"},
		{"slow poll", func(s *Settings) { s.Pipeline.PollInterval = 2 * time.Second }, "pipeline.pollinterval"},
		{"zero display", func(s *Settings) { s.Subtitle.DisplayDuration = 0 }, "subtitle.displayduration"},
		{"telemetry bad listen", func(s *Settings) {
			s.Telemetry.Enabled = true
			s.Telemetry.Listen = "nope"
		}, "telemetry.listen"},
		{"mqtt without topic", func(s *Settings) {
			s.MQTT.Enabled = true
			s.MQTT.Topic = ""
		}, "mqtt.topic"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "sentry.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings(t)
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidationErrorsAggregate(t *testing.T) {
	t.Parallel()

	s := validSettings(t)
	s.Whisper.Model = ""
	s.Audio.Channels = 0
	s.Pipeline.ChunkPolicy = "x"

	err := ValidateSettings(s)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 3)
}

func TestDecodeWrapsValidationError(t *testing.T) {
	t.Parallel()

	_, err := loadFromString(t, "audio:\n  channels: 0\n")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateEnvBool("true"))
	assert.Error(t, validateEnvBool("yes please"))
	assert.NoError(t, validateEnvDuration("250ms"))
	assert.Error(t, validateEnvDuration("-1s"))
	assert.Error(t, validateEnvDuration("3"))
	assert.NoError(t, validateEnvLanguage("auto"))
	assert.NoError(t, validateEnvLanguage("fi"))
	assert.Error(t, validateEnvLanguage("EN"))
	assert.NoError(t, validateEnvURL("http://localhost:8080/v1"))
	assert.Error(t, validateEnvURL("localhost:8080"))
}

func TestMarshalYAMLMasksSecrets(t *testing.T) {
	t.Parallel()

	s := validSettings(t)
	s.Whisper.APIKey = "sk-live-123456789"
	s.MQTT.Password = "hunter2"

	data, err := MarshalYAML(s, false)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-live-123456789")
	assert.NotContains(t, string(data), "hunter2")
	assert.Equal(t, "sk-live-123456789", s.Whisper.APIKey, "original settings untouched")

	data, err = MarshalYAML(s, true)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sk-live-123456789")
}

func TestSaveYAMLConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	s := validSettings(t)
	s.Whisper.Language = "de"

	require.NoError(t, SaveYAMLConfig(path, s))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, yaml.Unmarshal(data, &raw))
	whisper, ok := raw["whisper"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "de", whisper["language"])
}

func TestSecretsResolvedFromFile(t *testing.T) {
	t.Parallel()

	keyFile := filepath.Join(t.TempDir(), "openai_api_key")
	require.NoError(t, os.WriteFile(keyFile, []byte("sk-from-file\n"), 0o600))

	s, err := loadFromString(t, "whisper:\n  apikey: ignored\n  apikeyfile: "+keyFile+"\n")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", s.Whisper.APIKey)

	_, err = loadFromString(t, "mqtt:\n  passwordfile: /nonexistent/secret\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt.password")
}
