// Package conf loads and validates whispersubs settings.
//
// Settings come, in increasing priority, from built-in defaults, the
// config.yaml file, a .env file, environment variables and command line
// flags bound by the cmd package.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
	"github.com/whispersubs/whispersubs/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the root of the configuration tree
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name string `yaml:"name"` // instance name, used as MQTT client and metric label
	} `yaml:"main"`

	Whisper   WhisperSettings      `yaml:"whisper"`
	Audio     AudioSettings        `yaml:"audio"`
	Pipeline  PipelineSettings     `yaml:"pipeline"`
	Subtitle  SubtitleSettings     `yaml:"subtitle"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	Telemetry TelemetrySettings    `yaml:"telemetry"`
	MQTT      MQTTSettings         `yaml:"mqtt"`
	Sentry    SentrySettings       `yaml:"sentry"`
}

// WhisperSettings selects and configures the speech recognition engine
type WhisperSettings struct {
	Engine     string        `yaml:"engine"`     // openai or silent
	Model      string        `yaml:"model"`      // model name or path understood by the engine
	Language   string        `yaml:"language"`   // ISO 639-1 code or "auto"
	Translate  bool          `yaml:"translate"`  // translate to English instead of transcribing
	UseGPU     bool          `yaml:"usegpu"`     // compute device preference passed to the engine
	Threads    int           `yaml:"threads"`    // 0 lets the engine decide
	BaseURL    string        `yaml:"baseurl"`    // OpenAI-compatible API base URL
	APIKey     string        `yaml:"apikey"`     // API key, usually from OPENAI_API_KEY; ${VAR} references are expanded
	APIKeyFile string        `yaml:"apikeyfile"` // file holding the API key, takes precedence over apikey
	Timeout    time.Duration `yaml:"timeout"`    // per-request timeout
	SampleRate int           `yaml:"samplerate"` // engine input rate in Hz
}

// AudioSettings describes the audio input format
type AudioSettings struct {
	Device     string `yaml:"device"`     // capture device name substring, empty for system default
	SampleRate int    `yaml:"samplerate"` // capture rate in Hz
	Channels   int    `yaml:"channels"`   // capture channel count
	BlockSize  int    `yaml:"blocksize"`  // frames per callback block
}

// PipelineSettings controls buffering and chunking
type PipelineSettings struct {
	ChunkDuration  time.Duration `yaml:"chunkduration"`  // audio per inference pass
	RetainDuration time.Duration `yaml:"retainduration"` // tail kept across passes by the sliding policy
	ChunkPolicy    string        `yaml:"chunkpolicy"`    // sliding or windowed
	MaxBuffered    time.Duration `yaml:"maxbuffered"`    // oldest audio is dropped beyond this
	Staleness      time.Duration `yaml:"staleness"`      // published text expires after this
	PollInterval   time.Duration `yaml:"pollinterval"`   // worker readiness poll period
}

// SubtitleSettings controls subtitle presentation
type SubtitleSettings struct {
	DisplayDuration time.Duration `yaml:"displayduration"` // how long a shown cue stays on screen
	Console         bool          `yaml:"console"`         // render cues on stdout
}

// TelemetrySettings controls the metrics and subtitle HTTP endpoint
type TelemetrySettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"` // host:port
}

// MQTTSettings configures the subtitle relay
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // tcp://host:1883
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"clientid"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// file holding the password, takes precedence over password
	PasswordFile string `yaml:"passwordfile"`
	QoS      int    `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

// SentrySettings configures error telemetry
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile (or the first config.yaml on the default search
// path), the environment and any bound flags into Settings. A missing
// config file is created from the embedded defaults.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	v := viper.GetViper()
	if err := initViper(v, configFile); err != nil {
		return nil, err
	}

	settings, err := decode(v)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

// GetSettings returns the most recently loaded settings, or nil
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper registers defaults, search paths and env bindings, then reads
// the config file.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	// .env values feed the env bindings below; a missing file is normal
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		GetLogger().Warn("failed to load .env file", logger.Error(err))
	}

	if err := bindEnvVars(v); err != nil {
		// invalid env values are reported, validation catches what matters
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.New(fmt.Errorf("error reading config file %s: %w", configFile, err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(v, configPaths[0])
		}
		return errors.New(fmt.Errorf("fatal error reading config file: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// decode unmarshals and validates the viper state
func decode(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	return settings, nil
}

// createDefaultConfig writes the embedded config.yaml to dir and reads it
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(fmt.Errorf("error creating config directory: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create_default_config").
			Build()
	}
	if err := os.WriteFile(configPath, []byte(getDefaultConfig()), 0o644); err != nil { //nolint:gosec // config is not secret until edited
		return errors.New(fmt.Errorf("error writing default config file: %w", err)).
			Component("conf").
			Category(errors.CategoryFileIO).
			Context("operation", "create_default_config").
			Build()
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// getDefaultConfig returns the embedded default config.yaml
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		// embedded at build time, cannot be missing
		panic(fmt.Sprintf("embedded config.yaml missing: %v", err))
	}
	return string(data)
}

// GetDefaultConfigPaths returns the config search path: the working
// directory, the user config directory and /etc/whispersubs.
func GetDefaultConfigPaths() ([]string, error) {
	userConfig, err := os.UserConfigDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get_user_config_dir").
			Build()
	}

	paths := []string{
		".",
		filepath.Join(userConfig, "whispersubs"),
		"/etc/whispersubs",
	}

	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(p, "config.yaml")); err == nil {
			return []string{p}, nil
		}
	}
	// nothing found, default config goes to the user config dir
	return paths[1:], nil
}

// MarshalYAML renders settings for the config command. Secrets are masked
// unless reveal is set.
func MarshalYAML(s *Settings, reveal bool) ([]byte, error) {
	out := *s
	if !reveal {
		out.Whisper.APIKey = mask(out.Whisper.APIKey)
		out.MQTT.Password = mask(out.MQTT.Password)
		out.Sentry.DSN = mask(out.Sentry.DSN)
	}
	return yaml.Marshal(&out)
}

// SaveYAMLConfig writes settings to configPath atomically via a temp file
func SaveYAMLConfig(configPath string, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// resolveSecrets replaces credential settings with their file contents or
// expanded environment references
func resolveSecrets(s *Settings) error {
	var err error
	if s.Whisper.APIKey, err = secrets.Resolve(s.Whisper.APIKeyFile, s.Whisper.APIKey); err != nil {
		return fmt.Errorf("whisper.apikey: %w", err)
	}
	if s.MQTT.Password, err = secrets.Resolve(s.MQTT.PasswordFile, s.MQTT.Password); err != nil {
		return fmt.Errorf("mqtt.password: %w", err)
	}
	if s.Sentry.DSN, err = secrets.ExpandString(s.Sentry.DSN); err != nil {
		return fmt.Errorf("sentry.dsn: %w", err)
	}
	return nil
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
