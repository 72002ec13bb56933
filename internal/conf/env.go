package conf

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "WHISPERSUBS"

// envBinding maps a config key to an environment variable
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

// getEnvBindings lists explicit bindings. Every other key is still reachable
// as WHISPERSUBS_<SECTION>_<KEY> through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"whisper.engine", "WHISPERSUBS_ENGINE", validateEnvEngine},
		{"whisper.model", "WHISPERSUBS_MODEL", nil},
		{"whisper.language", "WHISPERSUBS_LANGUAGE", validateEnvLanguage},
		{"whisper.translate", "WHISPERSUBS_TRANSLATE", validateEnvBool},
		{"whisper.usegpu", "WHISPERSUBS_USEGPU", validateEnvBool},
		{"whisper.baseurl", "OPENAI_BASE_URL", validateEnvURL},
		{"whisper.apikey", "OPENAI_API_KEY", nil},

		{"pipeline.chunkduration", "WHISPERSUBS_CHUNK_DURATION", validateEnvDuration},
		{"pipeline.chunkpolicy", "WHISPERSUBS_CHUNK_POLICY", validateEnvChunkPolicy},
		{"pipeline.staleness", "WHISPERSUBS_STALENESS", validateEnvDuration},

		{"mqtt.password", "WHISPERSUBS_MQTT_PASSWORD", nil},
		{"sentry.dsn", "SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up env bindings and reports invalid values
func bindEnvVars(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var warnings []string
	for _, b := range getEnvBindings() {
		if err := v.BindEnv(b.ConfigKey, b.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", b.EnvVar, err))
			continue
		}
		if b.Validate == nil {
			continue
		}
		if value := os.Getenv(b.EnvVar); value != "" {
			if err := b.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", b.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration such as 3s or 500ms: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateEnvEngine(value string) error {
	switch value {
	case EngineOpenAI, EngineSilent:
		return nil
	}
	return fmt.Errorf("must be %q or %q", EngineOpenAI, EngineSilent)
}

func validateEnvChunkPolicy(value string) error {
	switch value {
	case ChunkPolicySliding, ChunkPolicyWindowed:
		return nil
	}
	return fmt.Errorf("must be %q or %q", ChunkPolicySliding, ChunkPolicyWindowed)
}

// languagePattern accepts ISO 639-1 and 639-3 codes
var languagePattern = regexp.MustCompile(`^[a-z]{2,3}$`)

func validateEnvLanguage(value string) error {
	if value == "auto" || languagePattern.MatchString(value) {
		return nil
	}
	return fmt.Errorf("must be \"auto\" or a lowercase language code such as en or es")
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is empty")
	}
	return nil
}
