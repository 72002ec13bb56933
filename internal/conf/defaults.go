package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with the embedded config.yaml
const (
	DefaultEngineSampleRate = 16000
	DefaultChunkDuration    = 3 * time.Second
	DefaultRetainDuration   = 500 * time.Millisecond
	DefaultMaxBuffered      = 10 * time.Second
	DefaultStaleness        = 3 * time.Second
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultDisplayDuration  = 2 * time.Second

	ChunkPolicySliding  = "sliding"
	ChunkPolicyWindowed = "windowed"

	EngineOpenAI = "openai"
	EngineSilent = "silent"
)

// setDefaultConfig sets default values for every key
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("main.name", "whispersubs")

	v.SetDefault("whisper.engine", EngineOpenAI)
	v.SetDefault("whisper.model", "whisper-1")
	v.SetDefault("whisper.language", "auto")
	v.SetDefault("whisper.translate", false)
	v.SetDefault("whisper.usegpu", true)
	v.SetDefault("whisper.threads", 0)
	v.SetDefault("whisper.baseurl", "https://api.openai.com/v1")
	v.SetDefault("whisper.apikey", "")
	v.SetDefault("whisper.apikeyfile", "")
	v.SetDefault("whisper.timeout", 30*time.Second)
	v.SetDefault("whisper.samplerate", DefaultEngineSampleRate)

	v.SetDefault("audio.device", "")
	v.SetDefault("audio.samplerate", 48000)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.blocksize", 1024)

	v.SetDefault("pipeline.chunkduration", DefaultChunkDuration)
	v.SetDefault("pipeline.retainduration", DefaultRetainDuration)
	v.SetDefault("pipeline.chunkpolicy", ChunkPolicySliding)
	v.SetDefault("pipeline.maxbuffered", DefaultMaxBuffered)
	v.SetDefault("pipeline.staleness", DefaultStaleness)
	v.SetDefault("pipeline.pollinterval", DefaultPollInterval)

	v.SetDefault("subtitle.displayduration", DefaultDisplayDuration)
	v.SetDefault("subtitle.console", true)

	v.SetDefault("logging.defaultlevel", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.fileoutput.enabled", false)
	v.SetDefault("logging.fileoutput.path", "logs/whispersubs.log")
	v.SetDefault("logging.fileoutput.level", "debug")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", "127.0.0.1:8090")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "whispersubs/subtitle")
	v.SetDefault("mqtt.clientid", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.passwordfile", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}
