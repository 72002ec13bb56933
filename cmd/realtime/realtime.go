package realtime

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/whispersubs/whispersubs/internal/analysis"
	"github.com/whispersubs/whispersubs/internal/conf"
)

// Command creates the command for live subtitling from a sound card.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Subtitle live audio from a capture device",
		Long:  "Capture audio from a sound card and print subtitles as speech is recognized, until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("device", "", `Capture device ID or name substring ("" or "sysdefault" for the default)`)
	flags.Int("samplerate", 48000, "Capture sample rate in Hz")
	flags.Int("channels", 1, "Capture channel count")
	flags.Bool("telemetry", false, "Enable the metrics and subtitle HTTP endpoint")
	flags.String("listen", "127.0.0.1:8090", "Listen address of the HTTP endpoint")
	flags.Bool("mqtt", false, "Relay subtitles to the configured MQTT broker")

	bindings := map[string]string{
		"audio.device":      "device",
		"audio.samplerate":  "samplerate",
		"audio.channels":    "channels",
		"telemetry.enabled": "telemetry",
		"telemetry.listen":  "listen",
		"mqtt.enabled":      "mqtt",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
