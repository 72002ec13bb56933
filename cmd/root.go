// Package cmd holds the whispersubs command line interface.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/whispersubs/whispersubs/cmd/config"
	"github.com/whispersubs/whispersubs/cmd/devices"
	"github.com/whispersubs/whispersubs/cmd/file"
	"github.com/whispersubs/whispersubs/cmd/realtime"
	"github.com/whispersubs/whispersubs/internal/conf"
	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
)

// sentryFlushTimeout bounds the wait for queued error reports on exit
const sentryFlushTimeout = 2 * time.Second

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, version string) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "whispersubs",
		Short:         "Real-time speech to subtitles",
		Long:          "whispersubs transcribes or translates live or recorded audio into subtitles with a whisper engine.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err) // flags are static, a failure is a programming error
	}

	rootCmd.AddCommand(
		realtime.Command(settings),
		file.Command(settings),
		devices.Command(),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		*settings = *loaded
		return initialize(settings, version)
	}

	rootCmd.PersistentPostRun = func(*cobra.Command, []string) {
		errors.FlushTelemetry(sentryFlushTimeout)
		if err := logger.Global().Flush(); err != nil {
			fmt.Printf("failed to flush logs: %v\n", err)
		}
	}

	return rootCmd
}

// initialize sets up logging and error telemetry once settings are known
func initialize(settings *conf.Settings, version string) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(settings.Sentry.DSN, version, settings.Debug); err != nil {
			// telemetry is optional, keep running without it
			central.Module("cmd").Warn("error telemetry disabled", logger.Error(err))
		}
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface
// and binds them to their settings keys.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config.yaml (default: search ./, user config dir, /etc/whispersubs)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("engine", conf.EngineOpenAI, "Whisper engine: openai or silent")
	flags.StringP("model", "m", "whisper-1", "Model name or path understood by the engine")
	flags.StringP("language", "l", "auto", "Spoken language code, or auto to detect")
	flags.Bool("translate", false, "Translate to English instead of transcribing")
	flags.String("baseurl", "", "OpenAI-compatible API base URL")
	flags.String("policy", conf.ChunkPolicySliding, "Chunk policy: sliding or windowed")
	flags.Duration("chunk", conf.DefaultChunkDuration, "Audio per inference pass")

	bindings := map[string]string{
		"debug":                  "debug",
		"whisper.engine":         "engine",
		"whisper.model":          "model",
		"whisper.language":       "language",
		"whisper.translate":      "translate",
		"whisper.baseurl":        "baseurl",
		"pipeline.chunkpolicy":   "policy",
		"pipeline.chunkduration": "chunk",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
