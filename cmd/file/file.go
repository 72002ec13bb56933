package file

import (
	"github.com/spf13/cobra"

	"github.com/whispersubs/whispersubs/internal/analysis"
	"github.com/whispersubs/whispersubs/internal/conf"
)

// Command creates the command for subtitling a WAV file.
func Command(settings *conf.Settings) *cobra.Command {
	var fast bool

	cmd := &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Subtitle a WAV file",
		Long:  "Play a PCM WAV file through the subtitle pipeline, at real-time pace unless --fast is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.FileAnalysis(cmd.Context(), settings, analysis.FileOptions{
				Path: args[0],
				Fast: fast,
				Out:  cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().BoolVar(&fast, "fast", false, "Feed the file as fast as the engine keeps up instead of in real time")
	return cmd
}
