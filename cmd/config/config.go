package config

import (
	"github.com/spf13/cobra"

	"github.com/whispersubs/whispersubs/internal/conf"
)

// Command creates the command printing the effective configuration.
func Command(settings *conf.Settings) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Long:  "Print settings after merging defaults, config file, environment and flags. Secrets are masked unless --reveal is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := conf.MarshalYAML(settings, reveal)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show secrets in clear text")
	return cmd
}
