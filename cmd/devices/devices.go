package devices

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/whispersubs/whispersubs/internal/source"
)

// Command creates the command listing capture devices.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := source.ListDevices()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tDEFAULT\tNAME\tID")
			for _, d := range devices {
				def := ""
				if d.IsDefault {
					def = "*"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.Index, def, d.Name, d.ID)
			}
			return w.Flush()
		},
	}
}
