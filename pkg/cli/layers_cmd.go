package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newLayersCmd(s *session) *cobra.Command {
	var max int

	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List your hosted feature layers on the portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := s.portalClient()
			if err != nil {
				return err
			}
			layers, err := client.ListUserLayers(cmd.Context(), max)
			if err != nil {
				return fmt.Errorf("list layers: %w", err)
			}

			if s.output == "json" {
				return printJSON(cmd.OutOrStdout(), layers)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tMODIFIED\tURL")
			for _, l := range layers {
				modified := time.UnixMilli(l.Modified).Format("2006-01-02 15:04")
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.ID, l.Title, modified, l.URL)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&max, "max", 100, "Maximum number of layers to list")
	return cmd
}
