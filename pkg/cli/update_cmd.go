package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service"
)

func newUpdateCmd(s *session) *cobra.Command {
	var (
		itemID     string
		serviceURL string
		sublayer   int
		mapping    []string
		share      string
		backup     bool
	)

	cmd := &cobra.Command{
		Use:   "update <archive.zip>",
		Short: "Update an existing hosted feature layer from a shapefile archive",
		Long: `Update an existing hosted feature layer from a shapefile archive.

With --sublayer the named sublayer is truncated and refilled, leaving
sibling sublayers untouched; the schemas must match exactly. Without it
the whole service is overwritten, replacing data and schema.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := domain.ParseSharingLevel(share)
			if err != nil {
				return err
			}
			if serviceURL == "" {
				return fmt.Errorf("--service-url is required")
			}

			fieldMapping := map[string]string{}
			for _, m := range mapping {
				from, to, ok := strings.Cut(m, "=")
				if !ok || from == "" || to == "" {
					return fmt.Errorf("invalid --map %q: expected source=target", m)
				}
				fieldMapping[from] = to
			}

			target := domain.TargetDescriptor{ItemID: itemID, ServiceURL: serviceURL}
			if cmd.Flags().Changed("sublayer") {
				if sublayer < 0 {
					return fmt.Errorf("--sublayer must be >= 0")
				}
				sub := sublayer
				target.Sublayer = &sub
			}

			pipeline, err := s.pipeline()
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0]) //nolint:gosec // user-supplied path
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			rep := pipeline.Run(cmd.Context(), service.IngestRequest{
				Archive:      domain.Archive{Name: filepath.Base(args[0]), Bytes: data},
				Target:       &target,
				Share:        level,
				FieldMapping: fieldMapping,
				Backup:       backup,
			})
			if err := printReport(cmd.OutOrStdout(), s.output, args[0], rep); err != nil {
				return err
			}
			if !rep.Success {
				return fmt.Errorf("update failed: %s", rep.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&itemID, "item", "", "Portal item ID of the service")
	cmd.Flags().StringVar(&serviceURL, "service-url", "", "Feature service URL")
	cmd.Flags().IntVar(&sublayer, "sublayer", 0, "Sublayer index to truncate and refill (omit to overwrite the whole service)")
	cmd.Flags().StringArrayVar(&mapping, "map", nil, "Field rename source=target (repeatable; unmapped fields are dropped)")
	cmd.Flags().StringVar(&share, "share", "", "Sharing level to apply after the update")
	cmd.Flags().BoolVar(&backup, "backup", true, "Snapshot the target item before updating (failure is a warning)")

	return cmd
}
