package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/domain"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service"
)

// publishConcurrency bounds parallel archive uploads so a batch publish
// does not swamp the portal.
const publishConcurrency = 4

func newPublishCmd(s *session) *cobra.Command {
	var (
		title string
		tags  []string
		share string
	)

	cmd := &cobra.Command{
		Use:   "publish <archive.zip> [more.zip ...]",
		Short: "Publish shapefile archives as new hosted feature layers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := domain.ParseSharingLevel(share)
			if err != nil {
				return err
			}
			if title != "" && len(args) > 1 {
				return fmt.Errorf("--title applies to a single archive; got %d", len(args))
			}

			pipeline, err := s.pipeline()
			if err != nil {
				return err
			}

			type result struct {
				archive string
				report  *domain.Report
			}
			results := make([]result, len(args))

			var mu sync.Mutex
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(publishConcurrency)
			for i, path := range args {
				g.Go(func() error {
					data, err := os.ReadFile(path) //nolint:gosec // user-supplied path
					if err != nil {
						return fmt.Errorf("read %s: %w", path, err)
					}
					rep := pipeline.Run(ctx, service.IngestRequest{
						Archive: domain.Archive{Name: filepath.Base(path), Bytes: data},
						Title:   title,
						Tags:    tags,
						Share:   level,
					})
					mu.Lock()
					results[i] = result{archive: path, report: rep}
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if err := printReport(cmd.OutOrStdout(), s.output, r.archive, r.report); err != nil {
					return err
				}
				if !r.report.Success {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d archives failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Layer title (single archive only; defaults to the shapefile name)")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Item tags")
	cmd.Flags().StringVar(&share, "share", "private", "Sharing level (private, organization, public)")

	// Deduplicate tags passed both comma-separated and repeated.
	cmd.PreRun = func(_ *cobra.Command, _ []string) {
		seen := map[string]bool{}
		out := tags[:0]
		for _, t := range tags {
			t = strings.TrimSpace(t)
			if t != "" && !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
		tags = out
	}

	return cmd
}
