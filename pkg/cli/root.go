// Package cli implements the layerupdater command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/danielmorris2014/arcgislayerupdaterr/internal/arcgis"
	"github.com/danielmorris2014/arcgislayerupdaterr/internal/service"
)

var (
	version = "dev"
	commit  = "none"
)

// session holds the resolved portal connection for one invocation.
type session struct {
	portalURL string
	username  string
	token     string
	output    string
	verbose   bool
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	s := &session{}
	var profile string

	rootCmd := &cobra.Command{
		Use:           "layerupdater",
		Short:         "Publish and update hosted feature layers from shapefile archives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				// Config file is optional.
				cfg = &UserConfig{Profiles: map[string]Profile{}}
			}
			p := cfg.ActiveProfile(profile)

			// Precedence: flag > env > profile > default.
			if !cmd.Flags().Changed("portal") {
				if v := os.Getenv("LAYERUPDATER_PORTAL"); v != "" {
					s.portalURL = v
				} else if p.PortalURL != "" {
					s.portalURL = p.PortalURL
				}
			}
			if !cmd.Flags().Changed("username") {
				if v := os.Getenv("LAYERUPDATER_USERNAME"); v != "" {
					s.username = v
				} else if p.Username != "" {
					s.username = p.Username
				}
			}
			if !cmd.Flags().Changed("token") {
				if v := os.Getenv("LAYERUPDATER_TOKEN"); v != "" {
					s.token = v
				} else if p.Token != "" {
					s.token = p.Token
				}
			}
			if !cmd.Flags().Changed("output") && p.Output != "" {
				s.output = p.Output
			}
			if s.output != "text" && s.output != "json" {
				return fmt.Errorf("unsupported output format %q: use 'text' or 'json'", s.output)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.portalURL, "portal", "https://www.arcgis.com", "Portal URL")
	rootCmd.PersistentFlags().StringVar(&s.username, "username", "", "Portal username")
	rootCmd.PersistentFlags().StringVar(&s.token, "token", "", "Portal access token")
	rootCmd.PersistentFlags().StringVarP(&s.output, "output", "o", "text", "Output format (text, json)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "Verbose stage logging")

	rootCmd.AddCommand(newPublishCmd(s))
	rootCmd.AddCommand(newUpdateCmd(s))
	rootCmd.AddCommand(newLayersCmd(s))
	rootCmd.AddCommand(newCheckCmd(s))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// logger builds the CLI stage logger: quiet by default, stage-level detail
// with --verbose.
func (s *session) logger() *slog.Logger {
	level := slog.LevelWarn
	if s.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// portalClient resolves credentials (prompting for a token when absent) and
// builds the portal client.
func (s *session) portalClient() (*arcgis.Client, error) {
	if s.username == "" {
		return nil, fmt.Errorf("portal username is required (--username, LAYERUPDATER_USERNAME, or profile)")
	}
	if s.token == "" {
		fmt.Fprintf(os.Stderr, "Portal token for %s: ", s.username)
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		s.token = string(raw)
	}
	if s.token == "" {
		return nil, fmt.Errorf("portal token is required")
	}
	return arcgis.NewClient(s.portalURL, s.username, s.token, arcgis.WithLogger(s.logger())), nil
}

// pipeline builds a local pipeline against the portal, extracting into the
// system temp directory.
func (s *session) pipeline() (*service.PipelineService, error) {
	client, err := s.portalClient()
	if err != nil {
		return nil, err
	}
	return service.NewPipelineService(client, nil, os.TempDir(), s.logger()), nil
}
