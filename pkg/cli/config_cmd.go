package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage connection profiles",
	}
	cmd.AddCommand(newConfigViewCmd())
	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigUseCmd())
	return cmd
}

func newConfigViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the stored profiles (tokens redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no config file at", ConfigPath())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current profile: %s\n", cfg.CurrentProfile)
			for name, p := range cfg.Profiles {
				token := ""
				if p.Token != "" {
					token = " (token stored)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s user=%s%s\n", name, p.PortalURL, p.Username, token)
			}
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	var (
		name      string
		portalURL string
		username  string
		token     string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = &UserConfig{CurrentProfile: name, Profiles: map[string]Profile{}}
			}
			p := cfg.Profiles[name]
			if portalURL != "" {
				p.PortalURL = portalURL
			}
			if username != "" {
				p.Username = username
			}
			if token != "" {
				p.Token = token
			}
			cfg.Profiles[name] = p
			if cfg.CurrentProfile == "" {
				cfg.CurrentProfile = name
			}
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile %q saved to %s\n", name, ConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "default", "Profile name")
	cmd.Flags().StringVar(&portalURL, "portal", "", "Portal URL")
	cmd.Flags().StringVar(&username, "username", "", "Portal username")
	cmd.Flags().StringVar(&token, "token", "", "Portal access token")
	return cmd
}

func newConfigUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <profile>",
		Short: "Switch the current profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return fmt.Errorf("no config file: run 'layerupdater config set' first")
			}
			if _, ok := cfg.Profiles[args[0]]; !ok {
				return fmt.Errorf("profile %q does not exist", args[0])
			}
			cfg.CurrentProfile = args[0]
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "current profile is now %q\n", args[0])
			return nil
		},
	}
}
