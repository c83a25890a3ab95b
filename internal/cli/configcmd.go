package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"market-intel/internal/config"
	"market-intel/internal/logging"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			dir := app.configDir
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, "config.toml"))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				// Secrets are masked even in machine output.
				redacted := *app.cfg
				redacted.Notifications.Webhook.URL = logging.MaskURL(redacted.Notifications.Webhook.URL)
				redacted.Notifications.Email.Password = logging.MaskCredential(redacted.Notifications.Email.Password)
				return output.JSON(redacted)
			}

			output.Bold("Database")
			output.Printf("  path: %s\n", app.cfg.Database.Path)
			output.Println()
			output.Bold("Sources")
			for _, src := range app.cfg.Sources() {
				state := "enabled"
				if !src.Enabled {
					state = "disabled"
				}
				output.Printf("  %s (%s, %s) every %s\n", src.ID, src.Kind, state, src.ScrapeInterval)
			}
			output.Println()
			output.Bold("Analysis")
			output.Printf("  window: %s, min records: %d\n", app.cfg.Analysis.Window, app.cfg.Analysis.MinRecords)
			output.Println()
			output.Bold("Dashboard")
			output.Printf("  listen: %s, cache TTL: %s\n", app.cfg.Dashboard.ListenAddr, app.cfg.Dashboard.CacheTTL)
			output.Println()
			output.Bold("Notifications")
			output.Printf("  enabled: %t, webhook: %t, email: %t\n",
				app.cfg.Notifications.Enabled,
				app.cfg.Notifications.Webhook.Enabled,
				app.cfg.Notifications.Email.Enabled)
			if app.cfg.Notifications.Webhook.URL != "" {
				output.Printf("  webhook URL: %s\n", logging.MaskURL(app.cfg.Notifications.Webhook.URL))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.cfg.Validate(); err != nil {
				return err
			}
			output.Success("Configuration is valid (%d sources)", len(app.cfg.Sources()))
			return nil
		},
	})

	return cmd
}
