package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSourcesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Show configured sources and their health",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if err := app.openStore(); err != nil {
				return err
			}
			defer app.close()

			sources, err := app.store.GetSources(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading sources: %w", err)
			}
			if len(sources) == 0 {
				// Fall back to config when nothing has been seeded yet.
				sources = app.cfg.Sources()
			}

			if output.IsJSON() {
				return output.JSON(sources)
			}

			threshold := app.cfg.Scraping.DegradedThreshold
			table := NewTable(output, "SOURCE", "KIND", "ENABLED", "LAST SCRAPED", "FAILURES", "HEALTH")
			for _, src := range sources {
				enabled := "no"
				if src.Enabled {
					enabled = "yes"
				}
				lastScraped := "never"
				if src.LastScraped != nil {
					lastScraped = src.LastScraped.Format("2006-01-02 15:04")
				} else if !src.Enabled {
					lastScraped = "-"
				}
				table.AddRow(
					src.ID,
					string(src.Kind),
					enabled,
					lastScraped,
					fmt.Sprintf("%d", src.ConsecutiveFailures),
					output.HealthTag(src.Healthy(threshold)),
				)
			}
			table.Render()

			logsSince := time.Now().Add(-24 * time.Hour)
			for _, src := range sources {
				logs, err := app.store.GetScrapeLogs(cmd.Context(), src.ID, logsSince)
				if err != nil || len(logs) == 0 {
					continue
				}
				latest := logs[0]
				output.Dim("%s: last run %s, %d found, %d new, %d dropped",
					src.ID, string(latest.Status), latest.ItemsFound, latest.ItemsNew, latest.ItemsDropped)
			}
			return nil
		},
	}
	return cmd
}
