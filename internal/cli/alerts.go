package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"market-intel/internal/models"
	"market-intel/internal/store"
)

func newAlertsCmd(app *App) *cobra.Command {
	var (
		category string
		severity string
		since    time.Duration
		limit    int
		pending  bool
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List recorded alert events",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if err := app.openStore(); err != nil {
				return err
			}
			defer app.close()

			filter := store.AlertFilter{
				Category: models.AlertCategory(category),
				Severity: models.Severity(severity),
				Limit:    limit,
			}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			if pending {
				delivered := false
				filter.Delivered = &delivered
			}

			alerts, err := app.store.GetAlerts(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("loading alerts: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(alerts)
			}

			if len(alerts) == 0 {
				output.Info("No alerts recorded")
				return nil
			}

			table := NewTable(output, "TIME", "SEVERITY", "CATEGORY", "TITLE", "DELIVERED")
			for _, a := range alerts {
				delivered := ""
				if a.Delivered {
					delivered = "yes"
				}
				table.AddRow(
					a.CreatedAt.Format("2006-01-02 15:04"),
					output.Severity(string(a.Severity)),
					string(a.Category),
					a.Title,
					delivered,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "filter by alert category")
	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity (critical, high, medium, low)")
	cmd.Flags().DurationVar(&since, "since", 0, "only alerts newer than this age (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum alerts to show")
	cmd.Flags().BoolVar(&pending, "pending", false, "only undelivered alerts")
	return cmd
}
