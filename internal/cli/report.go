package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"market-intel/internal/content"
	"market-intel/internal/errors"
)

func newReportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the daily market summary and content opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if err := app.openStore(); err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			sched := app.newScheduler()
			summary, err := sched.BuildSummary(ctx, time.Now())
			if err != nil {
				return err
			}

			snap, err := app.store.GetLatestSnapshot(ctx, "")
			if err != nil {
				return fmt.Errorf("loading snapshot: %w", err)
			}
			if snap == nil {
				return fmt.Errorf("building report: %w", errors.ErrNoBaseline)
			}
			opportunities := content.Generate(snap, app.cfg.Analysis.MinRecords)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"summary":       summary,
					"opportunities": opportunities,
				})
			}

			lines := []string{
				fmt.Sprintf("Records analyzed:  %d", summary.RecordCount),
				fmt.Sprintf("Sources healthy:   %d/%d", summary.HealthySources, summary.SourceCount),
				fmt.Sprintf("Alerts (24h):      %d (%d critical)", summary.AlertCount, summary.CriticalAlerts),
			}
			if summary.TopCategory != "" {
				lines = append(lines, fmt.Sprintf("Top category:      %s", summary.TopCategory))
			}
			if summary.AvgPrice > 0 {
				lines = append(lines, fmt.Sprintf("Average price:     %.2f", summary.AvgPrice))
			}
			if summary.VerificationRate > 0 {
				lines = append(lines, fmt.Sprintf("Verified rate:     %.1f%%", summary.VerificationRate))
			}
			output.Box(fmt.Sprintf("Market Summary %s", summary.Date), lines)

			if len(opportunities) == 0 {
				output.Dim("No content opportunities with sufficient data")
				return nil
			}

			output.Println()
			output.Bold("Content opportunities")
			table := NewTable(output, "TEMPLATE", "TITLE", "CONFIDENCE")
			for _, opp := range opportunities {
				table.AddRow(string(opp.TemplateType), opp.Title, fmt.Sprintf("%.0f%%", opp.Confidence*100))
			}
			table.Render()
			return nil
		},
	}
	return cmd
}
