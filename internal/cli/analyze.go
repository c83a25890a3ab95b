package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"market-intel/internal/analysis"
	"market-intel/internal/errors"
	"market-intel/internal/models"
	"market-intel/internal/store"
)

func newAnalyzeCmd(app *App) *cobra.Command {
	var (
		category string
		window   time.Duration
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate an analysis snapshot from stored records",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if err := app.openStore(); err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if window <= 0 {
				window = app.cfg.Analysis.Window
			}
			now := time.Now()
			windowStart := now.Add(-window)

			records, err := app.store.GetRecords(ctx, store.RecordFilter{
				Category: category,
				Start:    windowStart,
				End:      now,
			})
			if err != nil {
				return fmt.Errorf("loading records: %w", err)
			}
			if len(records) == 0 {
				return errors.NewInsufficientDataError("snapshot", 0, app.cfg.Analysis.MinRecords)
			}

			snap := analysis.Analyze(analysis.Input{
				Records:     records,
				WindowStart: windowStart,
				WindowEnd:   now,
				Category:    category,
				MinRecords:  app.cfg.Analysis.MinRecords,
				GeneratedAt: now,
			})

			if !dryRun {
				if err := app.store.SaveSnapshot(ctx, snap); err != nil {
					return fmt.Errorf("saving snapshot: %w", err)
				}
			}

			if output.IsJSON() {
				return output.JSON(snap)
			}
			printSnapshot(output, snap)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "restrict analysis to one category")
	cmd.Flags().DurationVar(&window, "window", 0, "analysis window (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute without persisting the snapshot")
	return cmd
}

func printSnapshot(output *Output, snap *models.AnalysisSnapshot) {
	output.Bold("Analysis snapshot")
	output.Printf("  Window:  %s to %s\n", snap.WindowStart.Format("2006-01-02 15:04"), snap.WindowEnd.Format("2006-01-02 15:04"))
	output.Printf("  Records: %d\n", snap.RecordCount)
	if snap.Category != "" {
		output.Printf("  Category: %s\n", snap.Category)
	}
	if snap.LowConfidence {
		output.Warning("  Low confidence: not enough records for aggregates")
		return
	}

	if snap.Pricing != nil {
		output.Println()
		output.Info("Pricing (%d samples)", snap.Pricing.SampleSize)
		output.Printf("  Average %.2f  Median %.2f  Range %.2f-%.2f\n",
			snap.Pricing.Average, snap.Pricing.Median, snap.Pricing.Min, snap.Pricing.Max)
		output.Printf("  Discounted %.1f%%  Bulk pricing on %d listings\n",
			snap.Pricing.DiscountRate, snap.Pricing.BulkPricingCount)
	}
	if snap.Supplier != nil {
		output.Println()
		output.Info("Suppliers (%d distinct)", snap.Supplier.SupplierCount)
		output.Printf("  Verified %.1f%%  Countries %d\n",
			snap.Supplier.VerificationRate, len(snap.Supplier.CountryCounts))
	}
	if snap.Quality != nil && snap.Quality.RatingSampleSize > 0 {
		output.Println()
		output.Info("Quality")
		output.Printf("  Average rating %.2f over %d ratings\n",
			snap.Quality.AvgRating, snap.Quality.RatingSampleSize)
	}
	if snap.Trends != nil && len(snap.Trends.TopCategories) > 0 {
		output.Println()
		output.Info("Top categories by views")
		table := NewTable(output, "CATEGORY", "AVG VIEWS")
		for _, tc := range snap.Trends.TopCategories {
			table.AddRow(tc.Category, fmt.Sprintf("%d", tc.Views))
		}
		table.Render()
	}
}
