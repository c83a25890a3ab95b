package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newScrapeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape [source-id]",
		Short: "Run a scrape cycle",
		Long: `Scrapes the named source, or all enabled sources when no argument is
given. Each successful scrape chains a fresh analysis and alert evaluation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if err := app.openStore(); err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			sched := app.newScheduler()
			if err := sched.SeedSources(ctx); err != nil {
				return err
			}

			targets := make([]string, 0)
			if len(args) == 1 {
				found := false
				for _, src := range app.cfg.Sources() {
					if src.ID == args[0] {
						found = true
						break
					}
				}
				if !found {
					return fmt.Errorf("unknown source %q", args[0])
				}
				targets = append(targets, args[0])
			} else {
				for _, src := range app.cfg.Sources() {
					if src.Enabled {
						targets = append(targets, src.ID)
					}
				}
			}

			if len(targets) == 0 {
				output.Warning("No enabled sources configured")
				return nil
			}

			for _, id := range targets {
				started := time.Now()
				if err := sched.RunScrape(ctx, id); err != nil {
					output.Error("%s: %v", id, err)
					continue
				}
				if !output.IsJSON() {
					output.Success("%s: scrape cycle completed in %s", id, time.Since(started).Round(time.Millisecond))
				}
			}
			return nil
		},
	}
	return cmd
}
