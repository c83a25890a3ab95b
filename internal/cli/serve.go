package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"market-intel/internal/dashboard"
	"market-intel/internal/stream"
)

func newServeCmd(app *App) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server and background pipeline",
		Long: `Starts the HTTP dashboard API and, unless disabled, the background
scheduler that scrapes sources, refreshes snapshots, and evaluates alerts.
Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.openStore(); err != nil {
				return err
			}
			defer app.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 2)

			hub := stream.NewHub()
			hub.Start(ctx)
			defer hub.Stop()

			if !noScheduler {
				sched := app.newScheduler()
				sched.AttachHub(hub)
				go func() {
					errCh <- sched.Start(ctx)
				}()
			}

			srv := dashboard.NewServer(app.store, app.cfg, app.logger)
			srv.AttachHub(hub)
			go func() {
				errCh <- srv.Run(ctx)
			}()

			select {
			case <-ctx.Done():
				app.logger.Info().Msg("Shutting down")
				// Let the server finish its graceful shutdown.
				return <-errCh
			case err := <-errCh:
				stop()
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without the background pipeline")
	return cmd
}
