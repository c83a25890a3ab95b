package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"market-intel/internal/config"
	"market-intel/internal/logging"
	"market-intel/internal/notify"
	"market-intel/internal/scheduler"
	"market-intel/internal/store"
)

// Version is set at build time.
var Version = "dev"

// App holds the shared dependencies for CLI commands. Dependencies are
// opened lazily so commands like "config path" work without a database.
type App struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  store.DataStore

	configDir string
	debug     bool
}

func (a *App) init() error {
	cfg, err := config.Load(a.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	if cfg.Logging.File != "" {
		logCfg.FilePath = cfg.Logging.File
	}
	if a.debug {
		logCfg.Level = "debug"
	}
	a.logger = logging.NewLoggerWithConfig(logCfg)
	return nil
}

func (a *App) openStore() error {
	st, err := store.NewSQLiteStore(a.cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	a.store = st
	return nil
}

func (a *App) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close store")
		}
	}
}

func (a *App) newScheduler() *scheduler.Scheduler {
	notifier := notify.NewMultiNotifier(&a.cfg.Notifications)
	return scheduler.New(a.store, a.cfg, notifier, a.logger)
}

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "intel",
		Short: "E-commerce market intelligence",
		Long: `Market intelligence pipeline for e-commerce marketplaces.

Scrapes product listings from configured sources, aggregates them into
analysis snapshots, raises alerts on significant market movements, and
serves the results over an HTTP dashboard API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return app.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.configDir, "config", "", "config directory (default ~/.config/market-intel)")
	rootCmd.PersistentFlags().BoolVar(&app.debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")

	rootCmd.AddCommand(
		newServeCmd(app),
		newScrapeCmd(app),
		newAnalyzeCmd(app),
		newAlertsCmd(app),
		newReportCmd(app),
		newSourcesCmd(app),
		newConfigCmd(app),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "intel %s\n", Version)
		},
	}
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
