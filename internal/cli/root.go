package cli

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ghost-coach/internal/config"
	"ghost-coach/internal/judge"
	"ghost-coach/internal/logging"
	"ghost-coach/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-01-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
	Judge  judge.Judge
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize SQLite store
	dataStore, err := store.NewSQLiteStore(cfg.Coach.DatabasePath, cfg.Coach.CandleCap)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = dataStore
		logger.Debug().Msg("SQLite store initialized")
	}

	// Initialize judge if OpenAI API key is available
	if cfg.HasJudge() {
		app.Judge = judge.NewOpenAIJudge(
			cfg.Credentials.OpenAI.APIKey,
			cfg.Judge.Model,
			time.Duration(cfg.Judge.TimeoutSeconds)*time.Second,
		)
		logger.Debug().Str("model", cfg.Judge.Model).Msg("OpenAI judge initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "ghost",
		Short: "Ghost Coach - behavioral trading journal and coach",
		Long: `Ghost Coach is a terminal trading journal with a behavioral coach.

It streams live candles from Binance, audits every trade intent against your
own history before execution, and keeps a local journal with post-trade
reflections, a psychological profile and a personalized playbook.

Use 'ghost help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/ghost-coach)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newTerminalCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))
	rootCmd.AddCommand(newDashboardCmd(app))
	rootCmd.AddCommand(newPlaybookCmd(app))
	rootCmd.AddCommand(newLessonsCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Ghost Coach v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Market Configuration")
	output.Printf("  Symbol:          %s\n", cfg.Market.Symbol)
	output.Printf("  Interval:        %s\n", cfg.Market.Interval)
	output.Printf("  History Limit:   %d\n", cfg.Market.HistoryLimit)
	output.Printf("  REST Base:       %s\n", cfg.Market.RESTBase)
	output.Printf("  WS Base:         %s\n", cfg.Market.WSBase)
	output.Println()

	output.Bold("Coach Configuration")
	output.Printf("  Countdown:       %ds\n", cfg.Coach.CountdownSeconds)
	output.Printf("  Candle Cap:      %d\n", cfg.Coach.CandleCap)
	output.Printf("  Database:        %s\n", cfg.Coach.DatabasePath)
	output.Println()

	output.Bold("Judge Configuration")
	output.Printf("  Model:           %s\n", cfg.Judge.Model)
	output.Printf("  Timeout:         %ds\n", cfg.Judge.TimeoutSeconds)
	output.Printf("  API Key Set:     %v\n", cfg.HasJudge())

	return nil
}
