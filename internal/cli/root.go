// Package cli provides the command-line interface for the trading application.
package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"momentum-trader/internal/broker"
	"momentum-trader/internal/config"
	"momentum-trader/internal/errors"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies shared across commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Concurrent momentum trading engine",
		Long: `trader monitors a universe of tickers concurrently, evaluates a
multi-stage momentum state machine per instrument against a live price feed,
and issues orders through the broker when thresholds are met.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newTickersCmd(app))
	rootCmd.AddCommand(newJournalCmd(app))
	rootCmd.AddCommand(newInitCmd(app))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("trader %s\n", Version)
		},
	}
}

func newInitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault("")
			if err != nil {
				return err
			}
			fmt.Printf("Config written to %s\n", path)
			return nil
		},
	}
}

// newSession builds the broker session for the configured trading mode. The
// live TWS transport is owned by an external gateway adapter; only the
// simulated session ships here.
func (app *App) newSession() (broker.Session, error) {
	if !app.Config.Broker.PaperTrading {
		return nil, errors.Wrap(errors.ErrConnectionFailed,
			"live trading requires an external broker gateway; set broker.paper_trading = true")
	}
	return broker.NewSimSession(), nil
}

func (app *App) requestTimeout() time.Duration {
	return time.Duration(app.Config.Broker.RequestTimeout) * time.Second
}
