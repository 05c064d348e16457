package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"momentum-trader/internal/broker"
	"momentum-trader/internal/errors"
	"momentum-trader/internal/store"
	"momentum-trader/internal/universe"
)

func newTickersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickers",
		Short: "Manage the ticker universe",
	}

	cmd.AddCommand(newTickersCheckCmd(app))
	cmd.AddCommand(newTickersListCmd(app))
	return cmd
}

func newTickersCheckCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check tradability of every candidate ticker",
		Long: `Runs each candidate from the tickers file through a contract-details
round-trip and saves the tradable set. Progress is persisted, so an
interrupted run resumes where it left off.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.checkTickers(ctx)
		},
	}
}

func newTickersListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the saved tradable tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			tickers, err := universe.LoadTradable(app.Config.Paths.TradableFile)
			if err != nil {
				return err
			}
			for _, t := range tickers {
				cmd.Println(t)
			}
			color.Green("%d tradable tickers", len(tickers))
			return nil
		},
	}
}

func (app *App) checkTickers(ctx context.Context) error {
	candidates, err := universe.LoadTickers(app.Config.Paths.TickersFile)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "no candidate tickers found")
	}

	session, err := app.newSession()
	if err != nil {
		return err
	}
	correlator := broker.NewCorrelator(session, app.Config.Broker.MaxInflight, app.Logger)
	if sim, ok := session.(*broker.SimSession); ok {
		sim.Start(correlator)
	}
	if err := session.Connect(ctx); err != nil {
		return errors.Wrap(err, "connecting broker session")
	}
	defer session.Close()

	st, err := store.NewSQLiteStore(app.Config.Paths.DatabaseFile)
	if err != nil {
		return err
	}
	defer st.Close()

	checker := universe.NewChecker(correlator, st, app.requestTimeout(), app.Logger)
	tradable, err := checker.CheckAll(ctx, candidates)
	if err != nil {
		return err
	}

	if err := universe.SaveTradable(app.Config.Paths.TradableFile, tradable); err != nil {
		return err
	}
	color.Green("Saved %d tradable tickers to %s", len(tradable), app.Config.Paths.TradableFile)
	return nil
}
