package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rs/zerolog"

	"momentum-trader/internal/broker"
	"momentum-trader/internal/errors"
	"momentum-trader/internal/feed"
	"momentum-trader/internal/journal"
	"momentum-trader/internal/models"
	"momentum-trader/internal/monitor"
	"momentum-trader/internal/notify"
	"momentum-trader/internal/orders"
	"momentum-trader/internal/store"
	"momentum-trader/internal/universe"
)

// teeLog fans each completed trade out to the CSV journal, the store, and the
// terminal notifier. The journal is the sink of record; store and notifier
// failures are logged but never fail the trade exit.
type teeLog struct {
	journal  *journal.CSVJournal
	store    store.DataStore
	notifier *notify.Notifier
	logger   zerolog.Logger
}

func (t *teeLog) Append(record models.TradeRecord) error {
	t.notifier.TradeClosed(record)
	if err := t.store.LogTrade(context.Background(), record); err != nil {
		t.logger.Warn().Err(err).Str("ticker", record.Ticker).Msg("Store trade insert failed")
	}
	return t.journal.Append(record)
}

func newRunCmd(app *App) *cobra.Command {
	var tickersFlag []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start monitoring the tradable universe",
		Long: `Starts one monitor per tradable ticker and runs until interrupted.
Tickers come from --tickers, the saved tradable list, or the store cache,
in that order of preference.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return app.runPool(ctx, tickersFlag)
		},
	}

	cmd.Flags().StringSliceVar(&tickersFlag, "tickers", nil, "explicit tickers to monitor (skips the saved universe)")
	return cmd
}

func (app *App) runPool(ctx context.Context, explicit []string) error {
	cfg := app.Config
	logger := app.Logger

	// Broker session is fatal at startup: no session, no monitoring.
	session, err := app.newSession()
	if err != nil {
		return err
	}
	correlator := broker.NewCorrelator(session, cfg.Broker.MaxInflight, logger)
	if sim, ok := session.(*broker.SimSession); ok {
		sim.Start(correlator)
	}
	if err := session.Connect(ctx); err != nil {
		return errors.Wrap(err, "connecting broker session")
	}
	defer session.Close()

	orderManager, err := orders.NewManager(correlator, app.requestTimeout(), logger)
	if err != nil {
		return errors.Wrap(err, "initializing order manager")
	}

	marketFeed := feed.NewPolygonFeed(feed.PolygonConfig{
		APIKey:            cfg.Feed.APIKey,
		BaseURL:           cfg.Feed.BaseURL,
		Timeout:           time.Duration(cfg.Feed.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Feed.RequestsPerSecond,
	}, logger)

	csvLog, err := journal.NewCSVJournal(cfg.Paths.JournalFile)
	if err != nil {
		return err
	}
	st, err := store.NewSQLiteStore(cfg.Paths.DatabaseFile)
	if err != nil {
		return errors.Wrap(err, "opening store")
	}
	defer st.Close()

	notifier := notify.NewNotifier(100)
	notifier.Start()
	defer notifier.Stop()

	tradeLog := &teeLog{journal: csvLog, store: st, notifier: notifier, logger: logger}

	tickers := explicit
	if len(tickers) == 0 {
		tickers, err = app.loadUniverse(ctx, st)
		if err != nil {
			return err
		}
	}
	if len(tickers) == 0 {
		return errors.Wrap(errors.ErrConfigInvalid, "no tradable tickers; run 'trader tickers check' first")
	}

	monCfg := monitor.Config{
		AccountValue:     cfg.Trading.AccountValue,
		TradeSizePercent: cfg.Trading.TradeSizePercent,
		MaxVolumePercent: cfg.Volume.MaxVolumePercent,
		VolumePriceRatio: cfg.Volume.VolumePriceRatio,
		FastModeExit:     time.Duration(cfg.Monitor.FastModeExitMinutes) * time.Minute,
		Cooldown:         time.Duration(cfg.Monitor.CooldownMinutes) * time.Minute,
		BuyTimeout:       time.Duration(cfg.Monitor.BuyTimeoutSeconds) * time.Second,
		MaxTradeDuration: time.Duration(cfg.Monitor.MaxTradeMinutes) * time.Minute,
		AwaitTimeout:     app.requestTimeout(),
	}

	pool := monitor.NewPool(marketFeed, orderManager, tradeLog, monCfg, nil, logger)
	pool.Warmup = func(ctx context.Context, symbol string) ([]models.Bar, error) {
		reqID := correlator.NextRequestID()
		h, err := correlator.SubmitHistoricalBars(reqID, symbol, broker.OneDay5Min)
		if err != nil {
			return nil, err
		}
		if err := correlator.Await(h, app.requestTimeout()); err != nil {
			return nil, err
		}
		if h.HadError() {
			return nil, errors.Wrapf(errors.ErrNoData, "warmup bars for %s", symbol)
		}
		return h.Bars(), nil
	}
	pool.Start(ctx, tickers)

	color.Green("Monitoring %d tickers. Ctrl-C to stop.", pool.Size())

	<-ctx.Done()
	color.Yellow("Shutting down...")
	pool.StopAll()
	color.Red("Stopped.")
	return nil
}

// loadUniverse prefers the saved tradable file, falling back to the store
// cache from a previous tradability run.
func (app *App) loadUniverse(ctx context.Context, st store.DataStore) ([]string, error) {
	tickers, err := universe.LoadTradable(app.Config.Paths.TradableFile)
	if err != nil {
		return nil, err
	}
	if len(tickers) > 0 {
		return tickers, nil
	}
	return st.GetTradable(ctx)
}
