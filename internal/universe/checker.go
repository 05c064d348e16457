package universe

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"momentum-trader/internal/broker"
	"momentum-trader/internal/logging"
	"momentum-trader/internal/store"
)

// Checker validates symbols against the broker's contract database. Only
// plain US equities count as tradable.
type Checker struct {
	correlator *broker.Correlator
	store      store.DataStore
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewChecker creates a tradability checker.
func NewChecker(c *broker.Correlator, st store.DataStore, timeout time.Duration, logger zerolog.Logger) *Checker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		correlator: c,
		store:      st,
		timeout:    timeout,
		logger:     logging.WithComponent(logger, "universe"),
	}
}

// IsTradable checks one symbol through a contract-details round-trip. No
// contract records, a broker error, or a timeout all mean not tradable.
func (c *Checker) IsTradable(symbol string) (bool, error) {
	reqID := c.correlator.NextRequestID()
	h, err := c.correlator.SubmitContractDetails(reqID, symbol)
	if err != nil {
		return false, err
	}
	if err := c.correlator.Await(h, c.timeout); err != nil {
		return false, err
	}
	if h.HadError() {
		return false, nil
	}
	for _, d := range h.ContractDetails() {
		if d.IsUSStock() {
			return true, nil
		}
	}
	return false, nil
}

// syncTradability keys the stored timestamp of the last complete check pass.
const syncTradability = "tradability"

// CheckAll validates every symbol not yet checked, persisting each verdict so
// an interrupted run resumes where it left off. It returns the full tradable
// set including previously checked symbols.
func (c *Checker) CheckAll(ctx context.Context, symbols []string) ([]string, error) {
	if last := c.store.GetLastSync(syncTradability); !last.IsZero() {
		c.logger.Info().Time("last_complete_pass", last).Msg("Resuming tradability check")
	}

	checked := 0
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}

		done, err := c.store.IsChecked(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if done {
			continue
		}

		tradable, err := c.IsTradable(symbol)
		if err != nil {
			c.logger.Warn().Str("symbol", symbol).Err(err).Msg("Tradability check failed")
			continue
		}
		if err := c.store.MarkTradable(ctx, symbol, tradable); err != nil {
			return nil, err
		}
		checked++
		if checked%100 == 0 {
			c.logger.Info().Int("checked", checked).Msg("Tradability progress")
		}
	}

	// Only a pass that ran to completion moves the sync marker; an
	// interrupted run resumes from the per-symbol checkpoints instead.
	if ctx.Err() == nil {
		if err := c.store.SetLastSync(syncTradability, time.Now()); err != nil {
			c.logger.Warn().Err(err).Msg("Recording check completion time failed")
		}
	}

	return c.store.GetTradable(ctx)
}
