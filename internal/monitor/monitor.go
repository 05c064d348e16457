// Package monitor implements the per-instrument trading state machine and the
// pool that runs one machine per tradable ticker.
package monitor

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"momentum-trader/internal/feed"
	"momentum-trader/internal/logging"
	"momentum-trader/internal/models"
	"momentum-trader/pkg/utils"
)

// OrderPlacer is the slice of the order manager the state machine needs.
type OrderPlacer interface {
	PlaceLimitBuy(symbol string, quantity int, limitPrice float64) (int64, error)
	PlaceTrailingStop(symbol string, quantity int, trailAmount float64) (int64, error)
	PlaceMarket(symbol string, side models.OrderSide, quantity int) (int64, error)
	Cancel(orderID int64) error
	IsOpen(orderID int64) bool
	RefreshExecutions(timeout time.Duration) error
	ExecutionsFor(symbol string) []models.Execution
}

// historyCap bounds the per-ticker price history; oldest samples are evicted
// first.
const historyCap = 100

// volumeRefreshEvery is the sample cadence at which volume figures are
// refreshed.
const volumeRefreshEvery = 10

// degradedAfter is the number of consecutive feed failures after which the
// monitor demotes its failure logging.
const degradedAfter = 3

// Hard filter thresholds: monitors stop for good below either of these.
const (
	minPrice     = 0.10
	minAvgVolume = 1_000_000
)

// TradeLog receives one record per completed trade.
type TradeLog interface {
	Append(record models.TradeRecord) error
}

// Config holds the state machine's tunables.
type Config struct {
	AccountValue     float64
	TradeSizePercent float64
	MaxVolumePercent float64
	VolumePriceRatio float64
	FastModeExit     time.Duration
	Cooldown         time.Duration
	BuyTimeout       time.Duration
	MaxTradeDuration time.Duration
	// AwaitTimeout bounds broker round-trips issued from the cycle.
	AwaitTimeout time.Duration
}

// DefaultConfig returns the standard state machine configuration.
func DefaultConfig() Config {
	return Config{
		AccountValue:     25000,
		TradeSizePercent: 100.0,
		MaxVolumePercent: 0.001,
		VolumePriceRatio: 1000,
		FastModeExit:     20 * time.Minute,
		Cooldown:         5 * time.Minute,
		BuyTimeout:       60 * time.Second,
		MaxTradeDuration: 10 * time.Minute,
		AwaitTimeout:     5 * time.Second,
	}
}

// Monitor runs the momentum state machine for one ticker. All state is owned
// by the Run loop; nothing here is shared with other monitors.
type Monitor struct {
	ticker string
	feed   feed.Feed
	orders OrderPlacer
	log    TradeLog
	cfg    Config
	clock  Clock
	logger zerolog.Logger

	running atomic.Bool

	// State machine fields, touched only by the Run loop.
	stage         models.Stage
	history       []models.PriceSample
	currentPrice  float64
	triggerPrice  float64
	entryPrice    float64
	sharesHeld    int
	activeOrderID int64
	stopOrderID   int64
	fastModeStart time.Time
	buyStageStart time.Time
	tradeStart    time.Time
	cooldownUntil time.Time
	todayVolume   int64
	avgVolume     int64
	volumeKnown   bool
	sampleCount   int
	feedFailures  int
	degraded      bool
}

// New creates a monitor for one ticker in the Monitoring stage.
func New(ticker string, f feed.Feed, om OrderPlacer, log TradeLog, cfg Config, clock Clock, logger zerolog.Logger) *Monitor {
	if clock == nil {
		clock = RealClock{}
	}
	return &Monitor{
		ticker: ticker,
		feed:   f,
		orders: om,
		log:    log,
		cfg:    cfg,
		clock:  clock,
		logger: logging.WithTicker(logger, ticker),
		stage:  models.StageMonitoring,
	}
}

// Ticker returns the symbol this monitor trades.
func (m *Monitor) Ticker() string { return m.ticker }

// Seed preloads the price history from historical bars, oldest first, so the
// trigger scan has a baseline before the first live sample. Must be called
// before Run starts.
func (m *Monitor) Seed(bars []models.Bar) {
	for _, b := range bars {
		m.history = append(m.history, models.PriceSample{Timestamp: b.Timestamp, Price: b.Close})
	}
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
	if len(bars) > 0 {
		m.logger.Info().Int("bars", len(bars)).Msg("History seeded")
	}
}

// Running reports whether the Run loop is still going.
func (m *Monitor) Running() bool { return m.running.Load() }

// Stage returns the current stage. Only meaningful once Run has returned or
// between synchronous Step calls in tests.
func (m *Monitor) Stage() models.Stage { return m.stage }

// Run drives the state machine until the context is cancelled or the hard
// filter stops the ticker. Sampling cadence depends on the current stage.
func (m *Monitor) Run(ctx context.Context) {
	m.running.Store(true)
	defer m.running.Store(false)

	m.logger.Info().Msg("Monitor started")
	for {
		if ctx.Err() != nil {
			m.logger.Info().Msg("Monitor stopped: shutdown")
			return
		}
		if stop := m.safeStep(ctx); stop {
			m.logger.Info().Msg("Monitor stopped: filtered out")
			return
		}
		if !m.clock.Sleep(ctx, m.interval()) {
			m.logger.Info().Msg("Monitor stopped: shutdown")
			return
		}
	}
}

// safeStep runs one cycle, containing panics so one bad cycle never takes the
// pool down; the cycle is simply retried after the normal sleep.
func (m *Monitor) safeStep(ctx context.Context) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("Cycle panicked")
			stop = false
		}
	}()
	return m.Step(ctx)
}

// interval returns the sleep between samples for the current stage. Cadence
// tightens as urgency increases.
func (m *Monitor) interval() time.Duration {
	switch m.stage {
	case models.StageFastMode:
		return 15 * time.Second
	case models.StageBuyStage:
		return 5 * time.Second
	case models.StageActiveTrade:
		return time.Second
	default:
		return 30 * time.Second
	}
}

// Step evaluates one cycle of the state machine against a fresh sample.
// It returns true when the hard filter has stopped the ticker. Exported so
// tests can drive the machine deterministically.
func (m *Monitor) Step(ctx context.Context) bool {
	now := m.clock.Now()

	price, err := m.feed.LatestTrade(ctx, m.ticker)
	if err != nil {
		m.feedFailure(err)
		return false
	}

	m.currentPrice = price
	m.history = append(m.history, models.PriceSample{Timestamp: now, Price: price})
	if len(m.history) > historyCap {
		m.history = m.history[len(m.history)-historyCap:]
	}
	m.sampleCount++

	// Refresh until the first success lands, then on the periodic cadence.
	// Without a measured volume the filter has nothing to judge, so a failed
	// refresh skips the cycle rather than stopping the ticker.
	if !m.volumeKnown || m.sampleCount%volumeRefreshEvery == 0 {
		if err := m.refreshVolume(ctx, now); err != nil {
			if !m.volumeKnown {
				m.feedFailure(err)
				return false
			}
			m.logger.Debug().Err(err).Msg("Volume refresh failed, keeping last figures")
		}
	}
	m.feedSuccess()

	if price < minPrice || m.avgVolume < minAvgVolume {
		m.logger.Info().
			Float64("price", price).
			Int64("avg_volume", m.avgVolume).
			Msg("Filter failed, stopping monitor")
		return true
	}

	switch m.stage {
	case models.StageMonitoring:
		m.stepMonitoring(now)
	case models.StageFastMode:
		m.stepFastMode(now)
	case models.StageBuyStage:
		m.stepBuyStage(now)
	case models.StageActiveTrade:
		m.stepActiveTrade(now)
	}
	return false
}

func (m *Monitor) feedFailure(err error) {
	m.feedFailures++
	if m.feedFailures >= degradedAfter {
		if !m.degraded {
			m.degraded = true
			m.logger.Warn().Err(err).Int("failures", m.feedFailures).Msg("Feed degraded, demoting failure logs")
		} else {
			m.logger.Debug().Err(err).Msg("Feed still unavailable")
		}
		return
	}
	m.logger.Warn().Err(err).Msg("Feed unavailable, skipping cycle")
}

func (m *Monitor) feedSuccess() {
	if m.degraded {
		m.logger.Info().Msg("Feed recovered")
	}
	m.feedFailures = 0
	m.degraded = false
}

func (m *Monitor) refreshVolume(ctx context.Context, now time.Time) error {
	v, err := m.feed.DailyVolume(ctx, m.ticker, now)
	if err != nil {
		return err
	}
	m.todayVolume = v.TodayVolume
	m.avgVolume = v.AvgVolume
	m.volumeKnown = true
	return nil
}

// --- Monitoring ---

func (m *Monitor) stepMonitoring(now time.Time) {
	// Cooldown pauses trigger evaluation only; samples keep accruing. The
	// same goes for hours outside the regular session.
	if now.Before(m.cooldownUntil) {
		return
	}
	if !utils.IsMarketOpen(now) {
		return
	}
	if !m.checkTrigger() {
		return
	}
	if !m.checkVolumeGate(now) {
		return
	}
	m.enterFastMode(now)
}

// checkTrigger scans the history for any point the current price has gained
// 15% or more from, oldest first. The matched price becomes the trigger.
func (m *Monitor) checkTrigger() bool {
	if len(m.history) < 2 {
		return false
	}
	current := m.last(1)
	for _, s := range m.history[:len(m.history)-1] {
		gain := (current - s.Price) / s.Price * 100
		if gain >= 15 {
			m.triggerPrice = s.Price
			m.logger.Info().
				Float64("gain_percent", gain).
				Float64("trigger_price", s.Price).
				Msg("Trigger condition met")
			return true
		}
	}
	return false
}

// checkVolumeGate applies the two volume conditions. The second condition's
// formula divides trade notional by (volume x price / hours since open); it is
// kept exactly as configured, odd units and all.
func (m *Monitor) checkVolumeGate(now time.Time) bool {
	if m.currentPrice <= 0 {
		return false
	}

	cond1 := float64(m.todayVolume) > m.currentPrice*m.cfg.VolumePriceRatio

	hoursOpen := utils.HoursSinceOpen(now)
	tradeAmount := m.cfg.AccountValue * m.cfg.TradeSizePercent / 100
	denominator := float64(m.todayVolume) * m.currentPrice / hoursOpen
	cond2 := denominator > 0 && m.cfg.MaxVolumePercent > tradeAmount/denominator

	return cond1 && cond2
}

func (m *Monitor) enterFastMode(now time.Time) {
	m.transition(models.StageFastMode, "momentum trigger", now)
	m.fastModeStart = now
}

// --- FastMode ---

func (m *Monitor) stepFastMode(now time.Time) {
	current := m.last(1)

	// Retrace below 3 points of gain over the trigger exits, regardless of
	// how large the original gain was.
	gain := (current - m.triggerPrice) / m.triggerPrice * 100
	if gain < 3 {
		m.transition(models.StageMonitoring, "gain retraced", now)
		return
	}

	if now.Sub(m.fastModeStart) > m.cfg.FastModeExit {
		m.transition(models.StageMonitoring, "fast mode time limit", now)
		return
	}

	if len(m.history) >= 3 && m.last(1) < m.last(2) && m.last(2) < m.last(3) {
		m.transition(models.StageMonitoring, "negative slope", now)
		return
	}

	priceOK := current >= m.triggerPrice*1.05
	timeOK := now.Sub(m.fastModeStart) >= 5*time.Minute
	slopeOK := len(m.history) >= 4 && m.last(1) > m.last(2) && m.last(2) > m.last(3)
	if priceOK && timeOK && slopeOK {
		m.enterBuyStage(now, current)
	}
}

func (m *Monitor) enterBuyStage(now time.Time, current float64) {
	tradeAmount := m.cfg.AccountValue * m.cfg.TradeSizePercent / 100
	shares := int(math.Floor(tradeAmount / current))
	if shares <= 0 {
		m.logger.Warn().Float64("price", current).Msg("Buy conditions met but sized to zero shares")
		return
	}

	orderID, err := m.orders.PlaceLimitBuy(m.ticker, shares, current)
	if err != nil {
		m.logger.Error().Err(err).Msg("Limit buy failed, staying in fast mode")
		return
	}
	m.activeOrderID = orderID
	m.transition(models.StageBuyStage, "buy conditions met", now)
	m.buyStageStart = now
	m.logger.Info().
		Int64("order_id", orderID).
		Int("shares", shares).
		Float64("limit_price", current).
		Msg("Limit buy placed")
}

// --- BuyStage ---

func (m *Monitor) stepBuyStage(now time.Time) {
	if m.checkBuyFill() {
		m.enterActiveTrade(now)
		return
	}

	if now.Sub(m.buyStageStart) > m.cfg.BuyTimeout {
		if err := m.orders.Cancel(m.activeOrderID); err != nil {
			m.logger.Warn().Err(err).Int64("order_id", m.activeOrderID).Msg("Cancel failed")
		}
		m.activeOrderID = 0
		m.transition(models.StageFastMode, "buy order timed out", now)
	}
}

// checkBuyFill refreshes executions from the broker and looks for a fill of
// the active order. A timed-out refresh just means no data this cycle.
func (m *Monitor) checkBuyFill() bool {
	if m.activeOrderID == 0 {
		return false
	}
	if m.orders.IsOpen(m.activeOrderID) {
		return false
	}

	if err := m.orders.RefreshExecutions(m.cfg.AwaitTimeout); err != nil {
		m.logger.Debug().Err(err).Msg("Execution refresh failed")
	}

	for _, exec := range m.orders.ExecutionsFor(m.ticker) {
		if exec.OrderID == m.activeOrderID {
			m.sharesHeld = exec.Shares
			m.entryPrice = exec.Price
			m.logger.Info().
				Int("shares", exec.Shares).
				Float64("entry_price", exec.Price).
				Msg("Buy order filled")
			return true
		}
	}
	return false
}

func (m *Monitor) enterActiveTrade(now time.Time) {
	m.transition(models.StageActiveTrade, "buy filled", now)
	m.tradeStart = now
	m.activeOrderID = 0

	trail := m.entryPrice * 0.02
	stopID, err := m.orders.PlaceTrailingStop(m.ticker, m.sharesHeld, trail)
	if err != nil {
		m.logger.Error().Err(err).Msg("Trailing stop failed")
		return
	}
	m.stopOrderID = stopID
	m.logger.Info().
		Int64("order_id", stopID).
		Float64("trail_amount", trail).
		Msg("Trailing stop placed")
}

// --- ActiveTrade ---

func (m *Monitor) stepActiveTrade(now time.Time) {
	current := m.last(1)
	profit := (current - m.entryPrice) / m.entryPrice * 100

	switch {
	case profit >= 3:
		m.exitTrade(now, "profit_target")
	case profit >= 1 && len(m.history) >= 3 && m.last(1) <= m.last(2):
		m.exitTrade(now, "profit_slope_flat")
	case now.Sub(m.tradeStart) >= m.cfg.MaxTradeDuration:
		m.exitTrade(now, "time_limit")
	}
}

// exitTrade sells the position at market, journals exactly one trade record,
// and returns to Monitoring with the cooldown armed.
func (m *Monitor) exitTrade(now time.Time, reason string) {
	if m.stopOrderID != 0 {
		if err := m.orders.Cancel(m.stopOrderID); err != nil {
			m.logger.Warn().Err(err).Int64("order_id", m.stopOrderID).Msg("Stop cancel failed")
		}
	}

	if _, err := m.orders.PlaceMarket(m.ticker, models.OrderSideSell, m.sharesHeld); err != nil {
		m.logger.Error().Err(err).Msg("Market sell failed")
	}

	current := m.last(1)
	profit := (current - m.entryPrice) / m.entryPrice * 100
	duration := now.Sub(m.tradeStart)

	record := models.NewTradeRecord(now, m.ticker, m.entryPrice, current, m.sharesHeld, profit, duration, reason)
	if m.log != nil {
		if err := m.log.Append(record); err != nil {
			m.logger.Error().Err(err).Msg("Journal append failed")
		}
	}
	logging.LogTradeExit(m.logger, m.ticker, m.entryPrice, current, profit, duration, reason)

	m.sharesHeld = 0
	m.entryPrice = 0
	m.activeOrderID = 0
	m.stopOrderID = 0
	m.tradeStart = time.Time{}
	m.cooldownUntil = now.Add(m.cfg.Cooldown)
	m.transition(models.StageMonitoring, reason, now)
}

// --- helpers ---

// last returns the n-th most recent price (1 = latest).
func (m *Monitor) last(n int) float64 {
	return m.history[len(m.history)-n].Price
}

func (m *Monitor) transition(to models.Stage, reason string, now time.Time) {
	logging.LogTransition(m.logger, m.ticker, string(m.stage), string(to), reason, m.currentPrice)
	m.stage = to
}
