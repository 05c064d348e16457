// Package orders translates trading intents into broker order submissions and
// tracks per-order lifecycle.
package orders

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"momentum-trader/internal/broker"
	"momentum-trader/internal/errors"
	"momentum-trader/internal/logging"
	"momentum-trader/internal/models"
)

// PriceParams carries the kind-specific price parameters of an order. Exactly
// one field is meaningful per order kind.
type PriceParams struct {
	LimitPrice  float64
	StopPrice   float64
	TrailAmount float64
}

// Manager issues typed orders through the correlator. Order ids are seeded
// from the broker's next-valid-id and incremented atomically, never reused.
type Manager struct {
	correlator *broker.Correlator
	logger     zerolog.Logger

	nextID int64 // atomic

	mu     sync.Mutex
	failed map[int64]bool // ids the broker rejected as duplicates
}

// NewManager creates an order manager. It fetches the broker's next valid
// order id to seed the local counter.
func NewManager(c *broker.Correlator, timeout time.Duration, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{
		correlator: c,
		logger:     logging.WithComponent(logger, "orders"),
		failed:     make(map[int64]bool),
	}

	seed, err := c.RequestNextValidID(timeout)
	if err != nil {
		return nil, errors.Wrap(err, "seeding order id counter")
	}
	atomic.StoreInt64(&m.nextID, seed)

	c.OnOrderError(m.handleOrderError)
	return m, nil
}

func (m *Manager) allocateID() int64 {
	return atomic.AddInt64(&m.nextID, 1) - 1
}

// handleOrderError self-heals on duplicate-order-id rejections: the in-flight
// submission is considered failed and the counter is re-seeded so the caller
// can retry with a fresh id. It runs on the session's dispatch goroutine, so
// the re-seed round-trip happens on its own goroutine: the answer arrives on
// the very dispatch path this callback is holding.
func (m *Manager) handleOrderError(orderID int64, code int, msg string) {
	if code != broker.CodeDuplicateOrderID {
		m.logger.Warn().Int64("order_id", orderID).Int("code", code).Str("msg", msg).Msg("Order error")
		return
	}

	m.mu.Lock()
	m.failed[orderID] = true
	m.mu.Unlock()

	go m.reseed(orderID)
}

func (m *Manager) reseed(orderID int64) {
	seed, err := m.correlator.RequestNextValidID(5 * time.Second)
	if err != nil {
		m.logger.Error().Err(err).Msg("Re-requesting next valid id after duplicate")
		return
	}
	for {
		cur := atomic.LoadInt64(&m.nextID)
		if seed <= cur || atomic.CompareAndSwapInt64(&m.nextID, cur, seed) {
			break
		}
	}
	m.logger.Info().Int64("order_id", orderID).Int64("new_seed", seed).Msg("Order id counter re-seeded after duplicate")
}

// Failed reports whether a submission was rejected as a duplicate id; such an
// attempt must be retried by the caller with a new Place call.
func (m *Manager) Failed(orderID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed[orderID]
}

// Place allocates a fresh order id and submits the order. The call is
// fire-and-forget: status arrives asynchronously through the correlator.
func (m *Manager) Place(symbol string, side models.OrderSide, kind models.OrderKind, quantity int, params PriceParams) (int64, error) {
	if quantity <= 0 {
		return 0, errors.Wrapf(errors.ErrInvalidOrder, "quantity %d", quantity)
	}
	if err := validateParams(kind, params); err != nil {
		return 0, err
	}

	id := m.allocateID()
	order := models.Order{
		ID:          id,
		Symbol:      symbol,
		Side:        side,
		Kind:        kind,
		Quantity:    quantity,
		LimitPrice:  params.LimitPrice,
		StopPrice:   params.StopPrice,
		TrailAmount: params.TrailAmount,
		Status:      models.OrderSubmitted,
		PlacedAt:    time.Now(),
	}

	if err := m.correlator.Session().SubmitOrder(order); err != nil {
		return 0, errors.NewOrderError(id, symbol, "submit", err)
	}

	logging.LogOrder(m.logger, id, symbol, string(side), string(kind), string(models.OrderSubmitted))
	return id, nil
}

func validateParams(kind models.OrderKind, p PriceParams) error {
	switch kind {
	case models.OrderKindMarket:
		if p.LimitPrice != 0 || p.StopPrice != 0 || p.TrailAmount != 0 {
			return errors.Wrap(errors.ErrInvalidOrder, "market order takes no price params")
		}
	case models.OrderKindLimit:
		if p.LimitPrice <= 0 || p.StopPrice != 0 || p.TrailAmount != 0 {
			return errors.Wrap(errors.ErrInvalidOrder, "limit order needs a limit price only")
		}
	case models.OrderKindStop:
		if p.StopPrice <= 0 || p.LimitPrice != 0 || p.TrailAmount != 0 {
			return errors.Wrap(errors.ErrInvalidOrder, "stop order needs a stop price only")
		}
	case models.OrderKindTrailingStop:
		if p.TrailAmount <= 0 || p.LimitPrice != 0 || p.StopPrice != 0 {
			return errors.Wrap(errors.ErrInvalidOrder, "trailing stop needs a trail amount only")
		}
	default:
		return errors.Wrapf(errors.ErrInvalidOrder, "unknown kind %q", kind)
	}
	return nil
}

// PlaceMarket submits a market order.
func (m *Manager) PlaceMarket(symbol string, side models.OrderSide, quantity int) (int64, error) {
	return m.Place(symbol, side, models.OrderKindMarket, quantity, PriceParams{})
}

// PlaceLimitBuy submits a limit buy at the given price.
func (m *Manager) PlaceLimitBuy(symbol string, quantity int, limitPrice float64) (int64, error) {
	return m.Place(symbol, models.OrderSideBuy, models.OrderKindLimit, quantity, PriceParams{LimitPrice: limitPrice})
}

// PlaceTrailingStop submits a sell-side trailing stop with the given dollar
// trail amount.
func (m *Manager) PlaceTrailingStop(symbol string, quantity int, trailAmount float64) (int64, error) {
	return m.Place(symbol, models.OrderSideSell, models.OrderKindTrailingStop, quantity, PriceParams{TrailAmount: trailAmount})
}

// Cancel cancels an order. Best effort: the order may already have filled, and
// callers must tolerate that race.
func (m *Manager) Cancel(orderID int64) error {
	if err := m.correlator.Session().CancelOrder(orderID); err != nil {
		return errors.NewOrderError(orderID, "", "cancel", err)
	}
	m.logger.Info().Int64("order_id", orderID).Msg("Order cancel requested")
	return nil
}

// Status returns the last known state of an order.
func (m *Manager) Status(orderID int64) (models.Order, bool) {
	return m.correlator.StatusFor(orderID)
}

// IsOpen reports whether the order is still working at the broker.
func (m *Manager) IsOpen(orderID int64) bool {
	return m.correlator.IsOpen(orderID)
}

// ExecutionsFor returns fills for a symbol in the order they were reported.
func (m *Manager) ExecutionsFor(symbol string) []models.Execution {
	return m.correlator.ExecutionsForSymbol(symbol)
}

// RefreshExecutions asks the broker to re-report fills and waits, bounded,
// for the stream to finish. A timeout means no fresh data this cycle.
func (m *Manager) RefreshExecutions(timeout time.Duration) error {
	reqID := m.correlator.NextRequestID()
	h, err := m.correlator.SubmitExecutions(reqID)
	if err != nil {
		return err
	}
	return m.correlator.Await(h, timeout)
}
