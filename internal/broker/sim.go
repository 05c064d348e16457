package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"momentum-trader/internal/errors"
	"momentum-trader/internal/models"
)

// SimSession is an in-process broker session used for paper trading and tests.
// It keeps simulated contract, bar, and quote tables and delivers every event
// through a single dispatch goroutine, matching the ordering contract of a
// real session.
type SimSession struct {
	mu        sync.Mutex
	handler   SessionHandler
	contracts map[string][]models.ContractDetail
	bars      map[string][]models.Bar
	quotes    map[string]float64
	orders    map[int64]*simOrder
	usedIDs   map[int64]bool
	execSeq   int
	nextID    int64
	connected bool

	events chan func(SessionHandler)
	done   chan struct{}
	once   sync.Once
}

type simOrder struct {
	order     models.Order
	trailHigh float64
}

// NewSimSession creates a simulated session. Start must be called with the
// handler before any request is issued.
func NewSimSession() *SimSession {
	return &SimSession{
		contracts: make(map[string][]models.ContractDetail),
		bars:      make(map[string][]models.Bar),
		quotes:    make(map[string]float64),
		orders:    make(map[int64]*simOrder),
		usedIDs:   make(map[int64]bool),
		nextID:    1,
		events:    make(chan func(SessionHandler), 256),
		done:      make(chan struct{}),
	}
}

// Start binds the handler and starts the dispatch goroutine.
func (s *SimSession) Start(handler SessionHandler) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
	go s.dispatchLoop()
}

func (s *SimSession) dispatchLoop() {
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.events:
			s.mu.Lock()
			h := s.handler
			s.mu.Unlock()
			if h != nil {
				fn(h)
			}
		}
	}
}

func (s *SimSession) emit(fn func(SessionHandler)) {
	select {
	case s.events <- fn:
	case <-s.done:
	}
}

// AddContract registers a contract record for a symbol.
func (s *SimSession) AddContract(detail models.ContractDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[detail.Symbol] = append(s.contracts[detail.Symbol], detail)
}

// AddBars registers historical bars for a symbol.
func (s *SimSession) AddBars(symbol string, bars []models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = append(s.bars[symbol], bars...)
}

// SetQuote updates the simulated market price for a symbol and re-evaluates
// resting orders against it.
func (s *SimSession) SetQuote(symbol string, price float64) {
	s.mu.Lock()
	s.quotes[symbol] = price
	var fills []*simOrder
	for _, so := range s.orders {
		if so.order.Symbol != symbol || so.order.Status.Terminal() {
			continue
		}
		if s.shouldFill(so, price) {
			fills = append(fills, so)
		}
	}
	s.mu.Unlock()

	for _, so := range fills {
		s.fill(so, price)
	}
}

// shouldFill applies the simulated fill rules. Callers hold mu.
func (s *SimSession) shouldFill(so *simOrder, price float64) bool {
	o := so.order
	switch o.Kind {
	case models.OrderKindMarket:
		return true
	case models.OrderKindLimit:
		if o.Side == models.OrderSideBuy {
			return price <= o.LimitPrice
		}
		return price >= o.LimitPrice
	case models.OrderKindStop:
		if o.Side == models.OrderSideSell {
			return price <= o.StopPrice
		}
		return price >= o.StopPrice
	case models.OrderKindTrailingStop:
		// Sell-side trail: the trigger follows the high-water mark down by
		// the trail amount, never upward.
		if price > so.trailHigh {
			so.trailHigh = price
		}
		return price <= so.trailHigh-o.TrailAmount
	}
	return false
}

func (s *SimSession) fill(so *simOrder, price float64) {
	s.mu.Lock()
	if so.order.Status.Terminal() {
		s.mu.Unlock()
		return
	}
	so.order.Status = models.OrderFilled
	so.order.FilledQty = so.order.Quantity
	so.order.AvgFillPrice = price
	s.execSeq++
	exec := models.Execution{
		ExecID:  fmt.Sprintf("SIM.%d", s.execSeq),
		OrderID: so.order.ID,
		Symbol:  so.order.Symbol,
		Side:    so.order.Side,
		Shares:  so.order.Quantity,
		Price:   price,
		Time:    time.Now(),
	}
	qty := so.order.Quantity
	id := so.order.ID
	s.mu.Unlock()

	s.emit(func(h SessionHandler) {
		h.OrderStatus(id, models.OrderFilled, qty, 0, price)
		h.Execution(-1, exec)
	})
}

// --- Session implementation ---

// Connect marks the session connected.
func (s *SimSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Close stops the dispatch goroutine.
func (s *SimSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// RequestNextOrderID delivers the simulated next valid order id.
func (s *SimSession) RequestNextOrderID() error {
	s.mu.Lock()
	id := s.nextID
	s.mu.Unlock()
	s.emit(func(h SessionHandler) { h.NextValidID(id) })
	return nil
}

// RequestContractDetails streams contract records, or a no-security-definition
// error for unknown symbols.
func (s *SimSession) RequestContractDetails(reqID int64, symbol string) error {
	s.mu.Lock()
	details := append([]models.ContractDetail(nil), s.contracts[symbol]...)
	s.mu.Unlock()

	s.emit(func(h SessionHandler) {
		if len(details) == 0 {
			h.Error(reqID, CodeNoSecurityDefinition, "No security definition has been found for the request")
			return
		}
		for _, d := range details {
			h.ContractDetails(reqID, d)
		}
		h.ContractDetailsEnd(reqID)
	})
	return nil
}

// RequestHistoricalBars streams bars, or a historical-data error for unknown
// symbols.
func (s *SimSession) RequestHistoricalBars(reqID int64, symbol string, interval Interval) error {
	s.mu.Lock()
	bars := append([]models.Bar(nil), s.bars[symbol]...)
	s.mu.Unlock()

	s.emit(func(h SessionHandler) {
		if len(bars) == 0 {
			h.Error(reqID, CodeHistoricalDataFailed, "Historical Market Data Service error message")
			return
		}
		for _, b := range bars {
			h.HistoricalBar(reqID, b)
		}
		h.HistoricalBarsEnd(reqID)
	})
	return nil
}

// RequestExecutions streams every recorded fill.
func (s *SimSession) RequestExecutions(reqID int64) error {
	s.mu.Lock()
	var execs []models.Execution
	for _, so := range s.orders {
		if so.order.Status == models.OrderFilled {
			execs = append(execs, models.Execution{
				ExecID:  fmt.Sprintf("SIM.R%d.%d", reqID, so.order.ID),
				OrderID: so.order.ID,
				Symbol:  so.order.Symbol,
				Side:    so.order.Side,
				Shares:  so.order.FilledQty,
				Price:   so.order.AvgFillPrice,
				Time:    time.Now(),
			})
		}
	}
	s.mu.Unlock()

	s.emit(func(h SessionHandler) {
		for _, e := range execs {
			h.Execution(reqID, e)
		}
		h.ExecutionsEnd(reqID)
	})
	return nil
}

// SubmitOrder accepts an order, rejecting reused ids the way a real broker
// does, and fills it when the current quote allows.
func (s *SimSession) SubmitOrder(order models.Order) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return errors.ErrNotConnected
	}
	if s.usedIDs[order.ID] {
		s.mu.Unlock()
		s.emit(func(h SessionHandler) {
			h.Error(order.ID, CodeDuplicateOrderID, "Duplicate order id")
		})
		return nil
	}
	s.usedIDs[order.ID] = true
	if order.ID >= s.nextID {
		s.nextID = order.ID + 1
	}
	order.Status = models.OrderSubmitted
	so := &simOrder{order: order}
	if order.Kind == models.OrderKindTrailingStop {
		so.trailHigh = s.quotes[order.Symbol]
	}
	s.orders[order.ID] = so
	price, havePrice := s.quotes[order.Symbol]
	fillNow := havePrice && s.shouldFill(so, price)
	snapshot := so.order
	s.mu.Unlock()

	s.emit(func(h SessionHandler) {
		h.OpenOrder(snapshot)
		h.OrderStatus(snapshot.ID, models.OrderSubmitted, 0, snapshot.Quantity, 0)
	})
	if fillNow {
		s.fill(so, price)
	}
	return nil
}

// CancelOrder cancels a resting order. Cancelling an already filled order is a
// tolerated race: the cancel is simply ignored.
func (s *SimSession) CancelOrder(orderID int64) error {
	s.mu.Lock()
	so, ok := s.orders[orderID]
	if !ok || so.order.Status.Terminal() {
		s.mu.Unlock()
		return nil
	}
	so.order.Status = models.OrderCancelled
	remaining := so.order.Quantity - so.order.FilledQty
	s.mu.Unlock()

	s.emit(func(h SessionHandler) {
		h.OrderStatus(orderID, models.OrderCancelled, 0, remaining, 0)
	})
	return nil
}

// RequestOpenOrders re-announces every non-terminal order.
func (s *SimSession) RequestOpenOrders() error {
	s.mu.Lock()
	var open []models.Order
	for _, so := range s.orders {
		if !so.order.Status.Terminal() {
			open = append(open, so.order)
		}
	}
	s.mu.Unlock()

	s.emit(func(h SessionHandler) {
		for _, o := range open {
			h.OpenOrder(o)
		}
	})
	return nil
}
