package broker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"momentum-trader/internal/errors"
	"momentum-trader/internal/logging"
	"momentum-trader/internal/models"
)

// RequestKind identifies what a pending request is waiting for.
type RequestKind string

const (
	KindContractDetails RequestKind = "contract_details"
	KindHistoricalBars  RequestKind = "historical_bars"
	KindExecutions      RequestKind = "executions"
)

// Handle refers to one outstanding broker request. Results become readable
// after Await returns nil.
type Handle struct {
	ID   int64
	Kind RequestKind

	done chan struct{}

	// Populated when the correlator hands the results over on completion.
	details  []models.ContractDetail
	bars     []models.Bar
	execs    []models.Execution
	hadError bool
	errCode  int
}

// ContractDetails returns the accumulated contract records.
func (h *Handle) ContractDetails() []models.ContractDetail { return h.details }

// Bars returns the accumulated historical bars.
func (h *Handle) Bars() []models.Bar { return h.bars }

// Executions returns the accumulated fills, in arrival order.
func (h *Handle) Executions() []models.Execution { return h.execs }

// HadError reports whether the broker terminated the request with an error.
// An empty result with HadError set means "no data", not "zero rows".
func (h *Handle) HadError() bool { return h.hadError }

// ErrorCode returns the broker error code that terminated the request, if any.
func (h *Handle) ErrorCode() int { return h.errCode }

type pendingRequest struct {
	id        int64
	kind      RequestKind
	details   []models.ContractDetail
	bars      []models.Bar
	execs     []models.Execution
	hadError  bool
	errCode   int
	fired     bool
	abandoned bool
	done      chan struct{}
}

// Correlator turns the session's push-style callbacks into synchronous,
// timeout-bounded calls. It is the SessionHandler for the session it wraps.
//
// Two mutex domains: requests (the pending table) and orders (order status,
// open orders, executions, next-valid-id). The session's dispatch goroutine is
// the only appender; callers read and remove.
type Correlator struct {
	session Session
	logger  zerolog.Logger

	reqID int64 // atomic

	mu      sync.Mutex
	pending map[int64]*pendingRequest

	// Admission gate bounding in-flight broker requests.
	inflight chan struct{}

	ordersMu     sync.Mutex
	orderStatus  map[int64]*models.Order
	openOrders   map[int64]models.Order
	executions   []models.Execution
	nextValidID  int64
	nextIDSignal chan struct{}
	orderErrFn   func(orderID int64, code int, msg string)
}

// NewCorrelator creates a correlator over the given session. maxInflight
// bounds the number of concurrently outstanding broker requests.
func NewCorrelator(session Session, maxInflight int, logger zerolog.Logger) *Correlator {
	if maxInflight <= 0 {
		maxInflight = 8
	}
	return &Correlator{
		session:      session,
		logger:       logging.WithComponent(logger, "correlator"),
		pending:      make(map[int64]*pendingRequest),
		inflight:     make(chan struct{}, maxInflight),
		orderStatus:  make(map[int64]*models.Order),
		openOrders:   make(map[int64]models.Order),
		nextIDSignal: make(chan struct{}, 1),
	}
}

// NextRequestID allocates a fresh request id. IDs are monotonic and never
// reused while a request is outstanding.
func (c *Correlator) NextRequestID() int64 {
	return atomic.AddInt64(&c.reqID, 1)
}

// Session returns the underlying broker session.
func (c *Correlator) Session() Session { return c.session }

// SubmitContractDetails registers a pending request and issues the outbound
// contract-details call. The id must come from NextRequestID; a duplicate
// in-flight id is rejected.
func (c *Correlator) SubmitContractDetails(reqID int64, symbol string) (*Handle, error) {
	return c.submit(reqID, KindContractDetails, func() error {
		return c.session.RequestContractDetails(reqID, symbol)
	})
}

// SubmitHistoricalBars registers a pending request and issues the outbound
// historical-data call.
func (c *Correlator) SubmitHistoricalBars(reqID int64, symbol string, interval Interval) (*Handle, error) {
	return c.submit(reqID, KindHistoricalBars, func() error {
		return c.session.RequestHistoricalBars(reqID, symbol, interval)
	})
}

// SubmitExecutions registers a pending request and issues the outbound
// executions call.
func (c *Correlator) SubmitExecutions(reqID int64) (*Handle, error) {
	return c.submit(reqID, KindExecutions, func() error {
		return c.session.RequestExecutions(reqID)
	})
}

func (c *Correlator) submit(reqID int64, kind RequestKind, issue func() error) (*Handle, error) {
	c.mu.Lock()
	if _, exists := c.pending[reqID]; exists {
		c.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrRequestPending, "request %d", reqID)
	}
	p := &pendingRequest{
		id:   reqID,
		kind: kind,
		done: make(chan struct{}),
	}
	c.pending[reqID] = p
	c.mu.Unlock()

	c.inflight <- struct{}{}

	if err := issue(); err != nil {
		c.remove(reqID)
		<-c.inflight
		return nil, err
	}

	return &Handle{ID: reqID, Kind: kind, done: p.done}, nil
}

// Await blocks until the handle's completion signal fires or the timeout
// elapses. On timeout the pending entry stays registered so late-arriving data
// has somewhere to land, but the caller gets ErrTimeout. On completion the
// entry is removed from the table and its results transferred to the handle.
func (c *Correlator) Await(h *Handle, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		c.consume(h)
		<-c.inflight
		return nil
	case <-timer.C:
		c.abandon(h.ID)
		<-c.inflight
		return errors.Wrapf(errors.ErrTimeout, "request %d (%s)", h.ID, h.Kind)
	}
}

func (c *Correlator) consume(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[h.ID]
	if !ok {
		return
	}
	delete(c.pending, h.ID)
	h.details = p.details
	h.bars = p.bars
	h.execs = p.execs
	h.hadError = p.hadError
	h.errCode = p.errCode
}

// abandon marks a timed-out request so the dispatch path can reap it once its
// terminal callback finally arrives. If that callback already fired, nothing
// will ever revisit the entry, so it is reaped here instead.
func (c *Correlator) abandon(reqID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[reqID]
	if !ok {
		return
	}
	if p.fired {
		delete(c.pending, reqID)
		return
	}
	p.abandoned = true
}

func (c *Correlator) remove(reqID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, reqID)
}

// PendingCount returns the number of outstanding requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// --- SessionHandler: request-correlated callbacks ---

// ContractDetails appends a contract record to its pending request.
func (c *Correlator) ContractDetails(reqID int64, detail models.ContractDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[reqID]; ok {
		p.details = append(p.details, detail)
	}
}

// ContractDetailsEnd fires the completion signal for a contract-details request.
func (c *Correlator) ContractDetailsEnd(reqID int64) {
	c.complete(reqID, false, 0)
}

// HistoricalBar appends a bar to its pending request.
func (c *Correlator) HistoricalBar(reqID int64, bar models.Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.pending[reqID]; ok {
		p.bars = append(p.bars, bar)
	}
}

// HistoricalBarsEnd fires the completion signal for a historical-data request.
func (c *Correlator) HistoricalBarsEnd(reqID int64) {
	c.complete(reqID, false, 0)
}

// ExecutionsEnd fires the completion signal for an executions request.
func (c *Correlator) ExecutionsEnd(reqID int64) {
	c.complete(reqID, false, 0)
}

// complete fires a pending request's done signal exactly once. Abandoned
// entries are reaped here since their caller has already returned.
func (c *Correlator) complete(reqID int64, hadError bool, code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[reqID]
	if !ok {
		return
	}
	if hadError {
		p.hadError = true
		p.errCode = code
	}
	if !p.fired {
		p.fired = true
		close(p.done)
	}
	if p.abandoned {
		delete(c.pending, reqID)
	}
}

// Error maps broker errors onto pending requests and orders. Terminal codes
// complete the affected request immediately so callers never block past their
// timeout; order-scoped errors are forwarded to the registered listener.
func (c *Correlator) Error(reqID int64, code int, msg string) {
	c.logger.Warn().Int64("req_id", reqID).Int("code", code).Str("msg", msg).Msg("Broker error")

	switch code {
	case CodeHistoricalDataFailed, CodeNoSecurityDefinition, CodeDuplicateRequestID, CodeNotConnected:
		c.complete(reqID, true, code)
		return
	}

	c.mu.Lock()
	_, isPending := c.pending[reqID]
	c.mu.Unlock()
	if isPending {
		c.complete(reqID, true, code)
		return
	}

	c.ordersMu.Lock()
	fn := c.orderErrFn
	c.ordersMu.Unlock()
	if fn != nil {
		fn(reqID, code, msg)
	}
}

// --- SessionHandler: order bookkeeping ---

// OnOrderError registers a listener for broker errors keyed by order id.
func (c *Correlator) OnOrderError(fn func(orderID int64, code int, msg string)) {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	c.orderErrFn = fn
}

// OrderStatus records the latest status callback for an order.
func (c *Correlator) OrderStatus(orderID int64, status models.OrderStatus, filled, remaining int, avgFillPrice float64) {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	o, ok := c.orderStatus[orderID]
	if !ok {
		o = &models.Order{ID: orderID}
		c.orderStatus[orderID] = o
	}
	o.Status = status
	o.FilledQty = filled
	o.AvgFillPrice = avgFillPrice
	if status.Terminal() {
		delete(c.openOrders, orderID)
	}
}

// OpenOrder records an open-order callback.
func (c *Correlator) OpenOrder(order models.Order) {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	c.openOrders[order.ID] = order
	if o, ok := c.orderStatus[order.ID]; ok {
		o.Symbol = order.Symbol
		o.Side = order.Side
		o.Kind = order.Kind
		o.Quantity = order.Quantity
	} else {
		saved := order
		c.orderStatus[order.ID] = &saved
	}
}

// Execution records a fill, both in the global time-ordered list and, when a
// matching executions request is outstanding, in its accumulator.
func (c *Correlator) Execution(reqID int64, exec models.Execution) {
	c.ordersMu.Lock()
	c.executions = append(c.executions, exec)
	c.ordersMu.Unlock()

	c.mu.Lock()
	if p, ok := c.pending[reqID]; ok && p.kind == KindExecutions {
		p.execs = append(p.execs, exec)
	}
	c.mu.Unlock()
}

// NextValidID latches the broker's next valid order id.
func (c *Correlator) NextValidID(orderID int64) {
	c.ordersMu.Lock()
	c.nextValidID = orderID
	c.ordersMu.Unlock()
	select {
	case c.nextIDSignal <- struct{}{}:
	default:
	}
}

// RequestNextValidID asks the broker for a fresh next-valid-id and waits for
// the answer.
func (c *Correlator) RequestNextValidID(timeout time.Duration) (int64, error) {
	// Drain a stale signal so we wait for the fresh one.
	select {
	case <-c.nextIDSignal:
	default:
	}

	if err := c.session.RequestNextOrderID(); err != nil {
		return 0, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.nextIDSignal:
		c.ordersMu.Lock()
		defer c.ordersMu.Unlock()
		return c.nextValidID, nil
	case <-timer.C:
		return 0, errors.Wrap(errors.ErrTimeout, "next valid id")
	}
}

// StatusFor returns the last known state of an order.
func (c *Correlator) StatusFor(orderID int64) (models.Order, bool) {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	o, ok := c.orderStatus[orderID]
	if !ok {
		return models.Order{}, false
	}
	return *o, true
}

// IsOpen reports whether an order is still in the open-order set.
func (c *Correlator) IsOpen(orderID int64) bool {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	_, ok := c.openOrders[orderID]
	return ok
}

// ExecutionsForSymbol returns fills for a symbol in arrival order.
func (c *Correlator) ExecutionsForSymbol(symbol string) []models.Execution {
	c.ordersMu.Lock()
	defer c.ordersMu.Unlock()
	var out []models.Execution
	for _, e := range c.executions {
		if e.Symbol == symbol {
			out = append(out, e)
		}
	}
	return out
}
