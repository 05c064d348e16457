// Package broker provides the broker session boundary and the request/response
// correlation layer above it.
package broker

import (
	"context"

	"momentum-trader/internal/models"
)

// Session owns the single physical connection to the broker. Outbound calls
// return as soon as the request is written; results arrive asynchronously
// through the SessionHandler, always from one dispatch goroutine.
type Session interface {
	Connect(ctx context.Context) error
	Close() error

	// RequestNextOrderID asks the broker for its next valid order id,
	// delivered via SessionHandler.NextValidID.
	RequestNextOrderID() error

	// RequestContractDetails streams contract records for a symbol,
	// terminated by ContractDetailsEnd.
	RequestContractDetails(reqID int64, symbol string) error

	// RequestHistoricalBars streams bars for a symbol, terminated by
	// HistoricalBarsEnd.
	RequestHistoricalBars(reqID int64, symbol string, interval Interval) error

	// RequestExecutions streams fills, terminated by ExecutionsEnd.
	RequestExecutions(reqID int64) error

	SubmitOrder(order models.Order) error
	CancelOrder(orderID int64) error
	RequestOpenOrders() error
}

// SessionHandler receives the session's inbound events. Implementations must
// tolerate being called only from the session's single dispatch goroutine.
type SessionHandler interface {
	ContractDetails(reqID int64, detail models.ContractDetail)
	ContractDetailsEnd(reqID int64)
	HistoricalBar(reqID int64, bar models.Bar)
	HistoricalBarsEnd(reqID int64)
	OrderStatus(orderID int64, status models.OrderStatus, filled, remaining int, avgFillPrice float64)
	OpenOrder(order models.Order)
	Execution(reqID int64, exec models.Execution)
	ExecutionsEnd(reqID int64)
	NextValidID(orderID int64)
	Error(reqID int64, code int, msg string)
}

// Broker error codes that terminate an outstanding request.
const (
	CodeHistoricalDataFailed = 162
	CodeNoSecurityDefinition = 200
	CodeDuplicateRequestID   = 322
	CodeNotConnected         = 504
)

// CodeDuplicateOrderID is reported when an order id was already used.
const CodeDuplicateOrderID = 103
