// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrTimeout          = errors.New("operation timed out")
	ErrRequestPending   = errors.New("request id already in flight")
	ErrNoData           = errors.New("no data returned")
	ErrDuplicateOrderID = errors.New("duplicate order id")
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidOrder     = errors.New("invalid order")
	ErrNotTradable      = errors.New("symbol not tradable")
	ErrFeedUnavailable  = errors.New("market data feed unavailable")
	ErrConnectionFailed = errors.New("connection failed")
	ErrNotConnected     = errors.New("broker session not connected")
	ErrPoolStopped      = errors.New("monitor pool stopped")
	ErrConfigInvalid    = errors.New("invalid configuration")
)

// BrokerError represents an error reported by the broker, keyed by the numeric
// code the broker attached to it.
type BrokerError struct {
	ReqID   int64
	Code    int
	Message string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("broker error [%d] req=%d: %s", e.Code, e.ReqID, e.Message)
}

// NewBrokerError creates a new BrokerError.
func NewBrokerError(reqID int64, code int, message string) *BrokerError {
	return &BrokerError{ReqID: reqID, Code: code, Message: message}
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID int64
	Symbol  string
	Action  string
	Err     error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("order error [%d] %s %s: %v", e.OrderID, e.Action, e.Symbol, e.Err)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID int64, symbol, action string, err error) *OrderError {
	return &OrderError{OrderID: orderID, Symbol: symbol, Action: action, Err: err}
}

// FeedError represents a market-data feed failure for a symbol.
type FeedError struct {
	Symbol string
	Op     string
	Err    error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed error %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *FeedError) Unwrap() error {
	return e.Err
}

// NewFeedError creates a new FeedError.
func NewFeedError(symbol, op string, err error) *FeedError {
	return &FeedError{Symbol: symbol, Op: op, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
