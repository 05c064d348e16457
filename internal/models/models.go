// Package models provides domain models for the trading application.
package models

import (
	"time"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderKind represents the type of an order.
type OrderKind string

const (
	OrderKindMarket       OrderKind = "MKT"
	OrderKindLimit        OrderKind = "LMT"
	OrderKindStop         OrderKind = "STP"
	OrderKindTrailingStop OrderKind = "TRAIL"
)

// OrderStatus represents the last known lifecycle status of an order.
type OrderStatus string

const (
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderWorking   OrderStatus = "WORKING"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	OrderRejected  OrderStatus = "REJECTED"
)

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected:
		return true
	}
	return false
}

// Stage represents a monitor's position in the trading cycle.
type Stage string

const (
	StageMonitoring  Stage = "MONITORING"
	StageFastMode    Stage = "FAST_MODE"
	StageBuyStage    Stage = "BUY_STAGE"
	StageActiveTrade Stage = "ACTIVE_TRADE"
)

// PriceSample is a single observed trade price for a ticker.
type PriceSample struct {
	Timestamp time.Time
	Price     float64
}

// VolumeSample holds the periodically refreshed volume figures for a ticker.
type VolumeSample struct {
	TodayVolume int64
	AvgVolume   int64
}

// Bar represents OHLCV data for a time period.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// ContractDetail is one contract record returned by the broker for a symbol.
type ContractDetail struct {
	Symbol   string
	SecType  string
	Exchange string
	Currency string
}

// IsUSStock reports whether the contract is a plain US equity.
func (c ContractDetail) IsUSStock() bool {
	return c.SecType == "STK" && c.Currency == "USD"
}

// Execution represents a single fill reported by the broker.
type Execution struct {
	ExecID  string
	OrderID int64
	Symbol  string
	Side    OrderSide
	Shares  int
	Price   float64
	Time    time.Time
}
