// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"momentum-trader/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Trades
	LogTrade(ctx context.Context, record models.TradeRecord) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error)

	// Tradable universe cache
	MarkTradable(ctx context.Context, symbol string, tradable bool) error
	GetTradable(ctx context.Context) ([]string, error)
	IsChecked(ctx context.Context, symbol string) (bool, error)

	// Sync
	GetLastSync(dataType string) time.Time
	SetLastSync(dataType string, t time.Time) error

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Ticker    string
	StartDate time.Time
	EndDate   time.Time
	WinLoss   string
	Limit     int
}
