// Package feed provides the market-data feed used by instrument monitors,
// distinct from the broker session.
package feed

import (
	"context"
	"time"

	"momentum-trader/internal/models"
)

// Feed is the price/volume source polled by monitors.
type Feed interface {
	// LatestTrade returns the most recent trade price for a symbol.
	LatestTrade(ctx context.Context, symbol string) (float64, error)

	// DailyVolume returns the volume figures for a symbol on the given day.
	DailyVolume(ctx context.Context, symbol string, day time.Time) (models.VolumeSample, error)
}
