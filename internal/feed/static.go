package feed

import (
	"context"
	"sync"
	"time"

	"momentum-trader/internal/errors"
	"momentum-trader/internal/models"
)

// StaticFeed serves scripted prices and volumes. Used by paper mode and tests.
type StaticFeed struct {
	mu      sync.Mutex
	prices  map[string][]float64
	cursor  map[string]int
	volumes map[string]models.VolumeSample
}

// NewStaticFeed creates an empty static feed.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{
		prices:  make(map[string][]float64),
		cursor:  make(map[string]int),
		volumes: make(map[string]models.VolumeSample),
	}
}

// Script sets the price sequence for a symbol. Each LatestTrade call consumes
// the next price; the final price repeats once the script runs out.
func (f *StaticFeed) Script(symbol string, prices ...float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = prices
	f.cursor[symbol] = 0
}

// SetVolume sets the volume sample returned for a symbol.
func (f *StaticFeed) SetVolume(symbol string, v models.VolumeSample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes[symbol] = v
}

// ClearVolume removes the volume sample for a symbol, making subsequent
// DailyVolume calls fail.
func (f *StaticFeed) ClearVolume(symbol string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.volumes, symbol)
}

// LatestTrade returns the next scripted price for a symbol.
func (f *StaticFeed) LatestTrade(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prices, ok := f.prices[symbol]
	if !ok || len(prices) == 0 {
		return 0, errors.NewFeedError(symbol, "last_trade", errors.ErrFeedUnavailable)
	}
	i := f.cursor[symbol]
	if i >= len(prices) {
		i = len(prices) - 1
	} else {
		f.cursor[symbol] = i + 1
	}
	return prices[i], nil
}

// DailyVolume returns the configured volume sample for a symbol.
func (f *StaticFeed) DailyVolume(ctx context.Context, symbol string, day time.Time) (models.VolumeSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.volumes[symbol]
	if !ok {
		return models.VolumeSample{}, errors.NewFeedError(symbol, "daily_volume", errors.ErrFeedUnavailable)
	}
	return v, nil
}
