package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"momentum-trader/internal/errors"
	"momentum-trader/internal/logging"
	"momentum-trader/internal/models"
	"momentum-trader/pkg/utils"
)

// PolygonFeed fetches prices and volumes from the Polygon REST API.
type PolygonFeed struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
	retry   utils.RetryConfig
	limiter *utils.RateLimiter
}

// PolygonConfig holds Polygon feed configuration.
type PolygonConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls; zero means 10/s.
	RequestsPerSecond float64
}

// NewPolygonFeed creates a Polygon-backed feed.
func NewPolygonFeed(cfg PolygonConfig, logger zerolog.Logger) *PolygonFeed {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.polygon.io"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &PolygonFeed{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logging.WithComponent(logger, "feed"),
		retry: utils.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			BackoffFactor: 2.0,
		},
		limiter: newFeedLimiter(rps),
	}
}

type lastTradeResponse struct {
	Results struct {
		Price float64 `json:"p"`
	} `json:"results"`
	Status string `json:"status"`
}

type dailyAggsResponse struct {
	Results []struct {
		Volume float64 `json:"v"`
	} `json:"results"`
	ResultsCount int    `json:"resultsCount"`
	Status       string `json:"status"`
}

// LatestTrade returns the most recent trade price for a symbol.
func (f *PolygonFeed) LatestTrade(ctx context.Context, symbol string) (float64, error) {
	url := fmt.Sprintf("%s/v2/last/trade/%s", f.baseURL, symbol)

	var out lastTradeResponse
	if err := f.getJSON(ctx, url, &out); err != nil {
		return 0, errors.NewFeedError(symbol, "last_trade", err)
	}
	if out.Results.Price <= 0 {
		return 0, errors.NewFeedError(symbol, "last_trade", errors.ErrNoData)
	}
	return out.Results.Price, nil
}

// DailyVolume returns the day's aggregate volume for a symbol. The average
// volume mirrors today's figure until enough history accrues to do better.
func (f *PolygonFeed) DailyVolume(ctx context.Context, symbol string, day time.Time) (models.VolumeSample, error) {
	date := day.Format("2006-01-02")
	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s", f.baseURL, symbol, date, date)

	var out dailyAggsResponse
	if err := f.getJSON(ctx, url, &out); err != nil {
		return models.VolumeSample{}, errors.NewFeedError(symbol, "daily_volume", err)
	}
	if len(out.Results) == 0 {
		return models.VolumeSample{}, errors.NewFeedError(symbol, "daily_volume", errors.ErrNoData)
	}

	vol := int64(out.Results[0].Volume)
	return models.VolumeSample{TodayVolume: vol, AvgVolume: vol}, nil
}

func newFeedLimiter(rps float64) *utils.RateLimiter {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return utils.NewRateLimiter(rps, burst)
}

func (f *PolygonFeed) getJSON(ctx context.Context, url string, target interface{}) error {
	return utils.Retry(ctx, f.retry, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+f.apiKey)

		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("rate limited")
		}
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
		}
		return json.NewDecoder(resp.Body).Decode(target)
	})
}
