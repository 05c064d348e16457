package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"momentum-trader/internal/errors"
)

func newPolygonFixture(t *testing.T, handler http.Handler) *PolygonFeed {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewPolygonFeed(PolygonConfig{APIKey: "test-key", BaseURL: srv.URL, Timeout: 2 * time.Second}, zerolog.Nop())
	// Keep retries fast under test.
	f.retry.InitialDelay = time.Millisecond
	f.retry.MaxDelay = time.Millisecond
	return f
}

func TestLatestTrade(t *testing.T) {
	var gotAuth atomic.Value
	f := newPolygonFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/last/trade/AAPL" {
			http.NotFound(w, r)
			return
		}
		gotAuth.Store(r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"status":"OK","results":{"p":189.55}}`)
	}))

	price, err := f.LatestTrade(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if price != 189.55 {
		t.Fatalf("price = %v, want 189.55", price)
	}
	if auth, _ := gotAuth.Load().(string); auth != "Bearer test-key" {
		t.Fatalf("authorization header = %q", auth)
	}
}

func TestLatestTradeNoData(t *testing.T) {
	f := newPolygonFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"OK","results":{"p":0}}`)
	}))

	_, err := f.LatestTrade(context.Background(), "AAPL")
	if !errors.Is(err, errors.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestLatestTradeRetriesServerErrors(t *testing.T) {
	var calls int32
	f := newPolygonFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"status":"OK","results":{"p":42.00}}`)
	}))

	price, err := f.LatestTrade(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if price != 42.00 {
		t.Fatalf("price = %v", price)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("calls = %d, want 3", n)
	}
}

func TestDailyVolume(t *testing.T) {
	f := newPolygonFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/v2/aggs/ticker/MSFT/range/1/day/2026-01-05/2026-01-05"
		if r.URL.Path != want {
			t.Errorf("path = %s, want %s", r.URL.Path, want)
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"status":"OK","resultsCount":1,"results":[{"v":12500000}]}`)
	}))

	day := time.Date(2026, time.January, 5, 10, 0, 0, 0, time.UTC)
	v, err := f.DailyVolume(context.Background(), "MSFT", day)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if v.TodayVolume != 12_500_000 {
		t.Fatalf("volume = %+v", v)
	}
}

func TestDailyVolumeEmptyResults(t *testing.T) {
	f := newPolygonFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"OK","resultsCount":0,"results":[]}`)
	}))

	_, err := f.DailyVolume(context.Background(), "MSFT", time.Now())
	if !errors.Is(err, errors.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestStaticFeedScriptRepeatsLastPrice(t *testing.T) {
	f := NewStaticFeed()
	f.Script("AAPL", 10.00, 11.00)

	ctx := context.Background()
	want := []float64{10.00, 11.00, 11.00, 11.00}
	for i, w := range want {
		got, err := f.LatestTrade(ctx, "AAPL")
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("read %d = %v, want %v", i, got, w)
		}
	}

	if _, err := f.LatestTrade(ctx, "UNSCRIPTED"); !errors.Is(err, errors.ErrFeedUnavailable) {
		t.Fatalf("err = %v, want ErrFeedUnavailable", err)
	}
}
