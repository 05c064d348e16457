package universe

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"momentum-trader/internal/broker"
	"momentum-trader/internal/models"
	"momentum-trader/internal/store"
)

func TestDedupePreservesFirstSeenOrder(t *testing.T) {
	got := Dedupe([]string{"AAPL", "MSFT", "AAPL", "", "TSLA", "MSFT"})
	want := []string{"AAPL", "MSFT", "TSLA"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dedupe = %v, want %v", got, want)
	}
}

func TestLoadTickersMissingFile(t *testing.T) {
	got, err := LoadTickers(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestLoadTickersDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickers.json")
	if err := os.WriteFile(path, []byte(`["NVDA","AMD","NVDA"]`), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadTickers(path)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"NVDA", "AMD"}) {
		t.Fatalf("got %v", got)
	}
}

func TestSaveAndLoadTradableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradable.json")
	if err := SaveTradable(path, []string{"MSFT", "AAPL", "TSLA"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadTradable(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// Saved sorted for stable diffs.
	if !reflect.DeepEqual(got, []string{"AAPL", "MSFT", "TSLA"}) {
		t.Fatalf("got %v", got)
	}
}

// memStore is an in-memory DataStore for checker tests.
type memStore struct {
	mu       sync.Mutex
	tradable map[string]bool
	checked  map[string]bool
	lastSync map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		tradable: make(map[string]bool),
		checked:  make(map[string]bool),
		lastSync: make(map[string]time.Time),
	}
}

func (s *memStore) LogTrade(ctx context.Context, r models.TradeRecord) error { return nil }
func (s *memStore) GetTrades(ctx context.Context, f store.TradeFilter) ([]models.TradeRecord, error) {
	return nil, nil
}

func (s *memStore) MarkTradable(ctx context.Context, symbol string, tradable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked[symbol] = true
	s.tradable[symbol] = tradable
	return nil
}

func (s *memStore) GetTradable(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for sym, ok := range s.tradable {
		if ok {
			out = append(out, sym)
		}
	}
	return out, nil
}

func (s *memStore) IsChecked(ctx context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checked[symbol], nil
}

func (s *memStore) GetLastSync(dataType string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync[dataType]
}

func (s *memStore) SetLastSync(dataType string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSync[dataType] = t
	return nil
}

func (s *memStore) Close() error { return nil }

func newCheckerFixture(t *testing.T) (*broker.SimSession, *memStore, *Checker) {
	t.Helper()
	sim := broker.NewSimSession()
	c := broker.NewCorrelator(sim, 8, zerolog.Nop())
	sim.Start(c)
	t.Cleanup(func() { sim.Close() })

	st := newMemStore()
	return sim, st, NewChecker(c, st, 2*time.Second, zerolog.Nop())
}

func TestIsTradableUSStock(t *testing.T) {
	sim, _, ch := newCheckerFixture(t)
	sim.AddContract(models.ContractDetail{Symbol: "AAPL", SecType: "STK", Exchange: "SMART", Currency: "USD"})

	ok, err := ch.IsTradable("AAPL")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if !ok {
		t.Fatal("expected AAPL tradable")
	}
}

func TestIsTradableRejectsNonUSContracts(t *testing.T) {
	sim, _, ch := newCheckerFixture(t)
	sim.AddContract(models.ContractDetail{Symbol: "SHOP", SecType: "STK", Exchange: "TSE", Currency: "CAD"})
	sim.AddContract(models.ContractDetail{Symbol: "ESZ6", SecType: "FUT", Exchange: "CME", Currency: "USD"})

	for _, sym := range []string{"SHOP", "ESZ6", "UNKNOWN"} {
		ok, err := ch.IsTradable(sym)
		if err != nil {
			t.Fatalf("%s: err = %v", sym, err)
		}
		if ok {
			t.Fatalf("%s reported tradable", sym)
		}
	}
}

func TestCheckAllPersistsAndResumes(t *testing.T) {
	sim, st, ch := newCheckerFixture(t)
	sim.AddContract(models.ContractDetail{Symbol: "AAPL", SecType: "STK", Exchange: "SMART", Currency: "USD"})
	sim.AddContract(models.ContractDetail{Symbol: "MSFT", SecType: "STK", Exchange: "SMART", Currency: "USD"})

	ctx := context.Background()
	got, err := ch.CheckAll(ctx, []string{"AAPL", "BOGUS"})
	if err != nil {
		t.Fatalf("check all: %v", err)
	}
	if len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("tradable = %v", got)
	}

	// A second pass skips already-checked symbols and adds the new one.
	checked, _ := st.IsChecked(ctx, "BOGUS")
	if !checked {
		t.Fatal("BOGUS not recorded as checked")
	}
	got, err = ch.CheckAll(ctx, []string{"AAPL", "BOGUS", "MSFT"})
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("tradable after second pass = %v", got)
	}
}

func TestCheckAllRecordsCompletionTime(t *testing.T) {
	sim, st, ch := newCheckerFixture(t)
	sim.AddContract(models.ContractDetail{Symbol: "AAPL", SecType: "STK", Exchange: "SMART", Currency: "USD"})

	if _, err := ch.CheckAll(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("check all: %v", err)
	}
	if st.GetLastSync("tradability").IsZero() {
		t.Fatal("complete pass did not record its sync time")
	}

	// An interrupted pass must not move the marker.
	before := st.GetLastSync("tradability")
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ch.CheckAll(cancelled, []string{"MSFT"}); err != nil {
		t.Fatalf("cancelled pass: %v", err)
	}
	if got := st.GetLastSync("tradability"); !got.Equal(before) {
		t.Fatalf("cancelled pass moved sync time from %v to %v", before, got)
	}
}
