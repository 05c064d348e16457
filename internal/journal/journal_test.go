package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"momentum-trader/internal/models"
)

func testRecord(ticker string, profit float64) models.TradeRecord {
	ts := time.Date(2026, time.January, 5, 10, 30, 0, 0, time.UTC)
	return models.NewTradeRecord(ts, ticker, 10.00, 10.00*(1+profit/100), 100, profit, 4*time.Minute, "profit_target")
}

func TestAppendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSVJournal(path)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}

	if err := j.Append(testRecord("AAPL", 3.2)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Append(testRecord("MSFT", -1.5)); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := j.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].Ticker != "AAPL" || rows[0].WinLoss != models.TradeWin {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].Ticker != "MSFT" || rows[1].WinLoss != models.TradeLoss {
		t.Fatalf("row 1 = %+v", rows[1])
	}
	if rows[0].Shares != 100 || rows[0].EntryPrice != 10.00 {
		t.Fatalf("row 0 = %+v", rows[0])
	}
}

func TestHeaderWrittenExactlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	j, err := NewCSVJournal(path)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := j.Append(testRecord("AAPL", 2.0)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	text := strings.TrimRight(string(data), "\n")
	lines := strings.Split(text, "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want header + 3 rows:\n%s", len(lines), text)
	}
	if !strings.HasPrefix(lines[0], "timestamp,ticker,entry_price") {
		t.Fatalf("header = %q", lines[0])
	}
	if strings.Count(text, "timestamp,ticker") != 1 {
		t.Fatalf("header repeated:\n%s", text)
	}
}

func TestReadMissingFileIsEmpty(t *testing.T) {
	j, err := NewCSVJournal(filepath.Join(t.TempDir(), "never-written.csv"))
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	rows, err := j.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("rows = %d, want 0", len(rows))
	}
}

func TestAppendCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "trades.csv")
	j, err := NewCSVJournal(path)
	if err != nil {
		t.Fatalf("new journal: %v", err)
	}
	if err := j.Append(testRecord("AAPL", 1.0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("journal file missing: %v", err)
	}
}
