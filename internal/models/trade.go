package models

import "time"

// TradeOutcome labels a completed trade as a win or a loss.
type TradeOutcome string

const (
	TradeWin  TradeOutcome = "WIN"
	TradeLoss TradeOutcome = "LOSS"
)

// TradeRecord is one completed trade as persisted to the trade journal.
// The csv tags define the on-disk column layout of trades.csv.
type TradeRecord struct {
	Timestamp       time.Time    `csv:"-"`
	TimestampText   string       `csv:"timestamp"`
	Ticker          string       `csv:"ticker"`
	EntryPrice      float64      `csv:"entry_price"`
	ExitPrice       float64      `csv:"exit_price"`
	Shares          int          `csv:"shares"`
	ProfitPercent   float64      `csv:"profit_percent"`
	DurationMinutes float64      `csv:"duration_minutes"`
	ExitReason      string       `csv:"exit_reason"`
	WinLoss         TradeOutcome `csv:"win_loss"`
}

// NewTradeRecord builds a journal record, deriving the win/loss label from the
// sign of the profit.
func NewTradeRecord(ts time.Time, ticker string, entry, exit float64, shares int, profitPct float64, duration time.Duration, reason string) TradeRecord {
	outcome := TradeLoss
	if profitPct > 0 {
		outcome = TradeWin
	}
	return TradeRecord{
		Timestamp:       ts,
		TimestampText:   ts.Format("2006-01-02 15:04:05"),
		Ticker:          ticker,
		EntryPrice:      entry,
		ExitPrice:       exit,
		Shares:          shares,
		ProfitPercent:   profitPct,
		DurationMinutes: duration.Minutes(),
		ExitReason:      reason,
		WinLoss:         outcome,
	}
}
