package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"momentum-trader/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	syncTimes map[string]time.Time
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:        db,
		syncTimes: make(map[string]time.Time),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Completed trades
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		ticker TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		shares INTEGER NOT NULL,
		profit_percent REAL NOT NULL,
		duration_minutes REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		win_loss TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker);
	CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades(timestamp);

	-- Tradability check results
	CREATE TABLE IF NOT EXISTS tradable (
		symbol TEXT PRIMARY KEY,
		is_tradable INTEGER NOT NULL,
		checked_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Sync bookkeeping
	CREATE TABLE IF NOT EXISTS sync_times (
		data_type TEXT PRIMARY KEY,
		synced_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// LogTrade persists a completed trade.
func (s *SQLiteStore) LogTrade(ctx context.Context, record models.TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (timestamp, ticker, entry_price, exit_price, shares,
			profit_percent, duration_minutes, exit_reason, win_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp, record.Ticker, record.EntryPrice, record.ExitPrice,
		record.Shares, record.ProfitPercent, record.DurationMinutes,
		record.ExitReason, string(record.WinLoss))
	if err != nil {
		return fmt.Errorf("inserting trade: %w", err)
	}
	return nil
}

// GetTrades queries completed trades with optional filters.
func (s *SQLiteStore) GetTrades(ctx context.Context, filter TradeFilter) ([]models.TradeRecord, error) {
	query := `SELECT timestamp, ticker, entry_price, exit_price, shares,
		profit_percent, duration_minutes, exit_reason, win_loss FROM trades`
	var conds []string
	var args []interface{}

	if filter.Ticker != "" {
		conds = append(conds, "ticker = ?")
		args = append(args, filter.Ticker)
	}
	if !filter.StartDate.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, filter.EndDate)
	}
	if filter.WinLoss != "" {
		conds = append(conds, "win_loss = ?")
		args = append(args, filter.WinLoss)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		var winLoss string
		if err := rows.Scan(&t.Timestamp, &t.Ticker, &t.EntryPrice, &t.ExitPrice,
			&t.Shares, &t.ProfitPercent, &t.DurationMinutes, &t.ExitReason, &winLoss); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.WinLoss = models.TradeOutcome(winLoss)
		t.TimestampText = t.Timestamp.Format("2006-01-02 15:04:05")
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// MarkTradable records the outcome of a tradability check for a symbol.
func (s *SQLiteStore) MarkTradable(ctx context.Context, symbol string, tradable bool) error {
	val := 0
	if tradable {
		val = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tradable (symbol, is_tradable, checked_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(symbol) DO UPDATE SET is_tradable = excluded.is_tradable,
			checked_at = excluded.checked_at`,
		symbol, val)
	if err != nil {
		return fmt.Errorf("marking tradable: %w", err)
	}
	return nil
}

// GetTradable returns every symbol marked tradable, in symbol order.
func (s *SQLiteStore) GetTradable(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol FROM tradable WHERE is_tradable = 1 ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("querying tradable: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scanning symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// IsChecked reports whether a symbol already has a tradability verdict.
func (s *SQLiteStore) IsChecked(ctx context.Context, symbol string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tradable WHERE symbol = ?`, symbol).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking symbol: %w", err)
	}
	return n > 0, nil
}

// GetLastSync returns the last sync time for a data type.
func (s *SQLiteStore) GetLastSync(dataType string) time.Time {
	s.mu.RLock()
	if t, ok := s.syncTimes[dataType]; ok {
		s.mu.RUnlock()
		return t
	}
	s.mu.RUnlock()

	var t time.Time
	err := s.db.QueryRow(`SELECT synced_at FROM sync_times WHERE data_type = ?`, dataType).Scan(&t)
	if err != nil {
		return time.Time{}
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()
	return t
}

// SetLastSync records the last sync time for a data type.
func (s *SQLiteStore) SetLastSync(dataType string, t time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO sync_times (data_type, synced_at) VALUES (?, ?)
		ON CONFLICT(data_type) DO UPDATE SET synced_at = excluded.synced_at`,
		dataType, t)
	if err != nil {
		return fmt.Errorf("setting sync time: %w", err)
	}

	s.mu.Lock()
	s.syncTimes[dataType] = t
	s.mu.Unlock()
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
