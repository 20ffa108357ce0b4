package dataprovider

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/qaliblog/tradology/utilities"
)

// SQLiteStore archives real provider candles across sessions and records one
// row of session history per reconciliation. Archived candles let the
// pipeline fall back to yesterday's real data instead of synthetic output
// when every live provider is down.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(cfg utilities.DatabaseConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		symbol TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		UNIQUE(provider, symbol, date)
	);
	CREATE INDEX IF NOT EXISTS idx_provider_symbol_date ON candles (provider, symbol, date);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		lookback_days INTEGER NOT NULL,
		source TEXT NOT NULL,
		synthetic INTEGER NOT NULL,
		current_price REAL NOT NULL,
		fetched_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// --- Candle archive ---

func (s *SQLiteStore) SaveCandles(provider, symbol string, candles []Candle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin candle save: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO candles (provider, symbol, date, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare candle save: %w", err)
	}
	defer stmt.Close()
	for _, c := range candles {
		if _, err := stmt.Exec(provider, symbol, c.Date, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("save candle %s/%s@%s: %w", provider, symbol, c.Date, err)
		}
	}
	return tx.Commit()
}

// GetCandles returns up to limit most-recent archived candles for a symbol,
// from any provider, ascending by date.
func (s *SQLiteStore) GetCandles(symbol string, limit int) ([]Candle, error) {
	rows, err := s.db.Query(`
		SELECT date, open, high, low, close, volume FROM candles
		WHERE symbol = ?
		GROUP BY date
		ORDER BY date DESC
		LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candles []Candle
	for rows.Next() {
		var c Candle
		if err := rows.Scan(&c.Date, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		c.VolumeLabel = utilities.FormatVolume(c.Volume)
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Query is newest-first for the LIMIT; flip back to ascending.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// --- Session history ---

func (s *SQLiteStore) RecordSession(rec SessionRecord) error {
	_, err := s.db.Exec(`INSERT INTO sessions (symbol, lookback_days, source, synthetic, current_price, fetched_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Symbol, rec.LookbackDays, rec.Source, boolToInt(rec.Synthetic), rec.CurrentPrice, rec.FetchedAt.Unix())
	return err
}

func (s *SQLiteStore) RecentSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(`SELECT id, symbol, lookback_days, source, synthetic, current_price, fetched_at FROM sessions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var synthetic int
		var ts int64
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.LookbackDays, &rec.Source, &synthetic, &rec.CurrentPrice, &ts); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		rec.Synthetic = synthetic != 0
		rec.FetchedAt = time.Unix(ts, 0).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Cleanup ---

func (s *SQLiteStore) CleanupOldCandles(olderThan time.Time) error {
	_, err := s.db.Exec(`DELETE FROM candles WHERE date < ?`, olderThan.UTC().Format("2006-01-02"))
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
