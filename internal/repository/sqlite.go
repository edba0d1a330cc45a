package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cryptobacktest/internal/feed"
	"cryptobacktest/types"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol   TEXT    NOT NULL,
	interval TEXT    NOT NULL,
	ts       INTEGER NOT NULL,
	open     TEXT    NOT NULL,
	high     TEXT    NOT NULL,
	low      TEXT    NOT NULL,
	close    TEXT    NOT NULL,
	volume   TEXT    NOT NULL,
	PRIMARY KEY (symbol, interval, ts)
);
`

// SQLiteStore is a local bar cache. Prices are stored as decimal text, ts as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database file and ensures the candles table exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Candles returns the stored bars of req.Symbol/req.Interval in timestamp order.
func (s *SQLiteStore) Candles(ctx context.Context, req feed.Request) ([]types.Candle, error) {
	query := `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`
	from := int64(0)
	if !req.Start.IsZero() {
		from = req.Start.UnixMilli()
	}
	to := int64(1<<63 - 1)
	if !req.End.IsZero() {
		to = req.End.UnixMilli()
	}

	rows, err := s.db.QueryContext(ctx, query, req.Symbol, string(req.Interval), from, to)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []types.Candle
	for rows.Next() {
		c := types.Candle{Ticker: req.Symbol, Interval: req.Interval}
		var tsMilli int64
		if err := rows.Scan(&tsMilli, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.Timestamp = time.UnixMilli(tsMilli).UTC()
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, ErrNoCandles
	}
	return feed.LastN(candles, req.Limit), nil
}

// SaveCandles upserts bars in a single transaction.
func (s *SQLiteStore) SaveCandles(ctx context.Context, candles []types.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx,
			c.Ticker, string(c.Interval), c.Timestamp.UnixMilli(),
			c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(), c.Volume.String(),
		); err != nil {
			return fmt.Errorf("sqlite insert candle %s: %w", c.Timestamp.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
