// Package sqlite persists finalized candles and closed trades. A single
// Journal owns the database; candle writes are batched in transactions,
// trade and signal writes are immediate (they are rare).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signal-enginev1/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Journal is a single-writer SQLite store with transaction batching for
// candles.
type Journal struct {
	db *sql.DB

	// OnCommit, when set, receives the latency of every batch commit.
	OnCommit func(time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// New opens (or creates) the journal database with WAL mode and schema.
func New(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", dbPath)
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			instrument   TEXT    NOT NULL,
			period_start INTEGER NOT NULL,
			open         REAL    NOT NULL,
			high         REAL    NOT NULL,
			low          REAL    NOT NULL,
			close        REAL    NOT NULL,
			tick_count   INTEGER NOT NULL,
			PRIMARY KEY (instrument, period_start)
		);

		CREATE TABLE IF NOT EXISTS trades (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument  TEXT    NOT NULL,
			direction   TEXT    NOT NULL,
			entry_time  INTEGER NOT NULL,
			entry_price REAL,
			close_time  INTEGER NOT NULL,
			close_price REAL,
			result      TEXT    NOT NULL
		);

		CREATE TABLE IF NOT EXISTS signals (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument  TEXT    NOT NULL,
			direction   TEXT    NOT NULL,
			entry_time  INTEGER NOT NULL,
			probability REAL    NOT NULL,
			reason      TEXT    NOT NULL,
			created_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades (close_time);
	`)
	return err
}

// Run reads candles from candleCh and inserts them in batched transactions.
// Flushes every batchSize candles OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or candleCh is closed.
func (j *Journal) Run(ctx context.Context, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := j.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			elapsed := time.Since(start)
			if j.OnCommit != nil {
				j.OnCommit(elapsed)
			}
			log.Printf("[sqlite] committed %d candles in %v", len(batch), elapsed)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case candle, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, candle)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (j *Journal) insertBatch(candles []model.Candle) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (instrument, period_start, open, high, low, close, tick_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(c.Instrument, c.PeriodStart, c.Open, c.High, c.Low, c.Close, c.TickCount)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// RecordTrade appends one closed trade.
func (j *Journal) RecordTrade(ctx context.Context, tr model.TradeRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO trades (instrument, direction, entry_time, entry_price, close_time, close_price, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tr.Instrument, string(tr.Direction), tr.EntryTime, nullFloat(tr.EntryPrice), tr.CloseTime, nullFloat(tr.ClosePrice), string(tr.Result))
	if err != nil {
		return fmt.Errorf("sqlite insert trade: %w", err)
	}
	return nil
}

// RecordSignal appends one emitted signal.
func (j *Journal) RecordSignal(ctx context.Context, s model.Signal) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO signals (instrument, direction, entry_time, probability, reason)
		VALUES (?, ?, ?, ?, ?)
	`, s.Instrument, string(s.Direction), s.EntryTime, s.Probability, s.Reason)
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	return nil
}

// GetTrades returns the most recent closed trades, newest first.
func (j *Journal) GetTrades(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT instrument, direction, entry_time, entry_price, close_time, close_price, result
		FROM trades
		ORDER BY close_time DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var trades []model.TradeRecord
	for rows.Next() {
		var tr model.TradeRecord
		var dir, result string
		var entryPrice, closePrice sql.NullFloat64
		if err := rows.Scan(&tr.Instrument, &dir, &tr.EntryTime, &entryPrice, &tr.CloseTime, &closePrice, &result); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		tr.Direction = model.Direction(dir)
		tr.Result = model.Result(result)
		if entryPrice.Valid {
			v := entryPrice.Float64
			tr.EntryPrice = &v
		}
		if closePrice.Valid {
			v := closePrice.Float64
			tr.ClosePrice = &v
		}
		trades = append(trades, tr)
	}
	return trades, rows.Err()
}

// GetCandles returns stored candles for an instrument after a timestamp,
// ordered ascending for replay.
func (j *Journal) GetCandles(ctx context.Context, instrument string, afterTS int64) ([]model.Candle, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT instrument, period_start, open, high, low, close, tick_count
		FROM candles
		WHERE instrument = ? AND period_start > ?
		ORDER BY period_start ASC
	`, instrument, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Instrument, &c.PeriodStart, &c.Open, &c.High, &c.Low, &c.Close, &c.TickCount); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func nullFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
