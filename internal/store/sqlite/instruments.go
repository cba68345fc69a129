// Package sqlite persists the instrument reference table so lookups do not
// need the provider's multi-megabyte JSON dump on every run.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"equity-screener/internal/instruments"
	"equity-screener/internal/model"
)

// InstrumentStore is a SQLite-backed Resolver and universe source.
type InstrumentStore struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens (creating if needed) the database at path in WAL mode.
func Open(path string, log *slog.Logger) (*InstrumentStore, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log = log.With(slog.String("component", "sqlite"))
	log.Info("opened database", slog.String("path", path))
	return &InstrumentStore{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS instruments (
			instrument_key  TEXT PRIMARY KEY,
			symbol          TEXT NOT NULL,
			exchange        TEXT NOT NULL,
			segment         TEXT,
			trading_symbol  TEXT,
			asset_symbol    TEXT,
			name            TEXT,
			instrument_type TEXT,
			isin            TEXT,
			lot_size        REAL,
			tick_size       REAL,
			imported_at     INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_instruments_lookup ON instruments (exchange, symbol);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (s *InstrumentStore) DB() *sql.DB { return s.db }

// ImportInstruments upserts list in a single transaction and returns the
// number of rows written. Rows without a key or symbol are skipped.
func (s *InstrumentStore) ImportInstruments(ctx context.Context, list []model.Instrument) (int, error) {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO instruments
			(instrument_key, symbol, exchange, segment, trading_symbol, asset_symbol,
			 name, instrument_type, isin, lot_size, tick_size, imported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	now := start.Unix()
	n := 0
	for _, in := range list {
		sym := in.Symbol()
		if in.Key == "" || sym == "" {
			continue
		}
		_, err := stmt.ExecContext(ctx, in.Key, sym, model.NormalizeSymbol(in.Exchange), in.Segment,
			in.TradingSymbol, in.AssetSymbol, in.Name, in.InstrumentType, in.ISIN,
			in.LotSize, in.TickSize, now)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("sqlite insert %s: %w", in.Key, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.log.Info("imported instruments", slog.Int("rows", n), slog.Duration("took", time.Since(start)))
	return n, nil
}

// Resolve returns the instrument key for (symbol, exchange), preferring
// equity rows when the pair is ambiguous.
func (s *InstrumentStore) Resolve(symbol, exchange string) (string, error) {
	sym, exch := model.NormalizeSymbol(symbol), model.NormalizeSymbol(exchange)
	var key string
	err := s.db.QueryRow(`
		SELECT instrument_key FROM instruments
		WHERE exchange = ? AND symbol = ?
		ORDER BY CASE WHEN UPPER(instrument_type) IN ('EQ', 'SM') THEN 0 ELSE 1 END, rowid
		LIMIT 1
	`, exch, sym).Scan(&key)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s on %s: %w", sym, exch, model.ErrResolution)
	}
	if err != nil {
		return "", fmt.Errorf("sqlite resolve %s:%s: %w", exch, sym, err)
	}
	return key, nil
}

// Equities returns the stored equity universe filtered by exchange prefix.
func (s *InstrumentStore) Equities(ctx context.Context, exchanges []string) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instrument_key, exchange, trading_symbol, instrument_type
		FROM instruments
		WHERE UPPER(instrument_type) IN ('EQ', 'SM')
		ORDER BY exchange, symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query equities: %w", err)
	}
	defer rows.Close()

	var list []model.Instrument
	for rows.Next() {
		var in model.Instrument
		var ts sql.NullString
		if err := rows.Scan(&in.Key, &in.Exchange, &ts, &in.InstrumentType); err != nil {
			return nil, fmt.Errorf("sqlite scan equities: %w", err)
		}
		in.TradingSymbol = ts.String
		list = append(list, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return instruments.Equities(list, exchanges), nil
}

// Count returns the number of stored instruments.
func (s *InstrumentStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM instruments`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *InstrumentStore) Close() error {
	return s.db.Close()
}
