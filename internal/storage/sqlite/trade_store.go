// Package sqlite implements storage.TradeStore on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/storage"
)

//go:embed schema.sql
var schema string

// TradeStore implements storage.TradeStore using SQLite.
// Timestamps are stored as unix nanoseconds plus their UTC offset and read
// back in a fixed zone with that offset.
type TradeStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*TradeStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("open sqlite %s: %w", path, err))
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("apply schema: %w", err))
	}
	if err := addOffsetColumns(ctx, db); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("migrate schema: %w", err))
	}
	return &TradeStore{db: db}, nil
}

// addOffsetColumns upgrades databases created before zone offsets were kept.
// Their rows read back in UTC.
func addOffsetColumns(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info('trades')`)
	if err != nil {
		return err
	}
	have := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		have[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, col := range []string{"entry_offset", "exit_offset"} {
		if have[col] {
			continue
		}
		if _, err := db.ExecContext(ctx, `ALTER TABLE trades ADD COLUMN `+col+` INTEGER NOT NULL DEFAULT 0`); err != nil {
			return err
		}
	}
	return nil
}

const insertTrade = `
	INSERT INTO trades (
		symbol, side, entry_time, exit_time, entry_offset, exit_offset,
		entry_price, exit_price, quantity, return_value
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (symbol, entry_time, side) DO NOTHING
`

// Insert adds trades in one transaction. Existing keys are skipped.
func (s *TradeStore) Insert(ctx context.Context, trades []core.Trade) (int, error) {
	if err := storage.ValidateAll(trades); err != nil {
		return 0, err
	}
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTrade)
	if err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range trades {
		var ret sql.NullFloat64
		if t.Return != nil {
			ret = sql.NullFloat64{Float64: *t.Return, Valid: true}
		}
		res, err := stmt.ExecContext(ctx,
			t.Symbol, string(t.Side), t.EntryTime.UnixNano(), t.ExitTime.UnixNano(),
			storage.ZoneOffset(t.EntryTime), storage.ZoneOffset(t.ExitTime),
			t.EntryPrice, t.ExitPrice, t.Quantity, ret,
		)
		if err != nil {
			return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("insert trade %s: %w", t.Symbol, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, core.WrapError(core.ErrStorageFailed, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("commit tx: %w", err))
	}
	return inserted, nil
}

// Range returns trades entered in [from, to), ordered by entry time.
func (s *TradeStore) Range(ctx context.Context, from, to time.Time) ([]core.Trade, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "entry_time >= ?")
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		conds = append(conds, "entry_time < ?")
		args = append(args, to.UnixNano())
	}

	query := `SELECT ` + tradeColumns + ` FROM trades`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY entry_time, symbol, side"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("query trades: %w", err))
	}
	defer rows.Close()

	trades := []core.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("scan trade: %w", err))
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("iterate trades: %w", err))
	}
	return trades, nil
}

// Symbols returns the distinct symbols held.
func (s *TradeStore) Symbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM trades ORDER BY symbol`)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("query symbols: %w", err))
	}
	defer rows.Close()

	symbols := []string{}
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// Latest returns the most recently entered trade.
func (s *TradeStore) Latest(ctx context.Context) (core.Trade, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM trades ORDER BY entry_time DESC LIMIT 1`)
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Trade{}, core.ErrNotFound
		}
		return core.Trade{}, core.WrapError(core.ErrStorageFailed, fmt.Errorf("latest trade: %w", err))
	}
	return t, nil
}

// Close closes the database.
func (s *TradeStore) Close() error {
	return s.db.Close()
}

const tradeColumns = `symbol, side, entry_time, exit_time, entry_offset, exit_offset,
	entry_price, exit_price, quantity, return_value`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(row scanner) (core.Trade, error) {
	var (
		t                 core.Trade
		side              string
		entry, exit       int64
		entryOff, exitOff int
		ret               sql.NullFloat64
	)
	if err := row.Scan(&t.Symbol, &side, &entry, &exit, &entryOff, &exitOff,
		&t.EntryPrice, &t.ExitPrice, &t.Quantity, &ret); err != nil {
		return core.Trade{}, err
	}
	t.Side = core.Side(side)
	t.EntryTime = storage.InZone(time.Unix(0, entry), entryOff)
	t.ExitTime = storage.InZone(time.Unix(0, exit), exitOff)
	if ret.Valid {
		v := ret.Float64
		t.Return = &v
	}
	return t, nil
}
