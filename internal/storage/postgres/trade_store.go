package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
// TIMESTAMPTZ drops the zone, so each timestamp's UTC offset is kept alongside it.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a TradeStore on an open pool.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*TradeStore, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if err := pool.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return NewTradeStore(pool), nil
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const insertTrade = `
	INSERT INTO trades (
		symbol, side, entry_time, exit_time, entry_offset, exit_offset,
		entry_price, exit_price, quantity, return_value
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, t := range trades {
		tag, err := tx.Exec(ctx, insertTrade,
			t.Symbol, string(t.Side), t.EntryTime, t.ExitTime,
			storage.ZoneOffset(t.EntryTime), storage.ZoneOffset(t.ExitTime),
			t.EntryPrice, t.ExitPrice, t.Quantity, t.Return,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				continue
			}
			return 0, core.WrapError(core.ErrStorageFailed, fmt.Errorf("insert trade %s: %w", t.Symbol, err))
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
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
		args = append(args, from)
		conds = append(conds, fmt.Sprintf("entry_time >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conds = append(conds, fmt.Sprintf("entry_time < $%d", len(args)))
	}

	query := `
		SELECT ` + tradeColumns + `
		FROM trades`
	if len(conds) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conds, " AND ")
	}
	query += "\n\t\tORDER BY entry_time, symbol, side"

	rows, err := s.pool.Query(ctx, query, args...)
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
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT symbol FROM trades ORDER BY symbol`)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("query symbols: %w", err))
	}
	symbols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("collect symbols: %w", err))
	}
	return symbols, nil
}

// Latest returns the most recently entered trade.
func (s *TradeStore) Latest(ctx context.Context) (core.Trade, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		ORDER BY entry_time DESC
		LIMIT 1`)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return core.Trade{}, core.ErrNotFound
		}
		return core.Trade{}, core.WrapError(core.ErrStorageFailed, fmt.Errorf("latest trade: %w", err))
	}
	return t, nil
}

// Close closes the pool.
func (s *TradeStore) Close() error {
	s.pool.Close()
	return nil
}

const tradeColumns = `symbol, side, entry_time, exit_time, entry_offset, exit_offset,
		       entry_price, exit_price, quantity, return_value`

func scanTrade(row pgx.Row) (core.Trade, error) {
	var (
		t                 core.Trade
		side              string
		entryOff, exitOff int32
	)
	err := row.Scan(
		&t.Symbol, &side, &t.EntryTime, &t.ExitTime, &entryOff, &exitOff,
		&t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.Return,
	)
	if err != nil {
		return core.Trade{}, err
	}
	t.Side = core.Side(side)
	t.EntryTime = storage.InZone(t.EntryTime, int(entryOff))
	t.ExitTime = storage.InZone(t.ExitTime, int(exitOff))
	return t, nil
}
