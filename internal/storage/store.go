// Package storage persists round-trip trades for later aggregation.
package storage

import (
	"context"
	"sort"
	"time"

	"github.com/newthinker/tradecost/internal/core"
)

// TradeStore defines the interface for trade persistence.
// Trades are keyed by (symbol, entry time, side); inserting an existing key is a no-op.
type TradeStore interface {
	// Insert validates and persists trades, returning how many were new.
	Insert(ctx context.Context, trades []core.Trade) (int, error)

	// Range returns trades whose entry time falls in [from, to).
	// A zero bound leaves that side open.
	Range(ctx context.Context, from, to time.Time) ([]core.Trade, error)

	// Symbols returns the distinct symbols held, ascending.
	Symbols(ctx context.Context) ([]string, error)

	// Latest returns the trade with the newest entry time, or core.ErrNotFound.
	Latest(ctx context.Context) (core.Trade, error)

	// Close releases the underlying connection.
	Close() error
}

// Key identifies a stored trade
type Key struct {
	Symbol    string
	EntryTime int64 // unix nanoseconds, so equal instants in different zones collide
	Side      core.Side
}

// KeyOf returns the identity of t
func KeyOf(t core.Trade) Key {
	return Key{Symbol: t.Symbol, EntryTime: t.EntryTime.UnixNano(), Side: t.Side}
}

// ZoneOffset returns the UTC offset of t in seconds
func ZoneOffset(t time.Time) int {
	_, off := t.Zone()
	return off
}

// InZone rebuilds a stored instant in the fixed zone it was written with,
// so the calendar date seen by core.DateOf survives a round trip
func InZone(t time.Time, offset int) time.Time {
	if offset == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offset))
}

// InRange reports whether ts lies in [from, to), treating zero bounds as open
func InRange(ts, from, to time.Time) bool {
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && !ts.Before(to) {
		return false
	}
	return true
}

// ValidateAll checks every trade before anything is written
func ValidateAll(trades []core.Trade) error {
	for i, t := range trades {
		if err := t.Validate(); err != nil {
			return core.Errorf(core.ErrInvalidInput, "trade %d: %v", i, err)
		}
	}
	return nil
}

// SortTrades orders trades by entry time, then symbol, then side
func SortTrades(trades []core.Trade) {
	sort.Slice(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if !a.EntryTime.Equal(b.EntryTime) {
			return a.EntryTime.Before(b.EntryTime)
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Side < b.Side
	})
}
