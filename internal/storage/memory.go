package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/newthinker/tradecost/internal/core"
)

// MemoryStore is an in-memory trade store.
type MemoryStore struct {
	trades []core.Trade
	index  map[Key]struct{}
	mu     sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[Key]struct{})}
}

// Compile-time interface check.
var _ TradeStore = (*MemoryStore)(nil)

// Insert adds trades that are not already present.
func (m *MemoryStore) Insert(ctx context.Context, trades []core.Trade) (int, error) {
	if err := ValidateAll(trades); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, t := range trades {
		k := KeyOf(t)
		if _, ok := m.index[k]; ok {
			continue
		}
		m.index[k] = struct{}{}
		m.trades = append(m.trades, t)
		inserted++
	}
	return inserted, nil
}

// Range returns trades entered in [from, to).
func (m *MemoryStore) Range(ctx context.Context, from, to time.Time) ([]core.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []core.Trade{}
	for _, t := range m.trades {
		if InRange(t.EntryTime, from, to) {
			result = append(result, t)
		}
	}
	SortTrades(result)
	return result, nil
}

// Symbols returns the distinct symbols held.
func (m *MemoryStore) Symbols(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, t := range m.trades {
		seen[t.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Latest returns the trade with the newest entry time.
func (m *MemoryStore) Latest(ctx context.Context) (core.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.trades) == 0 {
		return core.Trade{}, core.ErrNotFound
	}
	latest := m.trades[0]
	for _, t := range m.trades[1:] {
		if t.EntryTime.After(latest.EntryTime) {
			latest = t
		}
	}
	return latest, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
