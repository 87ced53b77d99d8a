package pipeline

import (
	"context"
	"time"

	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/ingest"
	"github.com/newthinker/tradecost/internal/storage"
)

// Source supplies the trades for one run
type Source interface {
	Name() string
	Load(ctx context.Context) ([]core.Trade, error)
}

// FileSource reads trades from a CSV file
type FileSource struct {
	Path    string
	Options ingest.Options
}

func (s FileSource) Name() string { return "csv" }

func (s FileSource) Load(ctx context.Context) ([]core.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ingest.ReadFile(s.Path, s.Options)
}

// StoreSource reads trades entered in [From, To) from a trade store
type StoreSource struct {
	Store    storage.TradeStore
	From, To time.Time
}

func (s StoreSource) Name() string { return "store" }

func (s StoreSource) Load(ctx context.Context) ([]core.Trade, error) {
	return s.Store.Range(ctx, s.From, s.To)
}

// StaticSource serves trades already in memory, such as an API request body
type StaticSource []core.Trade

func (s StaticSource) Name() string { return "api" }

func (s StaticSource) Load(ctx context.Context) ([]core.Trade, error) {
	return s, nil
}
