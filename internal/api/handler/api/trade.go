// Package api holds the JSON handlers behind /api/v1.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/newthinker/tradecost/internal/core"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 16 << 20

// TradeDTO is the wire form of a round-trip trade.
type TradeDTO struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side,omitempty"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   int64     `json:"quantity"`
	Return     *float64  `json:"return,omitempty"`
}

// Trade converts the DTO. Field validation is left to the caller.
func (d TradeDTO) Trade() (core.Trade, error) {
	side, err := core.ParseSide(d.Side)
	if err != nil {
		return core.Trade{}, core.Errorf(core.ErrInvalidInput, "%s: unknown side %q", d.Symbol, d.Side)
	}
	return core.Trade{
		Symbol:     d.Symbol,
		Side:       side,
		EntryTime:  d.EntryTime,
		ExitTime:   d.ExitTime,
		EntryPrice: d.EntryPrice,
		ExitPrice:  d.ExitPrice,
		Quantity:   d.Quantity,
		Return:     d.Return,
	}, nil
}

// NewTradeDTO converts a trade for output.
func NewTradeDTO(t core.Trade) TradeDTO {
	return TradeDTO{
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		EntryTime:  t.EntryTime,
		ExitTime:   t.ExitTime,
		EntryPrice: t.EntryPrice,
		ExitPrice:  t.ExitPrice,
		Quantity:   t.Quantity,
		Return:     t.Return,
	}
}

func toTrades(dtos []TradeDTO) ([]core.Trade, error) {
	trades := make([]core.Trade, len(dtos))
	for i, d := range dtos {
		t, err := d.Trade()
		if err != nil {
			return nil, core.Errorf(core.ErrInvalidInput, "trade %d: %v", i, err)
		}
		trades[i] = t
	}
	return trades, nil
}

// decode reads a JSON body into v, reporting malformed input as INVALID_ARGUMENT.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.Errorf(core.ErrInvalidArgument, "decoding request body: %v", err)
	}
	return nil
}

// parseTime accepts RFC 3339 or a bare date.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, core.Errorf(core.ErrInvalidArgument, "bad time %q, want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
