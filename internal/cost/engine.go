// Package cost computes trading commissions and net profit for round-trip trades.
//
// A single flat commission rate is charged on the notional value of each leg.
// Both legs use the same rate regardless of the position's side.
package cost

import (
	"math"

	"github.com/newthinker/tradecost/internal/core"
)

// Model holds the cost configuration
type Model struct {
	CommissionRate float64 // fraction of notional charged per leg, in [0, 1]
}

// Engine computes costs for a fixed Model. It is immutable and safe for concurrent use.
type Engine struct {
	rate float64
}

// Result is the full cost breakdown of one trade
type Result struct {
	Gross      float64 `json:"gross"`
	Commission float64 `json:"commission"`
	Net        float64 `json:"net"`
	ReturnPct  float64 `json:"return_pct"` // Net as a fraction of entry notional
}

// New creates an Engine for the given per-leg commission rate.
// A rate outside [0, 1] usually means a percentage was passed instead of a fraction.
func New(rate float64) (*Engine, error) {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return nil, core.Errorf(core.ErrInvalidConfiguration,
			"commission rate must be between 0 and 1, got %v", rate)
	}
	return &Engine{rate: rate}, nil
}

// NewFromModel creates an Engine from a Model
func NewFromModel(m Model) (*Engine, error) {
	return New(m.CommissionRate)
}

// Rate returns the configured commission rate
func (e *Engine) Rate() float64 {
	return e.rate
}

// Commission returns the commission for one leg
func (e *Engine) Commission(price float64, quantity int64) float64 {
	return price * float64(quantity) * e.rate
}

// RoundtripCost returns the commission for the entry and exit legs combined
func (e *Engine) RoundtripCost(entryPrice, exitPrice float64, quantity int64) float64 {
	return e.Commission(entryPrice, quantity) + e.Commission(exitPrice, quantity)
}

// Gross returns the directional profit before costs
func Gross(entryPrice, exitPrice float64, quantity int64, side core.Side) (float64, error) {
	switch side {
	case core.SideLong:
		return (exitPrice - entryPrice) * float64(quantity), nil
	case core.SideShort:
		return (entryPrice - exitPrice) * float64(quantity), nil
	}
	return 0, core.Errorf(core.ErrInvalidArgument, "side must be long or short, got %q", side)
}

// NetProfit returns the gross profit minus the round-trip commission
func (e *Engine) NetProfit(entryPrice, exitPrice float64, quantity int64, side core.Side) (float64, error) {
	gross, err := Gross(entryPrice, exitPrice, quantity, side)
	if err != nil {
		return 0, err
	}
	return gross - e.RoundtripCost(entryPrice, exitPrice, quantity), nil
}

// Evaluate returns the cost breakdown for a trade
func (e *Engine) Evaluate(t core.Trade) (Result, error) {
	gross, err := Gross(t.EntryPrice, t.ExitPrice, t.Quantity, t.Side)
	if err != nil {
		return Result{}, err
	}

	commission := e.RoundtripCost(t.EntryPrice, t.ExitPrice, t.Quantity)
	net := gross - commission

	var pct float64
	if notional := t.Notional(); notional != 0 {
		pct = net / notional
	}

	return Result{
		Gross:      gross,
		Commission: commission,
		Net:        net,
		ReturnPct:  pct,
	}, nil
}
