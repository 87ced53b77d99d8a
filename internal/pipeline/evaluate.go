package pipeline

import (
	"time"

	"github.com/newthinker/tradecost/internal/config"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/cost"
	"github.com/newthinker/tradecost/internal/performance"
)

// Costed is one trade with its cost breakdown and aggregated value
type Costed struct {
	Trade  core.Trade
	Result cost.Result
	Value  float64 // the metric fed to the aggregator
}

// Evaluate costs every trade and derives aggregator outcomes and performance inputs.
//
// metric "pnl" aggregates net profit, "return" aggregates net profit over entry
// notional. A trade carrying an external Return uses it as its return, and its
// P&L becomes that return times entry notional. When loc is set, entry times
// are moved into loc so calendar dates are taken there.
func Evaluate(engine *cost.Engine, trades []core.Trade, metric string, loc *time.Location) ([]Costed, []core.Outcome, []performance.Trade, error) {
	costed := make([]Costed, len(trades))
	outcomes := make([]core.Outcome, len(trades))
	perf := make([]performance.Trade, len(trades))

	for i, t := range trades {
		if err := t.Validate(); err != nil {
			return nil, nil, nil, core.Errorf(core.ErrInvalidInput, "trade %d: %v", i, err)
		}
		if loc != nil {
			t.EntryTime = t.EntryTime.In(loc)
			t.ExitTime = t.ExitTime.In(loc)
		}

		res, err := engine.Evaluate(t)
		if err != nil {
			return nil, nil, nil, err
		}
		if t.Return != nil {
			res.ReturnPct = *t.Return
			res.Net = *t.Return * t.Notional()
		}

		value := res.ReturnPct
		if metric == config.MetricPnL {
			value = res.Net
		}

		costed[i] = Costed{Trade: t, Result: res, Value: value}
		outcomes[i] = core.Outcome{Symbol: t.Symbol, EntryTime: t.EntryTime, Return: value}
		perf[i] = performance.Trade{
			Symbol:    t.Symbol,
			EntryTime: t.EntryTime,
			NetProfit: res.Net,
			ReturnPct: res.ReturnPct,
		}
	}

	return costed, outcomes, perf, nil
}
