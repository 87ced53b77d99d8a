package performance

import (
	"encoding/json"
	"time"

	"github.com/newthinker/tradecost/internal/core"
)

// Trade is a costed round-trip trade
type Trade struct {
	Symbol    string
	EntryTime time.Time
	NetProfit float64 // after commission
	ReturnPct float64 // NetProfit as a fraction of entry notional
}

// Date returns the entry date of the trade
func (t Trade) Date() core.Date {
	return core.DateOf(t.EntryTime)
}

// IsWin returns true if the trade was profitable
func (t Trade) IsWin() bool {
	return t.NetProfit > 0
}

// IsLoss returns true if the trade lost money
func (t Trade) IsLoss() bool {
	return t.NetProfit < 0
}

// Stats holds performance statistics
type Stats struct {
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`         // fraction of trades with positive P&L
	TotalPnL       float64 `json:"total_pnl"`        // sum of net profit
	TotalReturn    float64 `json:"total_return"`     // TotalPnL / initial capital
	ProfitFactor   float64 `json:"profit_factor"`    // gross wins / gross losses, +Inf with no losses
	AvgPnL         float64 `json:"avg_pnl"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	RiskReward     float64 `json:"risk_reward"`      // AvgWin / |AvgLoss|
	MaxDrawdown    float64 `json:"max_drawdown"`     // largest peak-to-trough decline of equity
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // the same decline as a fraction of the peak
	SharpeRatio    float64 `json:"sharpe_ratio"`     // annualized over daily returns
	TradingDays    int     `json:"trading_days"`
	InitialCapital float64 `json:"initial_capital"`
}

// MarshalJSON renders an infinite profit factor as null
func (s Stats) MarshalJSON() ([]byte, error) {
	type alias Stats
	var pf *float64
	if core.IsFinite(s.ProfitFactor) {
		pf = &s.ProfitFactor
	}
	return json.Marshal(struct {
		alias
		ProfitFactor *float64 `json:"profit_factor"`
	}{alias(s), pf})
}

// DayStats summarizes all trades opened on one date
type DayStats struct {
	Date     core.Date `json:"date"`
	TotalPnL float64   `json:"total_pnl"`
	AvgPnL   float64   `json:"avg_pnl"`
	Trades   int       `json:"trades"`
	Wins     int       `json:"wins"`
	WinRate  float64   `json:"win_rate"` // fraction, 0..1
}
