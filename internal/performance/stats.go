// Package performance derives summary and per-day statistics from costed trades.
package performance

import (
	"math"
	"sort"

	"github.com/newthinker/tradecost/internal/aggregate"
	"github.com/newthinker/tradecost/internal/core"
)

const tradingDaysPerYear = 252

// Calculate computes performance statistics from trades.
// initialCapital scales TotalReturn, the drawdown percentage and the daily
// returns behind the Sharpe ratio; pass 0 to fall back to per-trade returns.
func Calculate(trades []Trade, initialCapital float64) Stats {
	if len(trades) == 0 {
		return Stats{InitialCapital: initialCapital}
	}

	var wins, losses []float64
	pnls := make([]float64, 0, len(trades))
	for _, t := range trades {
		pnls = append(pnls, t.NetProfit)
		switch {
		case t.IsWin():
			wins = append(wins, t.NetProfit)
		case t.IsLoss():
			losses = append(losses, t.NetProfit)
		}
	}

	total := aggregate.Sum(pnls)
	grossWin := aggregate.Sum(wins)
	grossLoss := math.Abs(aggregate.Sum(losses))

	stats := Stats{
		TotalTrades:    len(trades),
		WinningTrades:  len(wins),
		LosingTrades:   len(losses),
		WinRate:        float64(len(wins)) / float64(len(trades)),
		TotalPnL:       total,
		AvgPnL:         total / float64(len(trades)),
		AvgWin:         mean(wins),
		AvgLoss:        mean(losses),
		ProfitFactor:   profitFactor(grossWin, grossLoss),
		InitialCapital: initialCapital,
	}

	if initialCapital > 0 {
		stats.TotalReturn = total / initialCapital
	}
	if stats.AvgLoss != 0 {
		stats.RiskReward = stats.AvgWin / math.Abs(stats.AvgLoss)
	}

	stats.MaxDrawdown, stats.MaxDrawdownPct = maxDrawdown(trades, initialCapital)

	daily := Daily(trades)
	stats.TradingDays = len(daily)
	stats.SharpeRatio = sharpeRatio(dailyReturns(trades, daily, initialCapital))

	return stats
}

func profitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossWin > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossWin / grossLoss
}

// maxDrawdown walks the equity curve in entry order and finds the largest
// peak-to-trough decline in currency and as a fraction of the peak
func maxDrawdown(trades []Trade, initialCapital float64) (float64, float64) {
	ordered := make([]Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EntryTime.Before(ordered[j].EntryTime)
	})

	equity := initialCapital
	peak := equity
	var maxDD, maxDDPct float64

	for _, t := range ordered {
		equity += t.NetProfit
		if equity > peak {
			peak = equity
		}
		dd := peak - equity
		if dd > maxDD {
			maxDD = dd
		}
		if peak > 0 {
			if pct := dd / peak; pct > maxDDPct {
				maxDDPct = pct
			}
		}
	}

	return maxDD, maxDDPct
}

func dailyReturns(trades []Trade, daily []DayStats, initialCapital float64) []float64 {
	if initialCapital > 0 {
		out := make([]float64, len(daily))
		for i, d := range daily {
			out[i] = d.TotalPnL / initialCapital
		}
		return out
	}

	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.ReturnPct
	}
	return out
}

// sharpeRatio computes risk-adjusted return.
// Assumes risk-free rate of 0.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	m := mean(returns)

	var variance float64
	for _, r := range returns {
		variance += (r - m) * (r - m)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	return m / stdDev * math.Sqrt(tradingDaysPerYear)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return aggregate.Sum(values) / float64(len(values))
}

// Daily groups trades by entry date, ascending
func Daily(trades []Trade) []DayStats {
	byDate := make(map[core.Date][]Trade)
	for _, t := range trades {
		byDate[t.Date()] = append(byDate[t.Date()], t)
	}

	days := make([]DayStats, 0, len(byDate))
	for d, group := range byDate {
		pnls := make([]float64, len(group))
		var wins int
		for i, t := range group {
			pnls[i] = t.NetProfit
			if t.IsWin() {
				wins++
			}
		}
		total := aggregate.Sum(pnls)
		days = append(days, DayStats{
			Date:     d,
			TotalPnL: total,
			AvgPnL:   total / float64(len(group)),
			Trades:   len(group),
			Wins:     wins,
			WinRate:  float64(wins) / float64(len(group)),
		})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days
}

// Worst returns up to n days with the lowest total P&L, worst first
func Worst(days []DayStats, n int) []DayStats {
	sorted := append([]DayStats(nil), days...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TotalPnL < sorted[j].TotalPnL })
	return sorted[:min(n, len(sorted))]
}

// Best returns up to n days with the highest total P&L, best first
func Best(days []DayStats, n int) []DayStats {
	sorted := append([]DayStats(nil), days...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TotalPnL > sorted[j].TotalPnL })
	return sorted[:min(n, len(sorted))]
}
