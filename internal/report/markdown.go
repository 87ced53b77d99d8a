package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/tradecost/internal/performance"
)

const missingCell = "—"

// RenderMarkdown renders the ranked heatmap followed by summary and daily tables.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	m := r.Matrix

	sb.WriteString("# Trade Heatmap\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	}
	sb.WriteString(fmt.Sprintf("Metric: %s | Symbols: %d | Dates: %d\n\n", r.Metric, len(m.Symbols), len(m.Dates)))

	// Heatmap
	sb.WriteString("## Ranking\n\n")
	if len(m.Symbols) == 0 {
		sb.WriteString("No trades.\n\n")
	} else {
		sb.WriteString("| # | Symbol |")
		for _, d := range m.Dates {
			sb.WriteString(" " + d.String() + " |")
		}
		sb.WriteString(" Total |\n")

		sb.WriteString("|---|--------|")
		for range m.Dates {
			sb.WriteString("------|")
		}
		sb.WriteString("-------|\n")

		for i, sym := range m.Symbols {
			sb.WriteString(fmt.Sprintf("| %d | %s |", i+1, escapePipe(sym)))
			for _, c := range m.Cells[i] {
				if c.Valid {
					sb.WriteString(" " + r.Options.Format(c.Value) + " |")
				} else {
					sb.WriteString(" " + missingCell + " |")
				}
			}
			sb.WriteString(" " + r.Options.Format(rowTotal(m.Cells[i])) + " |\n")
		}
		sb.WriteString("\n")
	}

	writeStats(&sb, r.Stats)
	writeDaily(&sb, r.Daily)

	return sb.String()
}

func writeStats(sb *strings.Builder, s performance.Stats) {
	sb.WriteString("## Summary\n\n")
	if s.TotalTrades == 0 {
		sb.WriteString("No trades.\n\n")
		return
	}

	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", s.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Wins / Losses | %d / %d |\n", s.WinningTrades, s.LosingTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.2f%% |\n", s.WinRate*100))
	sb.WriteString(fmt.Sprintf("| Total P&L | %.2f |\n", s.TotalPnL))
	if s.InitialCapital > 0 {
		sb.WriteString(fmt.Sprintf("| Total Return | %.2f%% |\n", s.TotalReturn*100))
	}
	sb.WriteString(fmt.Sprintf("| Avg P&L | %.2f |\n", s.AvgPnL))
	sb.WriteString(fmt.Sprintf("| Avg Win / Avg Loss | %.2f / %.2f |\n", s.AvgWin, s.AvgLoss))
	sb.WriteString(fmt.Sprintf("| Profit Factor | %s |\n", formatRatio(s.ProfitFactor)))
	sb.WriteString(fmt.Sprintf("| Risk/Reward | %s |\n", formatRatio(s.RiskReward)))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.2f (%.2f%%) |\n", s.MaxDrawdown, s.MaxDrawdownPct*100))
	sb.WriteString(fmt.Sprintf("| Sharpe Ratio | %.2f |\n", s.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Trading Days | %d |\n", s.TradingDays))
	sb.WriteString("\n")
}

func writeDaily(sb *strings.Builder, days []performance.DayStats) {
	if len(days) == 0 {
		return
	}

	sb.WriteString("## Daily\n\n")
	sb.WriteString("| Date | Trades | Wins | Win Rate | Total P&L | Avg P&L |\n")
	sb.WriteString("|------|--------|------|----------|-----------|---------|\n")
	for _, d := range days {
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.1f%% | %.2f | %.2f |\n",
			d.Date, d.Trades, d.Wins, d.WinRate*100, d.TotalPnL, d.AvgPnL))
	}
	sb.WriteString("\n")

	if len(days) > 1 {
		best := performance.Best(days, 3)
		worst := performance.Worst(days, 3)
		sb.WriteString("Best days: ")
		sb.WriteString(joinDays(best))
		sb.WriteString("\n\nWorst days: ")
		sb.WriteString(joinDays(worst))
		sb.WriteString("\n")
	}
}

func joinDays(days []performance.DayStats) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = fmt.Sprintf("%s (%.2f)", d.Date, d.TotalPnL)
	}
	return strings.Join(parts, ", ")
}

func escapePipe(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
