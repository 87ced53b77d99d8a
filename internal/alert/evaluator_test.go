package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/notifier"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		expr    string
		want    Condition
		wantErr bool
	}{
		{"total_pnl > 100", Condition{"total_pnl", ">", 100}, false},
		{"worst_symbol_total<=-5e4", Condition{"worst_symbol_total", "<=", -50000}, false},
		{" win_rate != 0.5 ", Condition{"win_rate", "!=", 0.5}, false},
		{"trades >= 10", Condition{"trades", ">=", 10}, false},
		{"total_pnl >", Condition{}, true},
		{"total_pnl ~ 3", Condition{}, true},
		{"", Condition{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseExpr(tt.expr)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrConfigInvalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRule_Evaluate(t *testing.T) {
	values := map[string]float64{"total_pnl": -20, "win_rate": 0.4}

	tests := []struct {
		expr string
		want bool
	}{
		{"total_pnl < 0", true},
		{"total_pnl > 0", false},
		{"win_rate == 0.4", true},
		{"win_rate >= 0.5", false},
		{"trades > 0", false},
		{"not an expression", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			r := Rule{Name: "r", Expr: tt.expr}
			assert.Equal(t, tt.want, r.Evaluate(values))
		})
	}
}

func TestRule_FormatMessage(t *testing.T) {
	r := Rule{Name: "losing_day", Expr: "total_pnl < 0", Severity: "critical", Message: "run lost money"}
	assert.Equal(t, "[CRITICAL] losing_day: run lost money (total_pnl=-20)",
		r.FormatMessage(map[string]float64{"total_pnl": -20}))

	bare := Rule{Name: "few_trades", Expr: "trades < 5"}
	assert.Equal(t, "[WARNING] few_trades", bare.FormatMessage(nil))
}

func TestNewEvaluator_RejectsMalformed(t *testing.T) {
	_, err := NewEvaluator([]Rule{{Name: "bad", Expr: "total_pnl <>"}}, 0)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestEvaluator_Cooldown(t *testing.T) {
	eval, err := NewEvaluator([]Rule{
		{Name: "loss", Expr: "total_pnl < 0"},
		{Name: "big_win", Expr: "total_pnl > 1000"},
	}, 5*time.Minute)
	require.NoError(t, err)

	now := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	eval.now = func() time.Time { return now }

	loss := map[string]float64{"total_pnl": -1}
	assert.Len(t, eval.Evaluate(loss), 1)
	assert.Empty(t, eval.Evaluate(loss), "suppressed within cooldown")

	now = now.Add(6 * time.Minute)
	assert.Len(t, eval.Evaluate(loss), 1, "fires again after cooldown")

	assert.Equal(t, []string{"[WARNING] big_win (total_pnl=5000)"},
		eval.Evaluate(map[string]float64{"total_pnl": 5000}))
}

func TestValues(t *testing.T) {
	s := notifier.Summary{
		Trades:   4,
		Symbols:  2,
		Dates:    1,
		TotalPnL: 150,
		WinRate:  0.75,
		Top:      []notifier.Ranked{{Rank: 1, Symbol: "A", Total: 200}},
		Bottom:   []notifier.Ranked{{Rank: 2, Symbol: "B", Total: -50}},
	}

	v := Values(s)
	assert.Equal(t, 4.0, v["trades"])
	assert.Equal(t, 2.0, v["symbols"])
	assert.Equal(t, 1.0, v["dates"])
	assert.Equal(t, 150.0, v["total_pnl"])
	assert.Equal(t, 0.75, v["win_rate"])
	assert.Equal(t, 200.0, v["best_symbol_total"])
	assert.Equal(t, -50.0, v["worst_symbol_total"])

	empty := Values(notifier.Summary{})
	_, ok := empty["worst_symbol_total"]
	assert.False(t, ok)
}
