package alert

import (
	"sync"
	"time"

	"github.com/newthinker/tradecost/internal/notifier"
)

// Values exposes a run summary to rule expressions
func Values(s notifier.Summary) map[string]float64 {
	v := map[string]float64{
		"trades":    float64(s.Trades),
		"symbols":   float64(s.Symbols),
		"dates":     float64(s.Dates),
		"total_pnl": s.TotalPnL,
		"win_rate":  s.WinRate,
	}
	if len(s.Top) > 0 {
		v["best_symbol_total"] = s.Top[0].Total
	}
	if len(s.Bottom) > 0 {
		v["worst_symbol_total"] = s.Bottom[0].Total
	}
	return v
}

// Evaluator checks rules against each run and suppresses repeats of the
// same rule within the cooldown.
type Evaluator struct {
	rules    []Rule
	cooldown time.Duration

	// last fired time per rule
	lastFired map[string]time.Time

	now func() time.Time

	mu sync.Mutex
}

// NewEvaluator creates a new alert evaluator. Rules with malformed
// expressions are rejected.
func NewEvaluator(rules []Rule, cooldown time.Duration) (*Evaluator, error) {
	for _, r := range rules {
		if _, err := ParseExpr(r.Expr); err != nil {
			return nil, err
		}
	}
	return &Evaluator{
		rules:     append([]Rule(nil), rules...),
		cooldown:  cooldown,
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}, nil
}

// Len returns the number of rules
func (e *Evaluator) Len() int {
	return len(e.rules)
}

// Evaluate returns the messages of every rule that fires for values, in rule order
func (e *Evaluator) Evaluate(values map[string]float64) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var fired []string
	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Evaluate(values) {
			continue
		}
		if last, ok := e.lastFired[rule.Name]; ok && now.Sub(last) < e.cooldown {
			continue
		}
		e.lastFired[rule.Name] = now
		fired = append(fired, rule.FormatMessage(values))
	}
	return fired
}
