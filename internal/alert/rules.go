// Package alert checks threshold rules against finished heatmap runs.
package alert

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/newthinker/tradecost/internal/core"
)

// exprPattern matches "value op threshold"
var exprPattern = regexp.MustCompile(`^(\w+)\s*(>=|<=|==|!=|>|<)\s*(-?\d+(?:\.\d*)?(?:[eE][-+]?\d+)?)$`)

// Rule defines an alert rule.
type Rule struct {
	Name     string `mapstructure:"name"`
	Expr     string `mapstructure:"expr"` // e.g. "worst_symbol_total < -50000"
	Severity string `mapstructure:"severity"`
	Message  string `mapstructure:"message"`
}

// Condition is a parsed rule expression
type Condition struct {
	Value     string
	Op        string
	Threshold float64
}

// ParseExpr parses "value op threshold". Supported operators are
// >, <, >=, <=, == and !=.
func ParseExpr(expr string) (Condition, error) {
	m := exprPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return Condition{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("malformed alert expression %q", expr))
	}
	threshold, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Condition{}, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("alert threshold %q: %w", m[3], err))
	}
	return Condition{Value: m[1], Op: m[2], Threshold: threshold}, nil
}

// Holds reports whether the condition is true for values. A value missing
// from the map never matches.
func (c Condition) Holds(values map[string]float64) bool {
	v, ok := values[c.Value]
	if !ok {
		return false
	}

	switch c.Op {
	case ">":
		return v > c.Threshold
	case "<":
		return v < c.Threshold
	case ">=":
		return v >= c.Threshold
	case "<=":
		return v <= c.Threshold
	case "==":
		return v == c.Threshold
	case "!=":
		return v != c.Threshold
	default:
		return false
	}
}

// Evaluate evaluates the rule expression against values. Malformed
// expressions never fire.
func (r *Rule) Evaluate(values map[string]float64) bool {
	c, err := ParseExpr(r.Expr)
	if err != nil {
		return false
	}
	return c.Holds(values)
}

// FormatMessage formats the alert message with the observed value.
func (r *Rule) FormatMessage(values map[string]float64) string {
	severity := r.Severity
	if severity == "" {
		severity = "warning"
	}
	msg := fmt.Sprintf("[%s] %s", strings.ToUpper(severity), r.Name)
	if r.Message != "" {
		msg += ": " + r.Message
	}
	if c, err := ParseExpr(r.Expr); err == nil {
		if v, ok := values[c.Value]; ok {
			msg += fmt.Sprintf(" (%s=%g)", c.Value, v)
		}
	}
	return msg
}
