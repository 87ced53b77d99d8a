package core

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Side is the direction of a position
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// IsValid reports whether s is long or short
func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// ParseSide normalizes a side string. An empty string means long.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "long":
		return SideLong, nil
	case "short":
		return SideShort, nil
	}
	return "", Errorf(ErrInvalidArgument, "unknown side %q", s)
}

// Date is a calendar date without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's own location
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IsZero reports whether d is the zero date
func (d Date) IsZero() bool {
	return d == Date{}
}

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or after o
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Before reports whether d is strictly earlier than o
func (d Date) Before(o Date) bool {
	return d.Compare(o) < 0
}

// MarshalText implements encoding.TextMarshaler so dates render as YYYY-MM-DD in JSON
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Trade is one round-trip transaction: an entry and an exit treated as a unit
type Trade struct {
	Symbol     string
	Side       Side
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   int64
	Return     *float64 // externally computed return, overrides the cost engine when set
}

// HoldDuration returns how long the position was held
func (t Trade) HoldDuration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}

// Date returns the calendar date the trade was opened on.
// Trades held across midnight stay attributed to their entry day.
func (t Trade) Date() Date {
	return DateOf(t.EntryTime)
}

// Notional returns the entry value of the position
func (t Trade) Notional() float64 {
	return t.EntryPrice * float64(t.Quantity)
}

// Validate checks the trade's fields
func (t Trade) Validate() error {
	switch {
	case strings.TrimSpace(t.Symbol) == "":
		return Errorf(ErrInvalidInput, "missing symbol")
	case !t.Side.IsValid():
		return Errorf(ErrInvalidInput, "%s: unknown side %q", t.Symbol, t.Side)
	case t.EntryTime.IsZero():
		return Errorf(ErrInvalidInput, "%s: missing entry time", t.Symbol)
	case t.ExitTime.IsZero():
		return Errorf(ErrInvalidInput, "%s: missing exit time", t.Symbol)
	case t.ExitTime.Before(t.EntryTime):
		return Errorf(ErrInvalidInput, "%s: exit %s before entry %s", t.Symbol,
			t.ExitTime.Format(time.RFC3339), t.EntryTime.Format(time.RFC3339))
	case !isPositive(t.EntryPrice):
		return Errorf(ErrInvalidInput, "%s: entry price must be positive, got %v", t.Symbol, t.EntryPrice)
	case !isPositive(t.ExitPrice):
		return Errorf(ErrInvalidInput, "%s: exit price must be positive, got %v", t.Symbol, t.ExitPrice)
	case t.Quantity <= 0:
		return Errorf(ErrInvalidInput, "%s: quantity must be positive, got %d", t.Symbol, t.Quantity)
	case t.Return != nil && !IsFinite(*t.Return):
		return Errorf(ErrInvalidInput, "%s: non-numeric return %v", t.Symbol, *t.Return)
	}
	return nil
}

// Outcome is one trade's result as consumed by the aggregator
type Outcome struct {
	Symbol    string
	EntryTime time.Time
	Return    float64
}

// IsFinite reports whether f is neither NaN nor infinite
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isPositive(f float64) bool {
	return IsFinite(f) && f > 0
}
