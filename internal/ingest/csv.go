// Package ingest reads round-trip trade records from delimited text files.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/newthinker/tradecost/internal/core"
)

// timeLayouts are tried in order for entry_time and exit_time
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// Options controls how records are interpreted
type Options struct {
	// Location is used for timestamps without an explicit offset. Defaults to UTC.
	Location *time.Location
}

// record mirrors one CSV row. Everything is read as text so parse
// failures can be reported against the offending line.
type record struct {
	Symbol     string `csv:"symbol"`
	StockName  string `csv:"stock_name"`
	Side       string `csv:"side"`
	EntryTime  string `csv:"entry_time"`
	ExitTime   string `csv:"exit_time"`
	EntryPrice string `csv:"entry_price"`
	ExitPrice  string `csv:"exit_price"`
	Quantity   string `csv:"quantity"`
	Return     string `csv:"return"`
}

// ReadFile reads trades from a CSV file
func ReadFile(path string, opts Options) ([]core.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening trade file: %w", err)
	}
	defer f.Close()

	return ReadTrades(f, opts)
}

// ReadTrades parses CSV with a header row. The symbol column may be named
// symbol or stock_name; return is optional and, when present, overrides the
// cost engine for that trade. The first bad row fails the whole read.
func ReadTrades(r io.Reader, opts Options) ([]core.Trade, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	var rows []*record
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, core.WrapError(core.ErrInvalidInput, fmt.Errorf("reading csv: %w", err))
	}

	trades := make([]core.Trade, 0, len(rows))
	for i, row := range rows {
		line := i + 2 // header is line 1
		t, err := row.toTrade(loc)
		if err != nil {
			return nil, lineError(line, err)
		}
		if err := t.Validate(); err != nil {
			return nil, lineError(line, err)
		}
		trades = append(trades, t)
	}

	return trades, nil
}

func (r *record) toTrade(loc *time.Location) (core.Trade, error) {
	symbol := strings.TrimSpace(r.Symbol)
	if symbol == "" {
		symbol = strings.TrimSpace(r.StockName)
	}

	side, err := core.ParseSide(r.Side)
	if err != nil {
		return core.Trade{}, fmt.Errorf("side %q", r.Side)
	}

	entry, err := parseTime(r.EntryTime, loc)
	if err != nil {
		return core.Trade{}, fmt.Errorf("entry_time: %w", err)
	}
	exit, err := parseTime(r.ExitTime, loc)
	if err != nil {
		return core.Trade{}, fmt.Errorf("exit_time: %w", err)
	}

	entryPrice, err := parseFloat(r.EntryPrice)
	if err != nil {
		return core.Trade{}, fmt.Errorf("entry_price: %w", err)
	}
	exitPrice, err := parseFloat(r.ExitPrice)
	if err != nil {
		return core.Trade{}, fmt.Errorf("exit_price: %w", err)
	}
	qty, err := parseQuantity(r.Quantity)
	if err != nil {
		return core.Trade{}, fmt.Errorf("quantity: %w", err)
	}

	t := core.Trade{
		Symbol:     symbol,
		Side:       side,
		EntryTime:  entry,
		ExitTime:   exit,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Quantity:   qty,
	}

	if strings.TrimSpace(r.Return) != "" {
		ret, err := parseFloat(r.Return)
		if err != nil {
			return core.Trade{}, fmt.Errorf("return: %w", err)
		}
		t.Return = &ret
	}

	return t, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if !core.IsFinite(v) {
		return 0, fmt.Errorf("not a finite number: %q", s)
	}
	return v, nil
}

// parseQuantity accepts integers and integral floats such as "100.0"
func parseQuantity(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if q, err := strconv.ParseInt(s, 10, 64); err == nil {
		return q, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
		return 0, fmt.Errorf("not a whole number: %q", s)
	}
	return int64(f), nil
}

// lineError reports err against a CSV line as INVALID_INPUT
func lineError(line int, err error) error {
	var ce *core.Error
	if errors.As(err, &ce) && ce.Cause != nil {
		err = ce.Cause
	}
	return core.WrapError(core.ErrInvalidInput, fmt.Errorf("line %d: %w", line, err))
}
