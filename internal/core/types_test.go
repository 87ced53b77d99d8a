package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func validTrade() Trade {
	entry := time.Date(2025, 1, 6, 9, 20, 0, 0, time.UTC)
	return Trade{
		Symbol:     "7203.T",
		Side:       SideLong,
		EntryTime:  entry,
		ExitTime:   entry.Add(70 * time.Minute),
		EntryPrice: 1000,
		ExitPrice:  1020,
		Quantity:   1000,
	}
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"long", SideLong, false},
		{"LONG", SideLong, false},
		{"", SideLong, false},
		{" short ", SideShort, false},
		{"sell", "", true},
		{"sideways", "", true},
	}

	for _, tt := range tests {
		got, err := ParseSide(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSide(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ParseSide(%q) error = %v, want INVALID_ARGUMENT", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseSide(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2024-01-02")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.String() != "2024-01-02" {
		t.Errorf("String() = %s", d)
	}

	next := Date{Year: 2024, Month: time.January, Day: 3}
	if !d.Before(next) || next.Before(d) {
		t.Error("Before ordering wrong")
	}
	if d.Compare(d) != 0 {
		t.Error("date should compare equal to itself")
	}
	if (Date{Year: 2023, Month: time.December, Day: 31}).Compare(d) != -1 {
		t.Error("earlier year should sort first")
	}

	var round Date
	b, _ := d.MarshalText()
	if err := round.UnmarshalText(b); err != nil || round != d {
		t.Errorf("text round trip = %v, %v", round, err)
	}
}

func TestTrade_DateUsesEntryTime(t *testing.T) {
	tr := validTrade()
	tr.EntryTime = time.Date(2025, 1, 6, 23, 50, 0, 0, time.UTC)
	tr.ExitTime = time.Date(2025, 1, 7, 0, 30, 0, 0, time.UTC)

	if got := tr.Date().String(); got != "2025-01-06" {
		t.Errorf("Date() = %s, want entry date 2025-01-06", got)
	}
	if tr.HoldDuration() != 40*time.Minute {
		t.Errorf("HoldDuration() = %v", tr.HoldDuration())
	}
}

func TestTrade_Notional(t *testing.T) {
	if got := validTrade().Notional(); got != 1_000_000 {
		t.Errorf("Notional() = %v, want 1000000", got)
	}
}

func TestTrade_Validate(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name   string
		mutate func(*Trade)
	}{
		{"missing symbol", func(tr *Trade) { tr.Symbol = " " }},
		{"bad side", func(tr *Trade) { tr.Side = "flat" }},
		{"zero entry", func(tr *Trade) { tr.EntryTime = time.Time{} }},
		{"zero exit", func(tr *Trade) { tr.ExitTime = time.Time{} }},
		{"exit before entry", func(tr *Trade) { tr.ExitTime = tr.EntryTime.Add(-time.Minute) }},
		{"zero entry price", func(tr *Trade) { tr.EntryPrice = 0 }},
		{"negative exit price", func(tr *Trade) { tr.ExitPrice = -1 }},
		{"zero quantity", func(tr *Trade) { tr.Quantity = 0 }},
		{"nan return", func(tr *Trade) { tr.Return = &nan }},
	}

	if err := validTrade().Validate(); err != nil {
		t.Fatalf("valid trade rejected: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTrade()
			tt.mutate(&tr)
			err := tr.Validate()
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(1.5) || IsFinite(math.NaN()) || IsFinite(math.Inf(-1)) {
		t.Error("IsFinite misclassified a value")
	}
}
