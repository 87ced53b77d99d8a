// Package aggregate groups trade outcomes by entry date and symbol and
// turns the groups into a ranked symbol x date matrix.
package aggregate

import (
	"sort"
	"strings"

	"github.com/newthinker/tradecost/internal/core"
)

// Key identifies one aggregate cell
type Key struct {
	Date   core.Date
	Symbol string
}

// Cells maps each (date, symbol) present in the input to its summed return
type Cells map[Key]float64

// Summary is the full aggregation of one run
type Summary struct {
	Cells   Cells
	Totals  map[string]float64
	Ranking []string
	Dates   []core.Date
	Matrix  Matrix
}

// GroupByDateSymbol sums outcome returns per (entry date, symbol).
// Any malformed outcome fails the whole call; nothing is skipped.
func GroupByDateSymbol(outcomes []core.Outcome) (Cells, error) {
	buckets, err := collect(outcomes, 0)
	if err != nil {
		return nil, err
	}
	return reduce(buckets), nil
}

// TotalsBySymbol sums every cell of each symbol across all dates
func TotalsBySymbol(cells Cells) map[string]float64 {
	bySymbol := make(map[string][]float64)
	for k, v := range cells {
		bySymbol[k.Symbol] = append(bySymbol[k.Symbol], v)
	}

	totals := make(map[string]float64, len(bySymbol))
	for sym, values := range bySymbol {
		totals[sym] = Sum(values)
	}
	return totals
}

// RankSymbols orders symbols by total return, best first.
// Equal totals are ordered by symbol ascending.
func RankSymbols(totals map[string]float64) []string {
	ranked := make([]string, 0, len(totals))
	for sym := range totals {
		ranked = append(ranked, sym)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := totals[ranked[i]], totals[ranked[j]]
		if a != b {
			return a > b
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

// Dates returns every date present in cells, ascending
func Dates(cells Cells) []core.Date {
	seen := make(map[core.Date]struct{})
	for k := range cells {
		seen[k.Date] = struct{}{}
	}

	dates := make([]core.Date, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Build runs grouping, totals, ranking and matrix construction in one pass
func Build(outcomes []core.Outcome) (*Summary, error) {
	cells, err := GroupByDateSymbol(outcomes)
	if err != nil {
		return nil, err
	}
	return summarize(cells), nil
}

func summarize(cells Cells) *Summary {
	totals := TotalsBySymbol(cells)
	ranking := RankSymbols(totals)
	dates := Dates(cells)

	return &Summary{
		Cells:   cells,
		Totals:  totals,
		Ranking: ranking,
		Dates:   dates,
		Matrix:  ToDenseMatrix(cells, ranking, dates),
	}
}

// collect validates outcomes and gathers the raw values of each key.
// offset is added to indexes in error messages so partitions report global positions.
func collect(outcomes []core.Outcome, offset int) (map[Key][]float64, error) {
	buckets := make(map[Key][]float64)
	for i, o := range outcomes {
		if err := validate(offset+i, o); err != nil {
			return nil, err
		}
		k := Key{Date: core.DateOf(o.EntryTime), Symbol: o.Symbol}
		buckets[k] = append(buckets[k], o.Return)
	}
	return buckets, nil
}

func reduce(buckets map[Key][]float64) Cells {
	cells := make(Cells, len(buckets))
	for k, values := range buckets {
		cells[k] = Sum(values)
	}
	return cells
}

func validate(idx int, o core.Outcome) error {
	switch {
	case strings.TrimSpace(o.Symbol) == "":
		return core.Errorf(core.ErrInvalidInput, "record %d: missing symbol", idx)
	case o.EntryTime.IsZero():
		return core.Errorf(core.ErrInvalidInput, "record %d (%s): missing entry time", idx, o.Symbol)
	case !core.IsFinite(o.Return):
		return core.Errorf(core.ErrInvalidInput, "record %d (%s): non-numeric return %v", idx, o.Symbol, o.Return)
	}
	return nil
}
