// Package report renders an aggregated heatmap and its statistics as CSV, Markdown or JSON.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tradecost/internal/aggregate"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/performance"
)

// Format is an output format
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
)

// Ext returns the file extension used when archiving the format
func (f Format) Ext() string {
	return "." + string(f)
}

// ParseFormats parses format names, dropping duplicates and keeping order
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool)
	var formats []Format
	for _, n := range names {
		var f Format
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "csv":
			f = FormatCSV
		case "md", "markdown":
			f = FormatMarkdown
		case "json":
			f = FormatJSON
		default:
			return nil, core.Errorf(core.ErrInvalidArgument, "unknown report format %q", n)
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	return formats, nil
}

// Options controls how values are displayed
type Options struct {
	Scale     float64 // multiplier applied before display, 100 shows fractions as percent
	Precision int     // decimal places, negative for the shortest exact form
}

// DefaultOptions shows values unscaled with two decimals
func DefaultOptions() Options {
	return Options{Scale: 1, Precision: 2}
}

// Format scales and rounds v for display
func (o Options) Format(v float64) string {
	scale := o.Scale
	if scale == 0 {
		scale = 1
	}
	return strconv.FormatFloat(v*scale, 'f', o.Precision, 64)
}

// Report bundles everything produced by one aggregation run
type Report struct {
	RunID       string
	GeneratedAt time.Time
	Metric      string
	Matrix      aggregate.Matrix
	Totals      map[string]float64
	Stats       performance.Stats
	Daily       []performance.DayStats
	Options     Options
}

// New assembles a report from an aggregation summary and statistics
func New(runID, metric string, summary *aggregate.Summary, stats performance.Stats, daily []performance.DayStats, opts Options) *Report {
	return &Report{
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Metric:      metric,
		Matrix:      summary.Matrix,
		Totals:      summary.Totals,
		Stats:       stats,
		Daily:       daily,
		Options:     opts,
	}
}

// Render renders r in format f
func Render(r *Report, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return []byte(RenderCSV(r.Matrix, r.Options)), nil
	case FormatMarkdown:
		return []byte(RenderMarkdown(r)), nil
	case FormatJSON:
		return RenderJSON(r)
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

// rowTotal sums the valid cells of one matrix row
func rowTotal(row []aggregate.Cell) float64 {
	values := make([]float64, 0, len(row))
	for _, c := range row {
		if c.Valid {
			values = append(values, c.Value)
		}
	}
	return aggregate.Sum(values)
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
