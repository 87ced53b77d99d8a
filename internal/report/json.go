package report

import (
	"encoding/json"
	"time"

	"github.com/newthinker/tradecost/internal/aggregate"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/performance"
)

// jsonReport is the wire form of a Report. Values are unscaled and unrounded.
type jsonReport struct {
	RunID       string                 `json:"run_id,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
	Metric      string                 `json:"metric"`
	Heatmap     aggregate.Matrix       `json:"heatmap"`
	Ranking     []rankEntry            `json:"ranking"`
	Stats       performance.Stats      `json:"stats"`
	Daily       []performance.DayStats `json:"daily"`
}

type rankEntry struct {
	Rank   int     `json:"rank"`
	Symbol string  `json:"symbol"`
	Total  float64 `json:"total"`
}

// RenderJSON renders the report as indented JSON. Missing cells are null.
func RenderJSON(r *Report) ([]byte, error) {
	out := jsonReport{
		RunID:       r.RunID,
		GeneratedAt: r.GeneratedAt,
		Metric:      r.Metric,
		Heatmap:     r.Matrix,
		Ranking:     make([]rankEntry, len(r.Matrix.Symbols)),
		Stats:       r.Stats,
		Daily:       r.Daily,
	}
	for i, sym := range r.Matrix.Symbols {
		out.Ranking[i] = rankEntry{Rank: i + 1, Symbol: sym, Total: r.Totals[sym]}
	}
	if out.Daily == nil {
		out.Daily = []performance.DayStats{}
	}
	if out.Heatmap.Symbols == nil {
		out.Heatmap.Symbols = []string{}
	}
	if out.Heatmap.Dates == nil {
		out.Heatmap.Dates = []core.Date{}
	}
	if out.Heatmap.Cells == nil {
		out.Heatmap.Cells = [][]aggregate.Cell{}
	}

	return json.MarshalIndent(out, "", "  ")
}
