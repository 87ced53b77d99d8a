// Package notifier announces finished heatmap runs to external endpoints.
package notifier

import (
	"context"
	"time"
)

// Config holds one notifier's settings
type Config struct {
	Type    string            `mapstructure:"type"` // "webhook"
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// Ranked is one symbol's position in a run's ranking
type Ranked struct {
	Rank   int     `json:"rank"`
	Symbol string  `json:"symbol"`
	Total  float64 `json:"total"`
}

// Summary describes a finished run
type Summary struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Metric      string    `json:"metric"`
	Trades      int       `json:"trades"`
	Symbols     int       `json:"symbols"`
	Dates       int       `json:"dates"`
	TotalPnL    float64   `json:"total_pnl"`
	WinRate     float64   `json:"win_rate"`
	Top         []Ranked  `json:"top"`
	Bottom      []Ranked  `json:"bottom"`
	Artifacts   []string  `json:"artifacts"`
	Alerts      []string  `json:"alerts,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Notifier delivers run summaries
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Notify delivers one summary
	Notify(ctx context.Context, s Summary) error
}
