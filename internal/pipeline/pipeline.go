// Package pipeline runs the cost, aggregation and reporting stages end to end.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/tradecost/internal/aggregate"
	"github.com/newthinker/tradecost/internal/alert"
	"github.com/newthinker/tradecost/internal/config"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/cost"
	"github.com/newthinker/tradecost/internal/metrics"
	"github.com/newthinker/tradecost/internal/notifier"
	"github.com/newthinker/tradecost/internal/performance"
	"github.com/newthinker/tradecost/internal/report"
	"github.com/newthinker/tradecost/internal/storage/archive"
)

// Config controls one pipeline
type Config struct {
	Metric         string // config.MetricPnL or config.MetricReturn
	Workers        int    // aggregation goroutines, 0 for GOMAXPROCS
	InitialCapital float64
	Formats        []report.Format
	Options        report.Options
	Location       *time.Location // zone for entry dates; nil keeps each timestamp's own zone
}

// ConfigFrom derives a pipeline Config from application configuration
func ConfigFrom(cfg *config.Config) (Config, error) {
	formats, err := report.ParseFormats(cfg.Report.Formats)
	if err != nil {
		return Config{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Metric:         cfg.Report.Metric,
		Workers:        cfg.Report.Workers,
		InitialCapital: cfg.Report.InitialCapital,
		Formats:        formats,
		Options:        report.Options{Scale: cfg.Report.Scale, Precision: cfg.Report.Precision},
		Location:       loc,
	}, nil
}

// Result is the outcome of one run
type Result struct {
	RunID     string
	Trades    []Costed
	Summary   *aggregate.Summary
	Report    *report.Report
	Rendered  map[report.Format][]byte
	Artifacts []string // archive keys, in format order
	Alerts    []string // messages of alert rules that fired
}

// Pipeline loads trades, costs them, aggregates and renders reports
type Pipeline struct {
	cfg     Config
	engine  *cost.Engine
	source  Source
	archive archive.Storage
	metrics *metrics.Registry
	notify  *notifier.Registry
	alerts  *alert.Evaluator
	logger  *zap.Logger
}

// New creates a Pipeline. archive and reg may be nil to skip archiving and metrics.
func New(cfg Config, engine *cost.Engine, source Source, store archive.Storage, reg *metrics.Registry, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Metric == "" {
		cfg.Metric = config.MetricReturn
	}
	return &Pipeline{
		cfg:     cfg,
		engine:  engine,
		source:  source,
		archive: store,
		metrics: reg,
		logger:  logger,
	}
}

// WithNotifier announces successful runs to reg
func (p *Pipeline) WithNotifier(reg *notifier.Registry) *Pipeline {
	p.notify = reg
	return p
}

// WithAlerts checks ev's rules after each successful run
func (p *Pipeline) WithAlerts(ev *alert.Evaluator) *Pipeline {
	p.alerts = ev
	return p
}

// Run executes every stage once. Any invalid trade fails the run before anything is written.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.logger.With(zap.String("run_id", runID), zap.String("source", p.source.Name()))

	res, err := p.run(ctx, runID, log)

	status := "success"
	if err != nil {
		status = "error"
		log.Error("pipeline failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	} else {
		log.Info("pipeline finished",
			zap.Int("trades", len(res.Trades)),
			zap.Int("symbols", len(res.Summary.Ranking)),
			zap.Int("dates", len(res.Summary.Dates)),
			zap.Strings("artifacts", res.Artifacts),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
	if p.metrics != nil {
		p.metrics.RecordPipelineRun(status, time.Since(start).Seconds())
	}
	if err == nil {
		p.announce(ctx, res, log)
	}
	return res, err
}

// announce checks alert rules and sends the run summary to every notifier.
// Delivery failures are logged and never fail the run.
func (p *Pipeline) announce(ctx context.Context, res *Result, log *zap.Logger) {
	summary := Summarize(p.source.Name(), res, 3)

	if p.alerts != nil && p.alerts.Len() > 0 {
		res.Alerts = p.alerts.Evaluate(alert.Values(summary))
		for _, msg := range res.Alerts {
			log.Warn("alert fired", zap.String("alert", msg))
			if p.metrics != nil {
				p.metrics.RecordAlert()
			}
		}
		summary.Alerts = res.Alerts
	}

	if p.notify == nil || p.notify.Len() == 0 {
		return
	}
	for name, err := range p.notify.NotifyAll(ctx, summary) {
		log.Warn("notification failed", zap.String("notifier", name), zap.Error(err))
	}
}

// Summarize condenses a run for notifiers, keeping the n best and n worst symbols
func Summarize(source string, res *Result, n int) notifier.Summary {
	ranking := res.Summary.Ranking
	s := notifier.Summary{
		RunID:       res.RunID,
		Source:      source,
		Metric:      res.Report.Metric,
		Trades:      len(res.Trades),
		Symbols:     len(ranking),
		Dates:       len(res.Summary.Dates),
		TotalPnL:    res.Report.Stats.TotalPnL,
		WinRate:     res.Report.Stats.WinRate,
		Top:         []notifier.Ranked{},
		Bottom:      []notifier.Ranked{},
		Artifacts:   res.Artifacts,
		GeneratedAt: res.Report.GeneratedAt,
	}
	for i := 0; i < min(n, len(ranking)); i++ {
		s.Top = append(s.Top, notifier.Ranked{Rank: i + 1, Symbol: ranking[i], Total: res.Summary.Totals[ranking[i]]})
	}
	for i := len(ranking) - 1; i >= max(len(ranking)-n, 0); i-- {
		s.Bottom = append(s.Bottom, notifier.Ranked{Rank: i + 1, Symbol: ranking[i], Total: res.Summary.Totals[ranking[i]]})
	}
	if s.Artifacts == nil {
		s.Artifacts = []string{}
	}
	return s
}

func (p *Pipeline) run(ctx context.Context, runID string, log *zap.Logger) (*Result, error) {
	trades, err := p.source.Load(ctx)
	if err != nil {
		p.recordInvalid(err)
		return nil, fmt.Errorf("loading trades: %w", err)
	}
	log.Debug("trades loaded", zap.Int("count", len(trades)))

	costed, outcomes, perf, err := Evaluate(p.engine, trades, p.cfg.Metric, p.cfg.Location)
	if err != nil {
		p.recordInvalid(err)
		return nil, err
	}
	if p.metrics != nil {
		for _, c := range costed {
			p.metrics.RecordTradeCosted(string(c.Trade.Side), c.Result.Commission)
		}
	}

	summary, err := aggregate.BuildParallel(ctx, outcomes, p.cfg.Workers)
	if err != nil {
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.SetHeatmapSize(len(summary.Ranking), len(summary.Dates))
	}

	stats := performance.Calculate(perf, p.cfg.InitialCapital)
	daily := performance.Daily(perf)
	rep := report.New(runID, p.cfg.Metric, summary, stats, daily, p.cfg.Options)

	result := &Result{
		RunID:    runID,
		Trades:   costed,
		Summary:  summary,
		Report:   rep,
		Rendered: make(map[report.Format][]byte, len(p.cfg.Formats)),
	}

	for _, f := range p.cfg.Formats {
		data, err := report.Render(rep, f)
		if err != nil {
			return nil, fmt.Errorf("rendering %s: %w", f, err)
		}
		result.Rendered[f] = data

		if p.archive == nil {
			continue
		}
		key := archive.ReportKey(rep.GeneratedAt, runID, "heatmap"+f.Ext())
		if err := p.archive.Write(ctx, key, data); err != nil {
			p.recordArchive(f, "error")
			return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("archiving %s: %w", key, err))
		}
		p.recordArchive(f, "success")
		log.Debug("artifact archived", zap.String("key", key), zap.Int("bytes", len(data)))
		result.Artifacts = append(result.Artifacts, key)
	}

	return result, nil
}

func (p *Pipeline) recordInvalid(err error) {
	if p.metrics != nil && errors.Is(err, core.ErrInvalidInput) {
		p.metrics.RecordInvalidRecord(p.source.Name())
	}
}

func (p *Pipeline) recordArchive(f report.Format, status string) {
	if p.metrics != nil {
		p.metrics.RecordArchiveWrite(string(f), status)
	}
}
