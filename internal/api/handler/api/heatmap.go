package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/tradecost/internal/alert"
	"github.com/newthinker/tradecost/internal/api/job"
	"github.com/newthinker/tradecost/internal/api/response"
	"github.com/newthinker/tradecost/internal/config"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/cost"
	"github.com/newthinker/tradecost/internal/metrics"
	"github.com/newthinker/tradecost/internal/notifier"
	"github.com/newthinker/tradecost/internal/pipeline"
	"github.com/newthinker/tradecost/internal/report"
	"github.com/newthinker/tradecost/internal/storage/archive"
)

const heatmapTimeout = 5 * time.Minute

// HeatmapRequest is the request body for a heatmap run.
type HeatmapRequest struct {
	Trades []TradeDTO `json:"trades"`
	Metric string     `json:"metric,omitempty"`
	Async  bool       `json:"async,omitempty"`
}

// HeatmapResult is what a finished run returns.
type HeatmapResult struct {
	RunID     string          `json:"run_id"`
	Artifacts []string        `json:"artifacts"`
	Report    json.RawMessage `json:"report"`
	Alerts    []string        `json:"alerts,omitempty"`
}

// HeatmapHandler runs the cost and aggregation pipeline over posted trades.
type HeatmapHandler struct {
	engine  *cost.Engine
	cfg     pipeline.Config
	archive archive.Storage
	metrics *metrics.Registry
	notify  *notifier.Registry
	alerts  *alert.Evaluator
	jobs    *job.Store
	logger  *zap.Logger
}

// NewHeatmapHandler creates a new heatmap handler. store and reg may be nil.
func NewHeatmapHandler(
	engine *cost.Engine,
	cfg pipeline.Config,
	store archive.Storage,
	reg *metrics.Registry,
	jobs *job.Store,
	logger *zap.Logger,
) *HeatmapHandler {
	return &HeatmapHandler{
		engine:  engine,
		cfg:     cfg,
		archive: store,
		metrics: reg,
		jobs:    jobs,
		logger:  logger,
	}
}

// WithNotifier announces finished runs to reg
func (h *HeatmapHandler) WithNotifier(reg *notifier.Registry) *HeatmapHandler {
	h.notify = reg
	return h
}

// WithAlerts checks ev's rules after each run
func (h *HeatmapHandler) WithAlerts(ev *alert.Evaluator) *HeatmapHandler {
	h.alerts = ev
	return h
}

// Create handles POST /api/v1/heatmap. With async set the run is queued and
// 202 is returned with a job ID to poll.
func (h *HeatmapHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req HeatmapRequest
	if err := decode(w, r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	cfg := h.cfg
	switch req.Metric {
	case "":
	case config.MetricPnL, config.MetricReturn:
		cfg.Metric = req.Metric
	default:
		response.FromError(w, core.Errorf(core.ErrInvalidArgument, "metric must be %q or %q, got %q",
			config.MetricPnL, config.MetricReturn, req.Metric))
		return
	}

	trades, err := toTrades(req.Trades)
	if err != nil {
		response.FromError(w, err)
		return
	}

	p := pipeline.New(cfg, h.engine, pipeline.StaticSource(trades), h.archive, h.metrics, h.logger).
		WithNotifier(h.notify).
		WithAlerts(h.alerts)

	if !req.Async {
		res, err := run(r.Context(), p)
		if err != nil {
			response.FromError(w, err)
			return
		}
		response.JSON(w, http.StatusOK, res)
		return
	}

	j := h.jobs.Create("heatmap")
	go h.runJob(j.ID, p)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

func (h *HeatmapHandler) runJob(id string, p *pipeline.Pipeline) {
	h.track(id, "start", h.jobs.Start(id))

	ctx, cancel := context.WithTimeout(context.Background(), heatmapTimeout)
	defer cancel()

	res, err := run(ctx, p)
	if err != nil {
		h.track(id, "fail", h.jobs.Fail(id, err))
		return
	}
	h.track(id, "complete", h.jobs.Complete(id, res))
}

// track logs a job update that did not land, typically because the job was
// evicted from the store while it ran.
func (h *HeatmapHandler) track(id, op string, err error) {
	if err == nil {
		return
	}
	h.logger.Debug("job update failed",
		zap.String("job_id", id),
		zap.String("op", op),
		zap.Error(err),
	)
}

// GetJob handles GET /api/v1/jobs/{id}.
func (h *HeatmapHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

// ListJobs handles GET /api/v1/jobs.
func (h *HeatmapHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.List()
	response.JSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

func run(ctx context.Context, p *pipeline.Pipeline) (*HeatmapResult, error) {
	res, err := p.Run(ctx)
	if err != nil {
		return nil, err
	}

	data, ok := res.Rendered[report.FormatJSON]
	if !ok {
		if data, err = report.Render(res.Report, report.FormatJSON); err != nil {
			return nil, err
		}
	}

	artifacts := res.Artifacts
	if artifacts == nil {
		artifacts = []string{}
	}

	return &HeatmapResult{
		RunID:     res.RunID,
		Artifacts: artifacts,
		Report:    json.RawMessage(data),
		Alerts:    res.Alerts,
	}, nil
}
