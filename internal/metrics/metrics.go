package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Cost and aggregation metrics
	tradesCosted     *prometheus.CounterVec
	commissionTotal  prometheus.Counter
	invalidRecords   *prometheus.CounterVec
	tradesImported   prometheus.Counter
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	heatmapSymbols   prometheus.Gauge
	heatmapDates     prometheus.Gauge
	archiveWrites    *prometheus.CounterVec
	alertsFired      prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.tradesCosted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecost_trades_costed_total",
			Help: "Total number of trades run through the cost engine",
		},
		[]string{"side"},
	)
	r.commissionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradecost_commission_total",
			Help: "Sum of roundtrip commissions charged",
		},
	)
	r.invalidRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecost_invalid_records_total",
			Help: "Total number of rejected trade records",
		},
		[]string{"source"},
	)
	r.tradesImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradecost_trades_imported_total",
			Help: "Total number of trades newly written to the trade store",
		},
	)
	r.pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecost_pipeline_runs_total",
			Help: "Total number of aggregation pipeline runs",
		},
		[]string{"status"},
	)
	r.pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tradecost_pipeline_duration_seconds",
			Help:    "Aggregation pipeline duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
	r.heatmapSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradecost_heatmap_symbols",
			Help: "Number of symbols in the most recent heatmap",
		},
	)
	r.heatmapDates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradecost_heatmap_dates",
			Help: "Number of dates in the most recent heatmap",
		},
	)
	r.archiveWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradecost_archive_writes_total",
			Help: "Total number of report artifacts written to the archive",
		},
		[]string{"format", "status"},
	)
	r.alertsFired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tradecost_alerts_fired_total",
			Help: "Total number of alert rules fired by heatmap runs",
		},
	)

	reg.MustRegister(r.tradesCosted)
	reg.MustRegister(r.commissionTotal)
	reg.MustRegister(r.invalidRecords)
	reg.MustRegister(r.tradesImported)
	reg.MustRegister(r.pipelineRuns)
	reg.MustRegister(r.pipelineDuration)
	reg.MustRegister(r.heatmapSymbols)
	reg.MustRegister(r.heatmapDates)
	reg.MustRegister(r.archiveWrites)
	reg.MustRegister(r.alertsFired)

	return r
}

// Handler returns an HTTP handler exposing this registry for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordTradeCosted records one costed trade and its commission.
func (r *Registry) RecordTradeCosted(side string, commission float64) {
	r.tradesCosted.WithLabelValues(side).Inc()
	if commission > 0 {
		r.commissionTotal.Add(commission)
	}
}

// RecordInvalidRecord records a rejected trade record from source (csv, store, api).
func (r *Registry) RecordInvalidRecord(source string) {
	r.invalidRecords.WithLabelValues(source).Inc()
}

// RecordImport records trades newly written to the trade store.
func (r *Registry) RecordImport(inserted int) {
	r.tradesImported.Add(float64(inserted))
}

// RecordPipelineRun records a pipeline completion.
func (r *Registry) RecordPipelineRun(status string, duration float64) {
	r.pipelineRuns.WithLabelValues(status).Inc()
	r.pipelineDuration.Observe(duration)
}

// SetHeatmapSize sets the dimensions of the latest heatmap.
func (r *Registry) SetHeatmapSize(symbols, dates int) {
	r.heatmapSymbols.Set(float64(symbols))
	r.heatmapDates.Set(float64(dates))
}

// RecordArchiveWrite records an archive write of one artifact.
func (r *Registry) RecordArchiveWrite(format, status string) {
	r.archiveWrites.WithLabelValues(format, status).Inc()
}

// RecordAlert records one fired alert rule.
func (r *Registry) RecordAlert() {
	r.alertsFired.Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
