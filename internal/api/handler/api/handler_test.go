package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/newthinker/tradecost/internal/alert"
	"github.com/newthinker/tradecost/internal/api/job"
	"github.com/newthinker/tradecost/internal/api/response"
	"github.com/newthinker/tradecost/internal/config"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/cost"
	"github.com/newthinker/tradecost/internal/pipeline"
	"github.com/newthinker/tradecost/internal/report"
	"github.com/newthinker/tradecost/internal/storage"
	"github.com/newthinker/tradecost/internal/storage/archive"
)

func mustEngine(t *testing.T, rate float64) *cost.Engine {
	t.Helper()
	e, err := cost.New(rate)
	require.NoError(t, err)
	return e
}

func post(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

// data decodes the success envelope's data field into v
func data(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func sampleDTOs() []TradeDTO {
	day1 := time.Date(2025, 1, 6, 9, 20, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	return []TradeDTO{
		{Symbol: "7203.T", Side: "long", EntryTime: day1, ExitTime: day1.Add(time.Hour), EntryPrice: 1000, ExitPrice: 1200, Quantity: 100},
		{Symbol: "9984.T", Side: "short", EntryTime: day1, ExitTime: day1.Add(time.Hour), EntryPrice: 2000, ExitPrice: 2100, Quantity: 50},
		{Symbol: "7203.T", EntryTime: day2, ExitTime: day2.Add(time.Hour), EntryPrice: 1000, ExitPrice: 990, Quantity: 100},
	}
}

func TestCostHandler_Evaluate(t *testing.T) {
	h := NewCostHandler(mustEngine(t, 0.001))

	w := post(t, h.Evaluate, "/api/v1/cost", CostRequest{EntryPrice: 1000, ExitPrice: 1200, Quantity: 100, Side: "long"})
	require.Equal(t, http.StatusOK, w.Code)

	var got CostResponse
	data(t, w, &got)
	assert.Equal(t, 20000.0, got.Gross)
	assert.InDelta(t, 220.0, got.Commission, 1e-9)
	assert.InDelta(t, 19780.0, got.Net, 1e-9)
	assert.InDelta(t, 0.1978, got.ReturnPct, 1e-12)
	assert.Equal(t, core.SideLong, got.Side)
	assert.Equal(t, 0.001, got.CommissionRate)
}

func TestCostHandler_RateOverride(t *testing.T) {
	h := NewCostHandler(mustEngine(t, 0.001))

	w := post(t, h.Evaluate, "/api/v1/cost", map[string]any{
		"entry_price": 2000, "exit_price": 2100, "quantity": 50, "side": "short", "commission_rate": 0,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var got CostResponse
	data(t, w, &got)
	assert.Equal(t, -5000.0, got.Net)
	assert.Equal(t, 0.0, got.Commission)
}

func TestCostHandler_Errors(t *testing.T) {
	h := NewCostHandler(mustEngine(t, 0.001))

	tests := []struct {
		name string
		body any
		code string
	}{
		{"bad side", map[string]any{"entry_price": 1, "exit_price": 2, "quantity": 1, "side": "sideways"}, "INVALID_ARGUMENT"},
		{"bad rate", map[string]any{"entry_price": 1, "exit_price": 2, "quantity": 1, "commission_rate": 1.5}, "INVALID_CONFIGURATION"},
		{"unknown field", map[string]any{"entry": 1}, "INVALID_ARGUMENT"},
		{"missing prices", map[string]any{"quantity": 1}, "INVALID_INPUT"},
		{"zero entry price", map[string]any{"entry_price": 0, "exit_price": 2, "quantity": 1}, "INVALID_INPUT"},
		{"negative exit price", map[string]any{"entry_price": 1, "exit_price": -2, "quantity": 1}, "INVALID_INPUT"},
		{"zero quantity", map[string]any{"entry_price": 1, "exit_price": 2, "quantity": 0}, "INVALID_INPUT"},
		{"negative quantity", map[string]any{"entry_price": 1, "exit_price": 2, "quantity": -5}, "INVALID_INPUT"},
		{"invalid before bad rate", map[string]any{"entry_price": 1, "exit_price": 2, "quantity": 0, "commission_rate": 1.5}, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h.Evaluate, "/api/v1/cost", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func newHeatmapHandler(t *testing.T, store archive.Storage) *HeatmapHandler {
	t.Helper()
	cfg := pipeline.Config{
		Metric:  config.MetricReturn,
		Workers: 1,
		Formats: []report.Format{report.FormatCSV, report.FormatJSON},
		Options: report.DefaultOptions(),
	}
	return NewHeatmapHandler(mustEngine(t, 0.001), cfg, store, nil, job.NewStore(10, time.Hour), zap.NewNop())
}

type heatmapReport struct {
	Metric  string `json:"metric"`
	Heatmap struct {
		Symbols []string    `json:"symbols"`
		Dates   []string    `json:"dates"`
		Cells   [][]*float64 `json:"cells"`
	} `json:"heatmap"`
	Ranking []struct {
		Rank   int     `json:"rank"`
		Symbol string  `json:"symbol"`
		Total  float64 `json:"total"`
	} `json:"ranking"`
}

func TestHeatmapHandler_Sync(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	h := newHeatmapHandler(t, store)

	w := post(t, h.Create, "/api/v1/heatmap", HeatmapRequest{Trades: sampleDTOs(), Metric: config.MetricPnL})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res HeatmapResult
	data(t, w, &res)
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Artifacts, 2)

	var rep heatmapReport
	require.NoError(t, json.Unmarshal(res.Report, &rep))
	assert.Equal(t, config.MetricPnL, rep.Metric)
	assert.Equal(t, []string{"7203.T", "9984.T"}, rep.Heatmap.Symbols)
	assert.Equal(t, []string{"2025-01-06", "2025-01-07"}, rep.Heatmap.Dates)
	require.NotNil(t, rep.Heatmap.Cells[0][0])
	assert.InDelta(t, 19780.0, *rep.Heatmap.Cells[0][0], 1e-9)
	assert.Nil(t, rep.Heatmap.Cells[1][1], "9984.T did not trade on the second day")
	assert.Equal(t, 1, rep.Ranking[0].Rank)

	ok, err := store.Exists(context.Background(), res.Artifacts[1])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHeatmapHandler_NoArchive(t *testing.T) {
	h := newHeatmapHandler(t, nil)

	w := post(t, h.Create, "/api/v1/heatmap", HeatmapRequest{Trades: sampleDTOs()})
	require.Equal(t, http.StatusOK, w.Code)

	var res HeatmapResult
	data(t, w, &res)
	assert.Empty(t, res.Artifacts)
	assert.NotEmpty(t, res.Report)
}

func TestHeatmapHandler_Alerts(t *testing.T) {
	ev, err := alert.NewEvaluator([]alert.Rule{{Name: "many_symbols", Expr: "symbols >= 2"}}, 0)
	require.NoError(t, err)
	h := newHeatmapHandler(t, nil).WithAlerts(ev)

	w := post(t, h.Create, "/api/v1/heatmap", HeatmapRequest{Trades: sampleDTOs()})
	require.Equal(t, http.StatusOK, w.Code)

	var res HeatmapResult
	data(t, w, &res)
	assert.Equal(t, []string{"[WARNING] many_symbols (symbols=2)"}, res.Alerts)
}

func TestHeatmapHandler_Errors(t *testing.T) {
	h := newHeatmapHandler(t, nil)

	bad := sampleDTOs()
	bad[1].Quantity = 0

	tests := []struct {
		name string
		req  HeatmapRequest
		code string
	}{
		{"bad metric", HeatmapRequest{Trades: sampleDTOs(), Metric: "sharpe"}, "INVALID_ARGUMENT"},
		{"invalid trade", HeatmapRequest{Trades: bad}, "INVALID_INPUT"},
		{"bad side", HeatmapRequest{Trades: []TradeDTO{{Symbol: "A", Side: "up"}}}, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h.Create, "/api/v1/heatmap", tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestHeatmapHandler_Async(t *testing.T) {
	h := newHeatmapHandler(t, nil)

	w := post(t, h.Create, "/api/v1/heatmap", HeatmapRequest{Trades: sampleDTOs(), Async: true})
	require.Equal(t, http.StatusAccepted, w.Code)

	var accepted struct {
		JobID  string     `json:"job_id"`
		Status job.Status `json:"status"`
	}
	data(t, w, &accepted)
	require.NotEmpty(t, accepted.JobID)
	assert.Equal(t, job.StatusPending, accepted.Status)

	require.Eventually(t, func() bool {
		j, err := h.jobs.Get(accepted.JobID)
		return err == nil && j.Status == job.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /api/v1/jobs", h.ListJobs)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+accepted.JobID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var j struct {
		Status job.Status    `json:"status"`
		Result HeatmapResult `json:"result"`
	}
	data(t, rec, &j)
	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.NotEmpty(t, j.Result.RunID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTradesHandler(t *testing.T) {
	store := storage.NewMemoryStore()
	h := NewTradesHandler(store, nil)

	w := post(t, h.Import, "/api/v1/trades", ImportRequest{Trades: sampleDTOs()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var imported struct {
		Received int `json:"received"`
		Inserted int `json:"inserted"`
	}
	data(t, w, &imported)
	assert.Equal(t, 3, imported.Received)
	assert.Equal(t, 3, imported.Inserted)

	w = post(t, h.Import, "/api/v1/trades", ImportRequest{Trades: sampleDTOs()})
	data(t, w, &imported)
	assert.Equal(t, 0, imported.Inserted, "duplicates are skipped")

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trades?from=2025-01-07", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Trades []TradeDTO `json:"trades"`
		Total  int        `json:"total"`
	}
	data(t, rec, &listed)
	assert.Equal(t, 1, listed.Total)
	assert.Equal(t, "7203.T", listed.Trades[0].Symbol)
	assert.Equal(t, "long", listed.Trades[0].Side)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trades?to=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.Symbols(rec, httptest.NewRequest(http.MethodGet, "/api/v1/symbols", nil))
	var symbols struct {
		Symbols []string `json:"symbols"`
	}
	data(t, rec, &symbols)
	assert.Equal(t, []string{"7203.T", "9984.T"}, symbols.Symbols)
}

func TestTradesHandler_InvalidImport(t *testing.T) {
	store := storage.NewMemoryStore()
	h := NewTradesHandler(store, nil)

	bad := sampleDTOs()
	bad[2].ExitPrice = -1

	w := post(t, h.Import, "/api/v1/trades", ImportRequest{Trades: bad})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, w))

	all, err := store.Range(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, all, "a rejected batch stores nothing")
}

func TestReportsHandler(t *testing.T) {
	store, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	at := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Write(ctx, archive.ReportKey(at, "run-1", "heatmap.csv"), []byte("symbol,2025-01-06,total\n")))
	require.NoError(t, store.Write(ctx, archive.ReportKey(at, "run-1", "heatmap.json"), []byte(`{}`)))

	h := NewReportsHandler(store)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/reports", h.List)
	mux.HandleFunc("GET /api/v1/reports/{key...}", h.Get)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports?prefix=20250106", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Keys []string `json:"keys"`
	}
	data(t, rec, &listed)
	assert.Equal(t, []string{
		"reports/20250106/run-1/heatmap.csv",
		"reports/20250106/run-1/heatmap.json",
	}, listed.Keys)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/20250106/run-1/heatmap.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "symbol,2025-01-06,total\n", rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/reports/20250106/run-2/heatmap.csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }

func (failingSource) Load(context.Context) ([]core.Trade, error) {
	return nil, core.Errorf(core.ErrStorageFailed, "source unavailable")
}

func TestHeatmapHandler_RunJobLogsLostUpdates(t *testing.T) {
	trades, err := toTrades(sampleDTOs())
	require.NoError(t, err)

	tests := []struct {
		name    string
		source  pipeline.Source
		wantOps []string
	}{
		{"completed", pipeline.StaticSource(trades), []string{"start", "complete"}},
		{"failed", failingSource{}, []string{"start", "fail"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			zc, logs := observer.New(zapcore.DebugLevel)
			h := newHeatmapHandler(t, nil)
			h.logger = zap.New(zc)

			p := pipeline.New(h.cfg, h.engine, tt.source, nil, nil, zap.NewNop())

			// never created, so every store update misses
			h.runJob("evicted", p)

			entries := logs.FilterMessage("job update failed").All()
			require.Len(t, entries, len(tt.wantOps))
			for i, e := range entries {
				assert.Equal(t, zapcore.DebugLevel, e.Level)
				fields := e.ContextMap()
				assert.Equal(t, "evicted", fields["job_id"])
				assert.Equal(t, tt.wantOps[i], fields["op"])
			}
		})
	}
}
