package api

import (
	"errors"
	"net/http"

	"github.com/newthinker/tradecost/internal/api/response"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/metrics"
	"github.com/newthinker/tradecost/internal/storage"
)

// ImportRequest is the request body for storing trades.
type ImportRequest struct {
	Trades []TradeDTO `json:"trades"`
}

// TradesHandler exposes the trade store.
type TradesHandler struct {
	store   storage.TradeStore
	metrics *metrics.Registry
}

// NewTradesHandler creates a new trades handler. reg may be nil.
func NewTradesHandler(store storage.TradeStore, reg *metrics.Registry) *TradesHandler {
	return &TradesHandler{store: store, metrics: reg}
}

// List handles GET /api/v1/trades?from=&to=, returning trades entered in [from, to).
func (h *TradesHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from, err := parseTime(q.Get("from"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	to, err := parseTime(q.Get("to"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	trades, err := h.store.Range(r.Context(), from, to)
	if err != nil {
		response.FromError(w, err)
		return
	}

	out := make([]TradeDTO, len(trades))
	for i, t := range trades {
		out[i] = NewTradeDTO(t)
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"trades": out,
		"total":  len(out),
	})
}

// Import handles POST /api/v1/trades. Trades already stored are skipped.
func (h *TradesHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := decode(w, r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	trades, err := toTrades(req.Trades)
	if err != nil {
		h.recordInvalid()
		response.FromError(w, err)
		return
	}

	inserted, err := h.store.Insert(r.Context(), trades)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			h.recordInvalid()
		}
		response.FromError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordImport(inserted)
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"received": len(trades),
		"inserted": inserted,
	})
}

// Symbols handles GET /api/v1/symbols.
func (h *TradesHandler) Symbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.store.Symbols(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	if symbols == nil {
		symbols = []string{}
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"symbols": symbols,
		"total":   len(symbols),
	})
}

func (h *TradesHandler) recordInvalid() {
	if h.metrics != nil {
		h.metrics.RecordInvalidRecord("api")
	}
}
