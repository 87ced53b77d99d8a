package api

import (
	"net/http"

	"github.com/newthinker/tradecost/internal/api/response"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/newthinker/tradecost/internal/cost"
)

// CostRequest is the request body for a single cost breakdown.
type CostRequest struct {
	EntryPrice     float64  `json:"entry_price"`
	ExitPrice      float64  `json:"exit_price"`
	Quantity       int64    `json:"quantity"`
	Side           string   `json:"side,omitempty"`
	CommissionRate *float64 `json:"commission_rate,omitempty"`
}

// CostResponse is the cost breakdown plus the rate that produced it.
type CostResponse struct {
	cost.Result
	Side           core.Side `json:"side"`
	CommissionRate float64   `json:"commission_rate"`
}

// CostHandler prices a single round trip.
type CostHandler struct {
	engine *cost.Engine
}

// NewCostHandler creates a new cost handler.
func NewCostHandler(engine *cost.Engine) *CostHandler {
	return &CostHandler{engine: engine}
}

// Evaluate handles POST /api/v1/cost.
func (h *CostHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req CostRequest
	if err := decode(w, r, &req); err != nil {
		response.FromError(w, err)
		return
	}

	if err := req.validate(); err != nil {
		response.FromError(w, err)
		return
	}

	side, err := core.ParseSide(req.Side)
	if err != nil {
		response.FromError(w, err)
		return
	}

	engine := h.engine
	if req.CommissionRate != nil {
		if engine, err = cost.New(*req.CommissionRate); err != nil {
			response.FromError(w, err)
			return
		}
	}

	res, err := engine.Evaluate(core.Trade{
		Side:       side,
		EntryPrice: req.EntryPrice,
		ExitPrice:  req.ExitPrice,
		Quantity:   req.Quantity,
	})
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, CostResponse{Result: res, Side: side, CommissionRate: engine.Rate()})
}

// validate checks the numeric fields only; a priced round trip has no symbol or times.
func (r CostRequest) validate() error {
	if !core.IsFinite(r.EntryPrice) || r.EntryPrice <= 0 {
		return core.Errorf(core.ErrInvalidInput, "entry_price must be positive, got %v", r.EntryPrice)
	}
	if !core.IsFinite(r.ExitPrice) || r.ExitPrice <= 0 {
		return core.Errorf(core.ErrInvalidInput, "exit_price must be positive, got %v", r.ExitPrice)
	}
	if r.Quantity <= 0 {
		return core.Errorf(core.ErrInvalidInput, "quantity must be positive, got %d", r.Quantity)
	}
	return nil
}
