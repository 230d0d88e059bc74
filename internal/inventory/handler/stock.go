package handler

import (
	"net/http"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/service"
	"github.com/bagtrack/bagtrack-backend/pkg/httputil"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
)

// StockHandler handles stock read model endpoints
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log,
	}
}

// Levels lists stored stock levels, optionally for one party
func (h *StockHandler) Levels(w http.ResponseWriter, r *http.Request) {
	scope := service.Scope{PartyID: r.URL.Query().Get("party_id")}

	levels, err := h.service.Levels(r.Context(), scope)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, levels)
}

// Recompute rebuilds stock levels from the unit store. The body is optional.
func (h *StockHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PartyID string `json:"party_id"`
	}
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	levels, err := h.service.Recompute(r.Context(), service.Scope{PartyID: req.PartyID})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, levels)
}
