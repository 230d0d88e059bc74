package handler

import (
	"net/http"
	"strconv"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/service"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/bagtrack/bagtrack-backend/pkg/httputil"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// UnitHandler handles import, unit and barcode endpoints
type UnitHandler struct {
	lifecycle *service.LifecycleService
	sequencer *service.Sequencer
	logger    *logger.Logger
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(lifecycle *service.LifecycleService, sequencer *service.Sequencer, log *logger.Logger) *UnitHandler {
	return &UnitHandler{
		lifecycle: lifecycle,
		sequencer: sequencer,
		logger:    log,
	}
}

type createImportRequest struct {
	PartyID    string  `json:"party_id" validate:"required"`
	Reference  *string `json:"reference"`
	ReceivedOn string  `json:"received_on" validate:"omitempty,datetime=2006-01-02"`
}

// CreateImport records a goods arrival
func (h *UnitHandler) CreateImport(w http.ResponseWriter, r *http.Request) {
	var req createImportRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	imp, err := h.lifecycle.CreateImport(r.Context(), service.ImportSpec{
		PartyID:    req.PartyID,
		Reference:  req.Reference,
		ReceivedOn: req.ReceivedOn,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, imp)
}

// GetImport returns an import and its bags
func (h *UnitHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	imp, units, err := h.lifecycle.GetImport(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"import": imp,
		"units":  units,
	})
}

type createUnitsRequest struct {
	Kind      string  `json:"kind" validate:"required,oneof=import_bag graded_bag"`
	ImportID  string  `json:"import_id" validate:"omitempty,uuid"`
	PartyID   string  `json:"party_id"`
	WeightID  string  `json:"weight_id" validate:"required"`
	ItemID    string  `json:"item_id"`
	GradeID   string  `json:"grade_id"`
	SectionID *string `json:"section_id"`
	Quantity  int     `json:"quantity" validate:"omitempty,min=1,max=9999"`
}

// CreateUnits creates one or more identical units with consecutive barcodes
func (h *UnitHandler) CreateUnits(w http.ResponseWriter, r *http.Request) {
	var req createUnitsRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	units, err := h.lifecycle.CreateBulk(r.Context(), service.UnitSpec{
		Kind:      domain.Kind(req.Kind),
		ImportID:  req.ImportID,
		PartyID:   req.PartyID,
		WeightID:  req.WeightID,
		ItemID:    req.ItemID,
		GradeID:   req.GradeID,
		SectionID: req.SectionID,
	}, quantity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, units)
}

// GetUnit gets a unit by ID
func (h *UnitHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.lifecycle.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, unit)
}

// GetByBarcode gets a unit by its barcode
func (h *UnitHandler) GetByBarcode(w http.ResponseWriter, r *http.Request) {
	unit, err := h.lifecycle.FindByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, unit)
}

// History lists the status changes of an import bag, oldest first
func (h *UnitHandler) History(w http.ResponseWriter, r *http.Request) {
	changes, err := h.lifecycle.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, changes)
}

// UpdateStatus sets an import bag's status directly
func (h *UnitHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status" validate:"required,oneof=unopened opened"`
	}
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	ctx := r.Context()
	result, err := h.lifecycle.SetStatusByID(ctx, id, domain.Status(req.Status), service.Actor{
		OperatorID: httputil.GetOperatorID(ctx),
		TerminalID: httputil.GetTerminalID(ctx),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// PreviewBarcodes returns the barcodes the next creation would receive.
// Nothing is reserved.
func (h *UnitHandler) PreviewBarcodes(w http.ResponseWriter, r *http.Request) {
	kind := domain.Kind(r.URL.Query().Get("kind"))

	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{"count": "must be a number"}))
			return
		}
		count = n
	}

	barcodes, err := h.sequencer.NextBarcodes(r.Context(), kind, count)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"kind":     kind,
		"barcodes": barcodes,
	})
}
