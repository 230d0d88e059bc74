package handler

import (
	"net/http"
	"strings"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/service"
	"github.com/bagtrack/bagtrack-backend/pkg/httputil"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/go-playground/validator/v10"
)

func init() {
	if err := httputil.RegisterCustomValidation("unit_barcode", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseBarcode(strings.TrimSpace(fl.Field().String()))
		return err == nil
	}); err != nil {
		panic(err)
	}
}

// ScanHandler handles the scanning terminal endpoints
type ScanHandler struct {
	service *service.ScanService
	logger  *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(svc *service.ScanService, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		service: svc,
		logger:  log,
	}
}

func terminalFrom(r *http.Request) service.Terminal {
	ctx := r.Context()
	return service.Terminal{
		ID:         httputil.GetTerminalID(ctx),
		OperatorID: httputil.GetOperatorID(ctx),
	}
}

// Scan processes a scanned barcode. An unknown barcode is a normal outcome,
// not an error.
func (h *ScanHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Barcode string `json:"barcode" validate:"required"`
	}
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Scan(r.Context(), terminalFrom(r), req.Barcode)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Confirm completes a pending reopen
func (h *ScanHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Barcode      string `json:"barcode" validate:"required,unit_barcode"`
		TargetStatus string `json:"target_status" validate:"required,oneof=unopened opened"`
	}
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Confirm(r.Context(), terminalFrom(r), req.Barcode, domain.Status(req.TargetStatus))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Cancel discards the terminal's pending confirmation
func (h *ScanHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	cancelled, err := h.service.Cancel(r.Context(), terminalFrom(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// Pending returns the terminal's pending confirmation, or null
func (h *ScanHandler) Pending(w http.ResponseWriter, r *http.Request) {
	held, err := h.service.Pending(r.Context(), terminalFrom(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, held)
}
