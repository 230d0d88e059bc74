package service

import (
	"context"
	"strings"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/pending"
	"github.com/bagtrack/bagtrack-backend/pkg/clock"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
)

// OutcomeType tells a scanning terminal which feedback to give. Each value
// maps to a distinct tone on the scanner.
type OutcomeType string

const (
	OutcomeNotFound      OutcomeType = "not_found"
	OutcomeStatusChanged OutcomeType = "status_changed"
	OutcomeAlreadyOpened OutcomeType = "already_opened"
)

// ScanResult is the response to a scan or confirm
type ScanResult struct {
	Type      OutcomeType   `json:"type"`
	Barcode   string        `json:"barcode"`
	Unit      domain.Unit   `json:"unit,omitempty"`
	NewStatus domain.Status `json:"new_status,omitempty"`
	// ExpiresAt is when an already_opened confirmation lapses
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Terminal identifies the scanning device and its operator
type Terminal struct {
	ID         string
	OperatorID string
}

func (t Terminal) actor() Actor {
	return Actor{OperatorID: t.OperatorID, TerminalID: t.ID}
}

// ScanService runs the two-step scan protocol: a scan opens an unopened bag,
// a re-scan of an opened bag waits for the operator to confirm reopening.
type ScanService struct {
	lifecycle *LifecycleService
	pending   pending.Store
	clock     clock.Clock
	ttl       time.Duration
	logger    *logger.Logger
}

// NewScanService creates a new scan service. Confirmations lapse after ttl.
func NewScanService(lifecycle *LifecycleService, store pending.Store, clk clock.Clock, ttl time.Duration, log *logger.Logger) *ScanService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ScanService{
		lifecycle: lifecycle,
		pending:   store,
		clock:     clk,
		ttl:       ttl,
		logger:    log.WithComponent("scan"),
	}
}

// Scan handles one scanned barcode from terminal. A new scan supersedes any
// confirmation the terminal was still holding.
func (s *ScanService) Scan(ctx context.Context, terminal Terminal, barcode string) (*ScanResult, error) {
	if err := validateTerminal(terminal); err != nil {
		return nil, err
	}
	barcode = strings.TrimSpace(barcode)

	if _, err := s.pending.Delete(ctx, terminal.ID); err != nil {
		return nil, err
	}

	unit, err := s.lifecycle.FindByBarcode(ctx, barcode)
	if errors.Is(err, errors.ErrNotFound) {
		s.logger.Info().Str("barcode", barcode).Str("terminal_id", terminal.ID).Msg("scan not found")
		return &ScanResult{Type: OutcomeNotFound, Barcode: barcode}, nil
	}
	if err != nil {
		return nil, err
	}

	bag, ok := unit.(*domain.ImportBag)
	if !ok {
		return nil, errors.InvalidOperation("graded bags have no status to scan")
	}

	if bag.Status == domain.StatusUnopened {
		res, err := s.lifecycle.SetStatus(ctx, bag, domain.StatusOpened, domain.SourceScan, terminal.actor())
		if err != nil {
			return nil, err
		}
		if res.Changed {
			return &ScanResult{
				Type:      OutcomeStatusChanged,
				Barcode:   barcode,
				Unit:      res.Bag,
				NewStatus: domain.StatusOpened,
			}, nil
		}
		// Another terminal opened it first
		bag = res.Bag
	}

	return s.holdConfirmation(ctx, terminal, bag)
}

func (s *ScanService) holdConfirmation(ctx context.Context, terminal Terminal, bag *domain.ImportBag) (*ScanResult, error) {
	now := s.clock.Now()
	expires := now.Add(s.ttl)

	if err := s.pending.Put(ctx, pending.Confirmation{
		TerminalID: terminal.ID,
		OperatorID: terminal.OperatorID,
		UnitID:     bag.ID,
		Barcode:    bag.Barcode,
		CreatedAt:  now,
		ExpiresAt:  expires,
	}); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("barcode", bag.Barcode).
		Str("terminal_id", terminal.ID).
		Msg("already opened, awaiting confirmation")

	return &ScanResult{
		Type:      OutcomeAlreadyOpened,
		Barcode:   bag.Barcode,
		Unit:      bag,
		ExpiresAt: &expires,
	}, nil
}

// Confirm reopens the bag the terminal is holding a confirmation for. Only
// a return to unopened can be confirmed, only for the held barcode and only
// by the operator who scanned it.
func (s *ScanService) Confirm(ctx context.Context, terminal Terminal, barcode string, target domain.Status) (*ScanResult, error) {
	if err := validateTerminal(terminal); err != nil {
		return nil, err
	}
	barcode = strings.TrimSpace(barcode)
	if target != domain.StatusUnopened {
		return nil, errors.Validation(map[string]string{"target_status": "only unopened can be confirmed"})
	}

	held, err := s.pending.Get(ctx, terminal.ID)
	if err != nil {
		return nil, err
	}
	if held == nil {
		return nil, errors.InvalidOperation("no confirmation is pending for this terminal")
	}
	if held.OperatorID != terminal.OperatorID {
		return nil, errors.InvalidOperation("the pending confirmation belongs to another operator")
	}
	if held.Barcode != barcode {
		return nil, errors.InvalidOperation("barcode does not match the pending confirmation")
	}

	unit, err := s.lifecycle.FindByID(ctx, held.UnitID)
	if err != nil {
		return nil, err
	}
	bag, ok := unit.(*domain.ImportBag)
	if !ok {
		return nil, errors.InvalidOperation("graded bags have no status")
	}

	res, err := s.lifecycle.SetStatus(ctx, bag, target, domain.SourceConfirm, terminal.actor())
	if err != nil {
		return nil, err
	}

	if _, err := s.pending.Delete(ctx, terminal.ID); err != nil {
		s.logger.Warn().Err(err).Str("terminal_id", terminal.ID).Msg("failed to clear confirmation")
	}

	return &ScanResult{
		Type:      OutcomeStatusChanged,
		Barcode:   barcode,
		Unit:      res.Bag,
		NewStatus: res.Bag.Status,
	}, nil
}

// Cancel discards the terminal's confirmation. It reports whether one was held.
func (s *ScanService) Cancel(ctx context.Context, terminal Terminal) (bool, error) {
	if err := validateTerminal(terminal); err != nil {
		return false, err
	}
	return s.pending.Delete(ctx, terminal.ID)
}

// Pending returns the terminal's live confirmation, or nil
func (s *ScanService) Pending(ctx context.Context, terminal Terminal) (*pending.Confirmation, error) {
	if err := validateTerminal(terminal); err != nil {
		return nil, err
	}
	return s.pending.Get(ctx, terminal.ID)
}

func validateTerminal(t Terminal) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.Validation(map[string]string{"terminal_id": "this field is required"})
	}
	return nil
}
