package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/repository"
	"github.com/bagtrack/bagtrack-backend/pkg/clock"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
)

// Sequencer issues date-partitioned barcodes. It keeps no counters: the last
// suffix of the day is re-derived from the units table on every call.
type Sequencer struct {
	db       *database.DB
	units    *repository.UnitRepository
	clock    clock.Clock
	location *time.Location
	logger   *logger.Logger
}

// NewSequencer creates a new sequencer for the warehouse timezone loc
func NewSequencer(db *database.DB, units *repository.UnitRepository, clk clock.Clock, loc *time.Location, log *logger.Logger) *Sequencer {
	return &Sequencer{
		db:       db,
		units:    units,
		clock:    clk,
		location: loc,
		logger:   log,
	}
}

// Today returns the current warehouse-local calendar day
func (s *Sequencer) Today() time.Time {
	return clock.LocalDate(s.clock.Now(), s.location)
}

// Location returns the warehouse timezone
func (s *Sequencer) Location() *time.Location {
	return s.location
}

// Reserve computes count consecutive barcodes of kind for day. It must run
// in the transaction that inserts the units: on postgres it takes the
// per-(kind, day) advisory lock, which is held until that transaction ends.
// Either all count barcodes fit in the day or none are returned.
func (s *Sequencer) Reserve(ctx context.Context, tx *sqlx.Tx, kind domain.Kind, day time.Time, count int) ([]string, error) {
	if err := validateIssue(kind, count); err != nil {
		return nil, err
	}

	prefix := domain.DayPrefix(kind, day)
	if err := s.db.LockKey(ctx, tx, prefix); err != nil {
		return nil, err
	}

	return s.next(ctx, tx, kind, day, count)
}

// NextBarcode previews the next barcode of kind for today without reserving it
func (s *Sequencer) NextBarcode(ctx context.Context, kind domain.Kind) (string, error) {
	barcodes, err := s.NextBarcodes(ctx, kind, 1)
	if err != nil {
		return "", err
	}
	return barcodes[0], nil
}

// NextBarcodes previews the next count barcodes of kind for today. Nothing
// is reserved, so a concurrent create may take them first.
func (s *Sequencer) NextBarcodes(ctx context.Context, kind domain.Kind, count int) ([]string, error) {
	if err := validateIssue(kind, count); err != nil {
		return nil, err
	}
	return s.next(ctx, nil, kind, s.Today(), count)
}

func (s *Sequencer) next(ctx context.Context, q sqlx.ExtContext, kind domain.Kind, day time.Time, count int) ([]string, error) {
	prefix := domain.DayPrefix(kind, day)

	last, err := s.units.LastBarcode(ctx, q, kind, prefix)
	if err != nil {
		return nil, err
	}

	start := 1
	if last != "" {
		n, err := domain.SuffixOf(last)
		if err != nil {
			return nil, fmt.Errorf("corrupt barcode in store: %w", err)
		}
		start = n + 1
	}

	remaining := domain.MaxSuffix - start + 1
	if remaining < 0 {
		remaining = 0
	}
	if count > remaining {
		s.logger.Warn().
			Str("prefix", prefix).
			Int("requested", count).
			Int("remaining", remaining).
			Msg("barcode sequence exhausted")
		return nil, errors.SequenceExhausted(prefix, count, remaining)
	}

	barcodes := make([]string, count)
	for i := range barcodes {
		barcodes[i] = domain.FormatBarcode(kind, day, start+i)
	}
	return barcodes, nil
}

func validateIssue(kind domain.Kind, count int) error {
	details := map[string]string{}
	if !kind.Valid() {
		details["kind"] = "must be one of: import_bag, graded_bag"
	}
	if count < 1 {
		details["count"] = "must be at least 1"
	}
	if count > domain.MaxSuffix {
		details["count"] = fmt.Sprintf("must be at most %d", domain.MaxSuffix)
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}
