package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/events"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/repository"
	"github.com/bagtrack/bagtrack-backend/pkg/clock"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UnitSpec describes the units to create. ImportID is required for import
// bags, whose party is inherited from the import. Graded bags name their
// party, item and grade directly.
type UnitSpec struct {
	Kind      domain.Kind
	ImportID  string
	PartyID   string
	WeightID  string
	ItemID    string
	GradeID   string
	SectionID *string
}

// ImportSpec describes a goods arrival
type ImportSpec struct {
	PartyID    string
	Reference  *string
	ReceivedOn string // YYYY-MM-DD; defaults to today in the warehouse zone
}

// Actor identifies who caused a status write
type Actor struct {
	OperatorID string
	TerminalID string
}

// StatusResult is the outcome of a status write. Changed is false when the
// bag already had the requested status.
type StatusResult struct {
	Bag     *domain.ImportBag `json:"unit"`
	From    domain.Status     `json:"from_status"`
	Changed bool              `json:"changed"`
}

// LifecycleConfig bounds optimistic retries
type LifecycleConfig struct {
	// MaxCreateRetries bounds retries after a unique-index conflict on issuance
	MaxCreateRetries int
	// MaxStatusRetries bounds compare-and-set retries on status writes
	MaxStatusRetries int
}

// LifecycleService creates units and moves import bags through their lifecycle
type LifecycleService struct {
	db        *database.DB
	units     *repository.UnitRepository
	imports   *repository.ImportRepository
	sequencer *Sequencer
	publisher *events.UnitEventPublisher
	clock     clock.Clock
	cfg       LifecycleConfig
	logger    *logger.Logger
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(
	db *database.DB,
	units *repository.UnitRepository,
	imports *repository.ImportRepository,
	sequencer *Sequencer,
	publisher *events.UnitEventPublisher,
	clk clock.Clock,
	cfg LifecycleConfig,
	log *logger.Logger,
) *LifecycleService {
	if cfg.MaxCreateRetries < 1 {
		cfg.MaxCreateRetries = 5
	}
	if cfg.MaxStatusRetries < 1 {
		cfg.MaxStatusRetries = 5
	}
	return &LifecycleService{
		db:        db,
		units:     units,
		imports:   imports,
		sequencer: sequencer,
		publisher: publisher,
		clock:     clk,
		cfg:       cfg,
		logger:    log.WithComponent("lifecycle"),
	}
}

// Import operations

// CreateImport records a goods arrival that import bags can be created against
func (s *LifecycleService) CreateImport(ctx context.Context, spec ImportSpec) (*domain.Import, error) {
	details := map[string]string{}
	if strings.TrimSpace(spec.PartyID) == "" {
		details["party_id"] = "this field is required"
	}
	receivedOn := spec.ReceivedOn
	if receivedOn == "" {
		receivedOn = s.sequencer.Today().Format(domain.DateLayout)
	} else if _, err := time.Parse(domain.DateLayout, receivedOn); err != nil {
		details["received_on"] = "must be a date in YYYY-MM-DD layout"
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	imp := &domain.Import{
		ID:         uuid.New().String(),
		PartyID:    strings.TrimSpace(spec.PartyID),
		Reference:  spec.Reference,
		ReceivedOn: receivedOn,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.imports.Create(ctx, imp); err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info().Str("import_id", imp.ID).Str("party_id", imp.PartyID).Msg("import recorded")
	return imp, nil
}

// GetImport returns an import with its bags in barcode order
func (s *LifecycleService) GetImport(ctx context.Context, id string) (*domain.Import, []domain.Unit, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil, errors.NotFound("import")
	}
	imp, err := s.imports.GetByID(ctx, nil, id)
	if err != nil {
		return nil, nil, err
	}
	units, err := s.units.ListByImport(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return imp, units, nil
}

// Unit creation

// Create creates a single unit
func (s *LifecycleService) Create(ctx context.Context, spec UnitSpec) (domain.Unit, error) {
	units, err := s.CreateBulk(ctx, spec, 1)
	if err != nil {
		return nil, err
	}
	return units[0], nil
}

// CreateBulk creates count identical units with consecutive barcodes in one
// transaction. Nothing is persisted unless all count units are.
func (s *LifecycleService) CreateBulk(ctx context.Context, spec UnitSpec, count int) ([]domain.Unit, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}
	if err := validateIssue(spec.Kind, count); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	day := clock.LocalDate(now, s.sequencer.Location())
	createdOn := day.Format(domain.DateLayout)

	var units []domain.Unit
	for attempt := 1; ; attempt++ {
		err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
			var err error
			units, err = s.createInTx(ctx, tx, spec, count, day, createdOn, now.UTC())
			return err
		})
		if err == nil {
			break
		}
		if !database.IsUniqueViolation(err) {
			return nil, mapStoreError(err)
		}
		if attempt > s.cfg.MaxCreateRetries {
			s.logger.Error().Err(err).
				Str("kind", string(spec.Kind)).
				Int("attempts", attempt).
				Msg("barcode issuance kept colliding")
			return nil, errors.Conflict("barcode issuance conflicted repeatedly, retry the request")
		}
		s.logger.Warn().
			Str("kind", string(spec.Kind)).
			Int("attempt", attempt).
			Msg("barcode collision, retrying issuance")
	}

	s.logger.Info().
		Str("kind", string(spec.Kind)).
		Str("first", units[0].Core().Barcode).
		Str("last", units[len(units)-1].Core().Barcode).
		Int("count", len(units)).
		Msg("units created")

	s.publisher.PublishUnitsCreated(ctx, units)
	return units, nil
}

func (s *LifecycleService) createInTx(ctx context.Context, tx *sqlx.Tx, spec UnitSpec, count int, day time.Time, createdOn string, now time.Time) ([]domain.Unit, error) {
	partyID := spec.PartyID
	if spec.Kind == domain.KindImportBag {
		imp, err := s.imports.GetByID(ctx, tx, spec.ImportID)
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.Validation(map[string]string{"import_id": "import does not exist"})
		}
		if err != nil {
			return nil, err
		}
		if partyID != "" && partyID != imp.PartyID {
			return nil, errors.Validation(map[string]string{"party_id": "does not match the import's party"})
		}
		partyID = imp.PartyID
	}

	barcodes, err := s.sequencer.Reserve(ctx, tx, spec.Kind, day, count)
	if err != nil {
		return nil, err
	}

	units := make([]domain.Unit, 0, count)
	for _, barcode := range barcodes {
		base := domain.UnitBase{
			ID:        uuid.New().String(),
			Kind:      spec.Kind,
			Barcode:   barcode,
			CreatedOn: createdOn,
			PartyID:   partyID,
			WeightID:  spec.WeightID,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		var u domain.Unit
		switch spec.Kind {
		case domain.KindImportBag:
			u = &domain.ImportBag{UnitBase: base, ImportID: spec.ImportID, Status: domain.StatusUnopened}
		case domain.KindGradedBag:
			u = &domain.GradedBag{UnitBase: base, ItemID: spec.ItemID, GradeID: spec.GradeID, SectionID: spec.SectionID}
		}

		if err := s.units.Insert(ctx, tx, u); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

func validateSpec(spec UnitSpec) error {
	details := map[string]string{}
	required := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			details[field] = "this field is required"
		}
	}

	required("weight_id", spec.WeightID)
	switch spec.Kind {
	case domain.KindImportBag:
		required("import_id", spec.ImportID)
		if spec.ImportID != "" {
			if _, err := uuid.Parse(spec.ImportID); err != nil {
				details["import_id"] = "must be a valid UUID"
			}
		}
		if spec.ItemID != "" || spec.GradeID != "" || spec.SectionID != nil {
			details["kind"] = "import bags carry no item, grade or section"
		}
	case domain.KindGradedBag:
		required("party_id", spec.PartyID)
		required("item_id", spec.ItemID)
		required("grade_id", spec.GradeID)
		if spec.ImportID != "" {
			details["import_id"] = "graded bags do not reference an import"
		}
	default:
		details["kind"] = "must be one of: import_bag, graded_bag"
	}

	if len(details) > 0 {
		return errors.Validation(details)
	}
	return nil
}

// Lookup

// FindByBarcode returns the unit with the given barcode. Strings that are
// not well-formed barcodes cannot match a unit and yield NotFound.
func (s *LifecycleService) FindByBarcode(ctx context.Context, barcode string) (domain.Unit, error) {
	barcode = strings.TrimSpace(barcode)
	if _, err := domain.ParseBarcode(barcode); err != nil {
		return nil, errors.NotFound("unit")
	}
	return s.units.FindByBarcode(ctx, barcode)
}

// FindByID returns the unit with the given id
func (s *LifecycleService) FindByID(ctx context.Context, id string) (domain.Unit, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.NotFound("unit")
	}
	return s.units.FindByID(ctx, id)
}

// History lists a unit's status changes, oldest first
func (s *LifecycleService) History(ctx context.Context, id string) ([]domain.StatusChange, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.units.History(ctx, id)
}

// Status transitions

// SetStatus moves an import bag to target with a compare-and-set on the
// status the caller observed. On a miss the bag is re-read and the request
// re-evaluated; if the bag already has target the result is unchanged.
func (s *LifecycleService) SetStatus(ctx context.Context, bag *domain.ImportBag, target domain.Status, source domain.ChangeSource, actor Actor) (*StatusResult, error) {
	if bag == nil {
		return nil, errors.Validation(map[string]string{"unit": "this field is required"})
	}
	if !target.Valid() {
		return nil, errors.Validation(map[string]string{"status": "must be one of: unopened, opened"})
	}

	current := bag
	for attempt := 0; attempt <= s.cfg.MaxStatusRetries; attempt++ {
		if current.Status == target {
			return &StatusResult{Bag: current, From: current.Status, Changed: false}, nil
		}

		from := current.Status
		now := s.clock.Now().UTC()
		var updated *domain.ImportBag

		err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
			ok, err := s.units.CompareAndSetStatus(ctx, tx, current.ID, from, target, now)
			if err != nil || !ok {
				return err
			}

			if err := s.units.RecordStatusChange(ctx, tx, &domain.StatusChange{
				UnitID:     current.ID,
				FromStatus: from,
				ToStatus:   target,
				Source:     source,
				ChangedBy:  actor.OperatorID,
				ChangedAt:  now,
			}); err != nil {
				return err
			}

			u, err := s.units.FindByIDTx(ctx, tx, current.ID)
			if err != nil {
				return err
			}
			updated, _ = u.(*domain.ImportBag)
			return nil
		})
		if err != nil {
			return nil, mapStoreError(err)
		}

		if updated != nil {
			s.logger.Info().
				Str("barcode", updated.Barcode).
				Str("from", string(from)).
				Str("to", string(target)).
				Str("source", string(source)).
				Str("operator_id", actor.OperatorID).
				Str("terminal_id", actor.TerminalID).
				Msg("status changed")

			s.publisher.PublishStatusChanged(ctx, events.StatusChange{
				Bag:        updated,
				From:       from,
				Source:     source,
				ChangedBy:  actor.OperatorID,
				TerminalID: actor.TerminalID,
				ChangedAt:  now,
			})
			return &StatusResult{Bag: updated, From: from, Changed: true}, nil
		}

		s.logger.Warn().
			Str("barcode", current.Barcode).
			Str("expected", string(from)).
			Int("attempt", attempt+1).
			Msg("status compare-and-set missed, re-reading")

		u, err := s.units.FindByID(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		reread, ok := u.(*domain.ImportBag)
		if !ok {
			return nil, errors.InvalidOperation("graded bags have no status")
		}
		current = reread
	}

	return nil, errors.Conflict(fmt.Sprintf("status of %s kept changing, retry the request", bag.Barcode))
}

// SetStatusByID is the direct administrative edit of a unit's status
func (s *LifecycleService) SetStatusByID(ctx context.Context, id string, target domain.Status, actor Actor) (*StatusResult, error) {
	u, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch v := u.(type) {
	case *domain.ImportBag:
		return s.SetStatus(ctx, v, target, domain.SourceManual, actor)
	case *domain.GradedBag:
		return nil, errors.InvalidOperation("graded bags have no status")
	default:
		return nil, fmt.Errorf("unit %s has unsupported type %T", id, u)
	}
}

// mapStoreError passes AppErrors through and translates constraint violations
func mapStoreError(err error) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if mapped := database.MapConstraintError(err); mapped != nil {
		return mapped
	}
	return err
}
