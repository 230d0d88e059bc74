package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const unitColumns = `id, kind, barcode, created_on, import_id, party_id, weight_id,
	item_id, grade_id, section_id, status, version, created_at, updated_at`

// unitRow is the flat storage shape of both unit kinds
type unitRow struct {
	domain.UnitBase
	ImportID  sql.NullString `db:"import_id"`
	ItemID    sql.NullString `db:"item_id"`
	GradeID   sql.NullString `db:"grade_id"`
	SectionID sql.NullString `db:"section_id"`
	Status    sql.NullString `db:"status"`
}

func (r *unitRow) toUnit() (domain.Unit, error) {
	switch r.Kind {
	case domain.KindImportBag:
		return &domain.ImportBag{
			UnitBase: r.UnitBase,
			ImportID: r.ImportID.String,
			Status:   domain.Status(r.Status.String),
		}, nil
	case domain.KindGradedBag:
		bag := &domain.GradedBag{
			UnitBase: r.UnitBase,
			ItemID:   r.ItemID.String,
			GradeID:  r.GradeID.String,
		}
		if r.SectionID.Valid {
			section := r.SectionID.String
			bag.SectionID = &section
		}
		return bag, nil
	default:
		return nil, fmt.Errorf("unit %s has unknown kind %q", r.ID, r.Kind)
	}
}

func rowFromUnit(u domain.Unit) unitRow {
	row := unitRow{UnitBase: *u.Core()}
	switch v := u.(type) {
	case *domain.ImportBag:
		row.ImportID = sql.NullString{String: v.ImportID, Valid: v.ImportID != ""}
		row.Status = sql.NullString{String: string(v.Status), Valid: true}
	case *domain.GradedBag:
		row.ItemID = sql.NullString{String: v.ItemID, Valid: true}
		row.GradeID = sql.NullString{String: v.GradeID, Valid: true}
		if v.SectionID != nil {
			row.SectionID = sql.NullString{String: *v.SectionID, Valid: true}
		}
	}
	return row
}

// UnitRepository handles unit persistence
type UnitRepository struct {
	db *database.DB
}

// NewUnitRepository creates a new unit repository
func NewUnitRepository(db *database.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// LastBarcode returns the greatest barcode of kind that starts with dayPrefix,
// or "" when none was issued yet. Barcodes are fixed width, so the string
// order is the suffix order.
func (r *UnitRepository) LastBarcode(ctx context.Context, q sqlx.ExtContext, kind domain.Kind, dayPrefix string) (string, error) {
	if q == nil {
		q = r.db
	}
	query := q.Rebind(`
		SELECT barcode FROM units
		WHERE kind = ? AND barcode LIKE ?
		ORDER BY barcode DESC
		LIMIT 1
	`)

	var barcode string
	err := sqlx.GetContext(ctx, q, &barcode, query, string(kind), dayPrefix+"%")
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read last barcode for %s: %w", dayPrefix, err)
	}
	return barcode, nil
}

// Insert stores a new unit inside the caller's transaction
func (r *UnitRepository) Insert(ctx context.Context, tx *sqlx.Tx, u domain.Unit) error {
	base := u.Core()
	if base.ID == "" {
		base.ID = uuid.New().String()
	}
	if base.Version == 0 {
		base.Version = 1
	}
	row := rowFromUnit(u)

	query := tx.Rebind(`
		INSERT INTO units (` + unitColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := tx.ExecContext(ctx, query,
		row.ID, string(row.Kind), row.Barcode, row.CreatedOn, row.ImportID, row.PartyID, row.WeightID,
		row.ItemID, row.GradeID, row.SectionID, row.Status, row.Version, row.CreatedAt, row.UpdatedAt,
	)
	return err
}

// FindByID loads a unit by id
func (r *UnitRepository) FindByID(ctx context.Context, id string) (domain.Unit, error) {
	return r.findOne(ctx, r.db, "id", id)
}

// FindByBarcode loads a unit by barcode. The prefix letter identifies the
// kind, so the lookup is a single index lookup.
func (r *UnitRepository) FindByBarcode(ctx context.Context, barcode string) (domain.Unit, error) {
	return r.findOne(ctx, r.db, "barcode", barcode)
}

// FindByIDTx loads a unit inside a transaction
func (r *UnitRepository) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (domain.Unit, error) {
	return r.findOne(ctx, tx, "id", id)
}

func (r *UnitRepository) findOne(ctx context.Context, q sqlx.ExtContext, column, value string) (domain.Unit, error) {
	query := q.Rebind(`SELECT ` + unitColumns + ` FROM units WHERE ` + column + ` = ?`)

	var row unitRow
	err := sqlx.GetContext(ctx, q, &row, query, value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("unit")
	}
	if err != nil {
		return nil, err
	}
	return row.toUnit()
}

// ListByImport lists the bags of an import in barcode order
func (r *UnitRepository) ListByImport(ctx context.Context, importID string) ([]domain.Unit, error) {
	query := r.db.Rebind(`SELECT ` + unitColumns + ` FROM units WHERE import_id = ? ORDER BY barcode`)

	var rows []unitRow
	if err := r.db.SelectContext(ctx, &rows, query, importID); err != nil {
		return nil, err
	}

	units := make([]domain.Unit, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toUnit()
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

// CompareAndSetStatus moves an import bag from one status to another. It
// reports false when the stored status was no longer from, leaving the row
// untouched.
func (r *UnitRepository) CompareAndSetStatus(ctx context.Context, tx *sqlx.Tx, id string, from, to domain.Status, now time.Time) (bool, error) {
	query := tx.Rebind(`
		UPDATE units
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND kind = ? AND status = ?
	`)
	res, err := tx.ExecContext(ctx, query, string(to), now, id, string(domain.KindImportBag), string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordStatusChange appends to the status audit trail
func (r *UnitRepository) RecordStatusChange(ctx context.Context, tx *sqlx.Tx, change *domain.StatusChange) error {
	if change.ID == "" {
		change.ID = uuid.New().String()
	}
	query := tx.Rebind(`
		INSERT INTO unit_status_changes (id, unit_id, from_status, to_status, source, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := tx.ExecContext(ctx, query,
		change.ID, change.UnitID, string(change.FromStatus), string(change.ToStatus), string(change.Source), change.ChangedBy, change.ChangedAt,
	)
	return err
}

// History lists the status changes of a unit, oldest first
func (r *UnitRepository) History(ctx context.Context, unitID string) ([]domain.StatusChange, error) {
	query := r.db.Rebind(`
		SELECT id, unit_id, from_status, to_status, source, changed_by, changed_at
		FROM unit_status_changes
		WHERE unit_id = ?
		ORDER BY changed_at, id
	`)

	changes := []domain.StatusChange{}
	if err := r.db.SelectContext(ctx, &changes, query, unitID); err != nil {
		return nil, err
	}
	return changes, nil
}
