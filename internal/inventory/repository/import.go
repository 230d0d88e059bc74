package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ImportRepository handles import (goods arrival) persistence
type ImportRepository struct {
	db *database.DB
}

// NewImportRepository creates a new import repository
func NewImportRepository(db *database.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

// Create creates a new import
func (r *ImportRepository) Create(ctx context.Context, imp *domain.Import) error {
	if imp.ID == "" {
		imp.ID = uuid.New().String()
	}

	query := r.db.Rebind(`
		INSERT INTO imports (id, party_id, reference, received_on, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query, imp.ID, imp.PartyID, imp.Reference, imp.ReceivedOn, imp.CreatedAt)
	return err
}

// GetByID gets an import by ID. Pass a transaction to read inside it, or nil.
func (r *ImportRepository) GetByID(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Import, error) {
	var q sqlx.ExtContext = r.db
	if tx != nil {
		q = tx
	}
	query := q.Rebind(`
		SELECT id, party_id, reference, received_on, created_at
		FROM imports WHERE id = ?
	`)

	var imp domain.Import
	err := sqlx.GetContext(ctx, q, &imp, query, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("import")
	}
	if err != nil {
		return nil, err
	}
	return &imp, nil
}
