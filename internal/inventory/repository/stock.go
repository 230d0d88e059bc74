package repository

import (
	"context"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/jmoiron/sqlx"
)

// StockRepository maintains the stock_levels read model
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Aggregate counts units per stock bucket straight from the units table.
// An empty partyID covers every party.
func (r *StockRepository) Aggregate(ctx context.Context, tx *sqlx.Tx, partyID string) ([]domain.StockLevel, error) {
	query := `
		SELECT
			CASE
				WHEN kind = 'graded_bag' THEN 'graded'
				WHEN status = 'opened' THEN 'in_process'
				ELSE 'import'
			END AS category,
			party_id,
			COALESCE(item_id, '') AS item_id,
			COALESCE(grade_id, '') AS grade_id,
			weight_id,
			COUNT(*) AS bags
		FROM units`
	args := []any{}
	if partyID != "" {
		query += ` WHERE party_id = ?`
		args = append(args, partyID)
	}
	query += `
		GROUP BY 1, 2, 3, 4, 5
		ORDER BY 1, 2, 3, 4, 5`

	var rows []struct {
		Category string `db:"category"`
		PartyID  string `db:"party_id"`
		ItemID   string `db:"item_id"`
		GradeID  string `db:"grade_id"`
		WeightID string `db:"weight_id"`
		Bags     int    `db:"bags"`
	}
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
		return nil, err
	}

	levels := make([]domain.StockLevel, 0, len(rows))
	for _, row := range rows {
		levels = append(levels, domain.StockLevel{
			Category: domain.StockCategory(row.Category),
			PartyID:  row.PartyID,
			ItemID:   row.ItemID,
			GradeID:  row.GradeID,
			WeightID: row.WeightID,
			Bags:     row.Bags,
		})
	}
	return levels, nil
}

// Replace swaps the read model rows for the scope with levels
func (r *StockRepository) Replace(ctx context.Context, tx *sqlx.Tx, partyID string, levels []domain.StockLevel, computedAt time.Time) error {
	del := `DELETE FROM stock_levels`
	args := []any{}
	if partyID != "" {
		del += ` WHERE party_id = ?`
		args = append(args, partyID)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(del), args...); err != nil {
		return err
	}

	insert := tx.Rebind(`
		INSERT INTO stock_levels (category, party_id, item_id, grade_id, weight_id, bags, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	for i := range levels {
		levels[i].ComputedAt = computedAt
		l := levels[i]
		if _, err := tx.ExecContext(ctx, insert,
			string(l.Category), l.PartyID, l.ItemID, l.GradeID, l.WeightID, l.Bags, l.ComputedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// Levels reads the read model. An empty partyID returns every party.
func (r *StockRepository) Levels(ctx context.Context, partyID string) ([]domain.StockLevel, error) {
	query := `
		SELECT category, party_id, item_id, grade_id, weight_id, bags, computed_at
		FROM stock_levels`
	args := []any{}
	if partyID != "" {
		query += ` WHERE party_id = ?`
		args = append(args, partyID)
	}
	query += ` ORDER BY category, party_id, item_id, grade_id, weight_id`

	levels := []domain.StockLevel{}
	if err := r.db.SelectContext(ctx, &levels, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return levels, nil
}
