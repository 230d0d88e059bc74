package service

import (
	"context"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/repository"
	"github.com/bagtrack/bagtrack-backend/pkg/clock"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/jmoiron/sqlx"
)

// stockLockKey serializes every recompute, whatever its scope, so a rebuild
// never races another one over the same stock_levels rows
const stockLockKey = "stock_levels"

// Scope narrows a stock computation. The zero value covers every party.
type Scope struct {
	PartyID string
}

// StockService maintains the per-party stock read model. Import stock is
// unopened import bags, in-process stock is opened import bags and graded
// stock is graded bags. Export stock is not derived here.
type StockService struct {
	db     *database.DB
	stock  *repository.StockRepository
	clock  clock.Clock
	logger *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(db *database.DB, stock *repository.StockRepository, clk clock.Clock, log *logger.Logger) *StockService {
	return &StockService{
		db:     db,
		stock:  stock,
		clock:  clk,
		logger: log.WithComponent("stock"),
	}
}

// Recompute rebuilds the read model for scope from the unit rows in one
// transaction and returns the new levels
func (s *StockService) Recompute(ctx context.Context, scope Scope) ([]domain.StockLevel, error) {
	var levels []domain.StockLevel
	now := s.clock.Now().UTC()

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		// The aggregate below must read after the lock so it sees every
		// batch committed by the recompute that held it before us
		if err := s.db.LockKey(ctx, tx, stockLockKey); err != nil {
			return err
		}
		var err error
		levels, err = s.stock.Aggregate(ctx, tx, scope.PartyID)
		if err != nil {
			return err
		}
		return s.stock.Replace(ctx, tx, scope.PartyID, levels, now)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("party_id", scope.PartyID).
		Int("rows", len(levels)).
		Msg("stock recomputed")
	return levels, nil
}

// Levels reads the read model for scope
func (s *StockService) Levels(ctx context.Context, scope Scope) ([]domain.StockLevel, error) {
	return s.stock.Levels(ctx, scope.PartyID)
}
