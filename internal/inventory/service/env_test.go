package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/events"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/pending"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/repository"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/service"
	"github.com/bagtrack/bagtrack-backend/pkg/clock"
	"github.com/bagtrack/bagtrack-backend/pkg/config"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/bagtrack/bagtrack-backend/pkg/testutil"
	"github.com/stretchr/testify/require"
)

const confirmationTTL = 2 * time.Minute

// testEnv wires the services against a private SQLite database
type testEnv struct {
	db        *database.DB
	clock     *clock.Manual
	published *testutil.MockPublisher
	sequencer *service.Sequencer
	lifecycle *service.LifecycleService
	scan      *service.ScanService
	stock     *service.StockService
	pending   *pending.MemoryStore
}

func newTestEnv(t *testing.T, clk *clock.Manual) *testEnv {
	t.Helper()

	db := testutil.NewSQLiteDB(t, repository.Migrations(config.DriverSQLite))
	log := logger.Nop()
	published := testutil.NewMockPublisher()

	units := repository.NewUnitRepository(db)
	sequencer := service.NewSequencer(db, units, clk, testutil.WarehouseLocation(), log)
	lifecycle := service.NewLifecycleService(
		db, units, repository.NewImportRepository(db), sequencer,
		events.NewUnitEventPublisher(published, log),
		clk, service.LifecycleConfig{}, log,
	)
	store := pending.NewMemoryStore(clk)

	return &testEnv{
		db:        db,
		clock:     clk,
		published: published,
		sequencer: sequencer,
		lifecycle: lifecycle,
		scan:      service.NewScanService(lifecycle, store, clk, confirmationTTL, log),
		stock:     service.NewStockService(db, repository.NewStockRepository(db), clk, log),
		pending:   store,
	}
}

func (e *testEnv) createImport(t *testing.T, partyID string) *domain.Import {
	t.Helper()
	imp, err := e.lifecycle.CreateImport(context.Background(), service.ImportSpec{PartyID: partyID})
	require.NoError(t, err)
	return imp
}

func (e *testEnv) createImportBags(t *testing.T, imp *domain.Import, count int) []*domain.ImportBag {
	t.Helper()
	units, err := e.lifecycle.CreateBulk(context.Background(), service.UnitSpec{
		Kind:     domain.KindImportBag,
		ImportID: imp.ID,
		WeightID: testutil.Weight50kg,
	}, count)
	require.NoError(t, err)

	bags := make([]*domain.ImportBag, len(units))
	for i, u := range units {
		bag, ok := u.(*domain.ImportBag)
		require.True(t, ok)
		bags[i] = bag
	}
	return bags
}

func (e *testEnv) createGradedBags(t *testing.T, partyID string, count int) []domain.Unit {
	t.Helper()
	units, err := e.lifecycle.CreateBulk(context.Background(), gradedSpec(partyID), count)
	require.NoError(t, err)
	return units
}

func (e *testEnv) countUnits(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.GetContext(context.Background(), &n, `SELECT COUNT(*) FROM units`))
	return n
}

func gradedSpec(partyID string) service.UnitSpec {
	return service.UnitSpec{
		Kind:     domain.KindGradedBag,
		PartyID:  partyID,
		WeightID: testutil.Weight25kg,
		ItemID:   testutil.ItemCotton,
		GradeID:  testutil.GradeA,
	}
}

func barcodesOf(units []domain.Unit) []string {
	out := make([]string, len(units))
	for i, u := range units {
		out[i] = u.Core().Barcode
	}
	return out
}

var terminal1 = service.Terminal{ID: "terminal-1", OperatorID: "operator-1"}
var terminal2 = service.Terminal{ID: "terminal-2", OperatorID: "operator-2"}
