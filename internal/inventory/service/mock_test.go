package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/events"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/repository"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/service"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/bagtrack/bagtrack-backend/pkg/messaging"
	"github.com/bagtrack/bagtrack-backend/pkg/testutil"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Postgres-dialect tests: these pin the SQL the services issue.

func newMockLifecycle(t *testing.T, cfg service.LifecycleConfig) (*testutil.MockDB, *service.Sequencer, *service.LifecycleService, *testutil.MockPublisher) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	clk := testutil.ClockAt(2025, time.January, 23, 10, 0)
	log := logger.Nop()
	published := testutil.NewMockPublisher()
	units := repository.NewUnitRepository(mockDB.DB)
	sequencer := service.NewSequencer(mockDB.DB, units, clk, testutil.WarehouseLocation(), log)
	lifecycle := service.NewLifecycleService(
		mockDB.DB, units, repository.NewImportRepository(mockDB.DB), sequencer,
		events.NewUnitEventPublisher(published, log), clk, cfg, log,
	)
	return mockDB, sequencer, lifecycle, published
}

func expectIssuance(m *testutil.MockDB, prefix, kind, last string) {
	m.ExpectAdvisoryLock(prefix)
	rows := testutil.MockRows("barcode")
	if last != "" {
		rows.AddRow(last)
	}
	m.ExpectQuery("SELECT barcode FROM units WHERE kind = $1 AND barcode LIKE $2").
		WithArgs(kind, prefix+"%").
		WillReturnRows(rows)
}

func TestSequencer_ReserveTakesDayLock(t *testing.T) {
	mockDB, sequencer, _, _ := newMockLifecycle(t, service.LifecycleConfig{})
	ctx := context.Background()

	mockDB.ExpectBegin()
	expectIssuance(mockDB, "G250123", "graded_bag", "G2501230007")
	mockDB.ExpectCommit()

	var barcodes []string
	err := mockDB.DB.Transaction(ctx, func(tx *sqlx.Tx) error {
		var err error
		barcodes, err = sequencer.Reserve(ctx, tx, domain.KindGradedBag, sequencer.Today(), 2)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"G2501230008", "G2501230009"}, barcodes)
	mockDB.ExpectationsWereMet(t)
}

func TestLifecycle_CreateRetriesOnBarcodeCollision(t *testing.T) {
	mockDB, _, lifecycle, published := newMockLifecycle(t, service.LifecycleConfig{})
	collision := &pq.Error{Code: "23505", Constraint: "units_kind_barcode_key"}

	// A concurrent writer took 0001 between our read and insert
	mockDB.ExpectBegin()
	expectIssuance(mockDB, "G250123", "graded_bag", "")
	mockDB.ExpectExec("INSERT INTO units").WillReturnError(collision)
	mockDB.ExpectRollback()

	mockDB.ExpectBegin()
	expectIssuance(mockDB, "G250123", "graded_bag", "G2501230001")
	mockDB.ExpectExec("INSERT INTO units").
		WithArgs(testutil.AnyUUID{}, "graded_bag", "G2501230002", "2025-01-23", sqlmock.AnyArg(),
			testutil.PartyAcme, testutil.Weight25kg, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), 1, testutil.AnyTime{}, testutil.AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	u, err := lifecycle.Create(context.Background(), gradedSpec(testutil.PartyAcme))
	require.NoError(t, err)
	assert.Equal(t, "G2501230002", u.Core().Barcode)
	published.AssertEventPublished(t, messaging.EventUnitsCreated)
	mockDB.ExpectationsWereMet(t)
}

func TestLifecycle_CreateGivesUpAfterRetries(t *testing.T) {
	mockDB, _, lifecycle, published := newMockLifecycle(t, service.LifecycleConfig{MaxCreateRetries: 1})
	collision := &pq.Error{Code: "23505", Constraint: "units_kind_barcode_key"}

	for i := 0; i < 2; i++ {
		mockDB.ExpectBegin()
		expectIssuance(mockDB, "G250123", "graded_bag", "")
		mockDB.ExpectExec("INSERT INTO units").WillReturnError(collision)
		mockDB.ExpectRollback()
	}

	_, err := lifecycle.Create(context.Background(), gradedSpec(testutil.PartyAcme))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	published.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestLifecycle_SetStatusRereadsOnMiss(t *testing.T) {
	mockDB, _, lifecycle, published := newMockLifecycle(t, service.LifecycleConfig{})
	id := uuid.New().String()
	importID := uuid.New().String()
	now := time.Date(2025, time.January, 23, 4, 30, 0, 0, time.UTC)

	bag := &domain.ImportBag{
		UnitBase: domain.UnitBase{
			ID:        id,
			Kind:      domain.KindImportBag,
			Barcode:   "I2501230001",
			CreatedOn: "2025-01-23",
			PartyID:   testutil.PartyAcme,
			WeightID:  testutil.Weight50kg,
			Version:   1,
		},
		ImportID: importID,
		Status:   domain.StatusUnopened,
	}

	mockDB.ExpectBegin()
	mockDB.ExpectExec("UPDATE units").
		WithArgs("opened", testutil.AnyTime{}, id, "import_bag", "unopened").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectCommit()

	rows := testutil.MockRows("id", "kind", "barcode", "created_on", "import_id", "party_id", "weight_id",
		"item_id", "grade_id", "section_id", "status", "version", "created_at", "updated_at").
		AddRow(id, "import_bag", "I2501230001", "2025-01-23", importID, testutil.PartyAcme, testutil.Weight50kg,
			nil, nil, nil, "opened", 2, now, now)
	mockDB.ExpectQuery("FROM units WHERE id = $1").WithArgs(id).WillReturnRows(rows)

	res, err := lifecycle.SetStatus(context.Background(), bag, domain.StatusOpened, domain.SourceScan, operator)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, domain.StatusOpened, res.Bag.Status)
	assert.Equal(t, 2, res.Bag.Version)
	published.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestStock_RecomputeLocksBeforeAggregating(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	clk := testutil.ClockAt(2025, time.January, 23, 10, 0)
	stock := service.NewStockService(mockDB.DB, repository.NewStockRepository(mockDB.DB), clk, logger.Nop())

	mockDB.ExpectBegin()
	// One key for every scope, taken before the units are read
	mockDB.ExpectAdvisoryLock("stock_levels")
	mockDB.ExpectQuery("FROM units WHERE party_id = $1").
		WithArgs(testutil.PartyAcme).
		WillReturnRows(testutil.MockRows("category", "party_id", "item_id", "grade_id", "weight_id", "bags").
			AddRow("import", testutil.PartyAcme, "", "", testutil.Weight50kg, 3))
	mockDB.ExpectExec("DELETE FROM stock_levels WHERE party_id = $1").
		WithArgs(testutil.PartyAcme).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectExec("INSERT INTO stock_levels").
		WithArgs("import", testutil.PartyAcme, "", "", testutil.Weight50kg, 3, testutil.AnyTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mockDB.ExpectCommit()

	levels, err := stock.Recompute(context.Background(), service.Scope{PartyID: testutil.PartyAcme})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, 3, levels[0].Bags)
	mockDB.ExpectationsWereMet(t)
}

func TestStock_RecomputeAllPartiesUsesSameLock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	clk := testutil.ClockAt(2025, time.January, 23, 10, 0)
	stock := service.NewStockService(mockDB.DB, repository.NewStockRepository(mockDB.DB), clk, logger.Nop())

	mockDB.ExpectBegin()
	mockDB.ExpectAdvisoryLock("stock_levels")
	mockDB.ExpectQuery("FROM units").
		WillReturnRows(testutil.MockRows("category", "party_id", "item_id", "grade_id", "weight_id", "bags"))
	mockDB.ExpectExec("DELETE FROM stock_levels").WillReturnResult(sqlmock.NewResult(0, 0))
	mockDB.ExpectCommit()

	levels, err := stock.Recompute(context.Background(), service.Scope{})
	require.NoError(t, err)
	assert.Empty(t, levels)
	mockDB.ExpectationsWereMet(t)
}
