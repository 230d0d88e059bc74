//go:build integration

package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/consumers"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/events"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/repository"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/service"
	"github.com/bagtrack/bagtrack-backend/pkg/config"
	"github.com/bagtrack/bagtrack-backend/pkg/database"
	"github.com/bagtrack/bagtrack-backend/pkg/errors"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/bagtrack/bagtrack-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startPostgres(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testutil.NewPostgresContainer(ctx, testutil.DefaultPostgresConfig())
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	db, err := container.Database(ctx, repository.Migrations(config.DriverPostgres))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgres_ConcurrentIssuance(t *testing.T) {
	testutil.SkipIfShort(t)
	db := startPostgres(t)
	ctx := testutil.DefaultTestContext(t)
	log := logger.Nop()
	clk := testutil.ClockAt(2025, time.January, 23, 10, 0)

	units := repository.NewUnitRepository(db)
	sequencer := service.NewSequencer(db, units, clk, testutil.WarehouseLocation(), log)
	lifecycle := service.NewLifecycleService(
		db, units, repository.NewImportRepository(db), sequencer,
		events.NewUnitEventPublisher(testutil.NewMockPublisher(), log),
		clk, service.LifecycleConfig{}, log,
	)

	imp, err := lifecycle.CreateImport(ctx, service.ImportSpec{PartyID: testutil.PartyAcme})
	require.NoError(t, err)

	const workers, perWorker = 10, 7

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
		errs = make(chan error, workers)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := lifecycle.CreateBulk(ctx, service.UnitSpec{
				Kind:     domain.KindImportBag,
				ImportID: imp.ID,
				WeightID: testutil.Weight50kg,
			}, perWorker)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, u := range created {
				seen[u.Core().Barcode] = true
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, seen, workers*perWorker)
	for i := 1; i <= workers*perWorker; i++ {
		assert.True(t, seen[fmt.Sprintf("I250123%04d", i)], "missing suffix %d", i)
	}
}

func TestPostgres_ConcurrentEventDrivenStock(t *testing.T) {
	testutil.SkipIfShort(t)
	db := startPostgres(t)
	ctx := testutil.DefaultTestContext(t)
	log := logger.Nop()
	clk := testutil.ClockAt(2025, time.January, 23, 10, 0)

	// Wired the way the service runs without a broker: every committed
	// batch recomputes the party's stock synchronously
	stock := service.NewStockService(db, repository.NewStockRepository(db), clk, log)
	dispatcher := events.NewLocalDispatcher("inventory-service")
	consumers.NewStockEventConsumer(stock, log).Register(dispatcher)

	units := repository.NewUnitRepository(db)
	sequencer := service.NewSequencer(db, units, clk, testutil.WarehouseLocation(), log)
	lifecycle := service.NewLifecycleService(
		db, units, repository.NewImportRepository(db), sequencer,
		events.NewUnitEventPublisher(dispatcher, log),
		clk, service.LifecycleConfig{}, log,
	)

	imp, err := lifecycle.CreateImport(ctx, service.ImportSpec{PartyID: testutil.PartyAcme})
	require.NoError(t, err)

	const workers, perWorker = 8, 5

	var wg sync.WaitGroup
	errs := make(chan error, 2*workers)
	for w := 0; w < workers; w++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := lifecycle.CreateBulk(ctx, service.UnitSpec{
				Kind:     domain.KindImportBag,
				ImportID: imp.ID,
				WeightID: testutil.Weight50kg,
			}, perWorker)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := lifecycle.CreateBulk(ctx, gradedSpec(testutil.PartyAcme), perWorker)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	levels, err := stock.Levels(ctx, service.Scope{PartyID: testutil.PartyAcme})
	require.NoError(t, err)

	byCategory := map[domain.StockCategory]int{}
	for _, l := range levels {
		byCategory[l.Category] += l.Bags
	}
	assert.Equal(t, workers*perWorker, byCategory[domain.StockImport])
	assert.Equal(t, workers*perWorker, byCategory[domain.StockGraded])
	assert.Zero(t, byCategory[domain.StockInProcess])
}

func TestPostgres_ConstraintsMapToAppErrors(t *testing.T) {
	testutil.SkipIfShort(t)
	db := startPostgres(t)
	ctx := testutil.DefaultTestContext(t)

	_, err := db.ExecContext(ctx, `
		INSERT INTO units (id, kind, barcode, created_on, party_id, weight_id, status, created_at, updated_at)
		VALUES (gen_random_uuid(), 'graded_bag', 'G2501230001', '2025-01-23', 'p', 'w', 'opened', NOW(), NOW())
	`)
	require.Error(t, err)
	mapped := database.MapConstraintError(err)
	require.NotNil(t, mapped)
	assert.True(t, errors.Is(mapped, errors.ErrValidation))
	assert.Contains(t, mapped.Details, "status")

	_, err = db.ExecContext(ctx, `
		INSERT INTO units (id, kind, barcode, created_on, party_id, weight_id, created_at, updated_at)
		VALUES (gen_random_uuid(), 'graded_bag', 'G25012300', '2025-01-23', 'p', 'w', NOW(), NOW())
	`)
	require.Error(t, err)
	mapped = database.MapConstraintError(err)
	require.NotNil(t, mapped)
	assert.Contains(t, mapped.Details, "barcode")
}
