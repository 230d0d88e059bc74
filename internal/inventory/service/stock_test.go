package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/service"
	"github.com/bagtrack/bagtrack-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levelFor(levels []domain.StockLevel, category domain.StockCategory, partyID string) *domain.StockLevel {
	for i := range levels {
		if levels[i].Category == category && levels[i].PartyID == partyID {
			return &levels[i]
		}
	}
	return nil
}

func TestStock_Recompute(t *testing.T) {
	env := newTestEnv(t, testutil.ClockAt(2025, time.January, 23, 12, 0))
	ctx := context.Background()

	bags := env.createImportBags(t, env.createImport(t, testutil.PartyAcme), 3)
	env.createGradedBags(t, testutil.PartyAcme, 2)
	env.createGradedBags(t, testutil.PartyGlobex, 4)

	_, err := env.scan.Scan(ctx, terminal1, bags[0].Barcode)
	require.NoError(t, err)

	levels, err := env.stock.Recompute(ctx, service.Scope{})
	require.NoError(t, err)
	require.Len(t, levels, 4)

	imported := levelFor(levels, domain.StockImport, testutil.PartyAcme)
	require.NotNil(t, imported)
	assert.Equal(t, 2, imported.Bags)
	assert.Equal(t, testutil.Weight50kg, imported.WeightID)
	assert.Empty(t, imported.ItemID)

	inProcess := levelFor(levels, domain.StockInProcess, testutil.PartyAcme)
	require.NotNil(t, inProcess)
	assert.Equal(t, 1, inProcess.Bags)

	graded := levelFor(levels, domain.StockGraded, testutil.PartyAcme)
	require.NotNil(t, graded)
	assert.Equal(t, 2, graded.Bags)
	assert.Equal(t, testutil.ItemCotton, graded.ItemID)
	assert.Equal(t, testutil.GradeA, graded.GradeID)

	stored, err := env.stock.Levels(ctx, service.Scope{PartyID: testutil.PartyGlobex})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 4, stored[0].Bags)
	assert.False(t, stored[0].ComputedAt.IsZero())
}

func TestStock_RecomputeOneParty(t *testing.T) {
	env := newTestEnv(t, testutil.ClockAt(2025, time.January, 23, 12, 0))
	ctx := context.Background()

	env.createGradedBags(t, testutil.PartyAcme, 2)
	env.createGradedBags(t, testutil.PartyGlobex, 1)

	_, err := env.stock.Recompute(ctx, service.Scope{})
	require.NoError(t, err)

	env.createGradedBags(t, testutil.PartyAcme, 1)
	env.createGradedBags(t, testutil.PartyGlobex, 1)

	levels, err := env.stock.Recompute(ctx, service.Scope{PartyID: testutil.PartyAcme})
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, 3, levels[0].Bags)

	// Globex keeps its previous snapshot
	stored, err := env.stock.Levels(ctx, service.Scope{PartyID: testutil.PartyGlobex})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 1, stored[0].Bags)
}

func TestStock_EmptyStore(t *testing.T) {
	env := newTestEnv(t, testutil.ClockAt(2025, time.January, 23, 12, 0))

	levels, err := env.stock.Levels(context.Background(), service.Scope{})
	require.NoError(t, err)
	assert.NotNil(t, levels)
	assert.Empty(t, levels)
}
