package events_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/internal/inventory/events"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/bagtrack/bagtrack-backend/pkg/messaging"
	"github.com/bagtrack/bagtrack-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bag(barcode string, status domain.Status) *domain.ImportBag {
	return &domain.ImportBag{
		UnitBase: domain.UnitBase{
			ID:        "unit-" + barcode,
			Kind:      domain.KindImportBag,
			Barcode:   barcode,
			CreatedOn: "2025-01-23",
			PartyID:   testutil.PartyAcme,
			WeightID:  testutil.Weight50kg,
		},
		ImportID: "import-1",
		Status:   status,
	}
}

func TestPublishUnitsCreated(t *testing.T) {
	sink := testutil.NewMockPublisher()
	p := events.NewUnitEventPublisher(sink, logger.Nop())

	p.PublishUnitsCreated(context.Background(), []domain.Unit{
		bag("I2501230001", domain.StatusUnopened),
		bag("I2501230002", domain.StatusUnopened),
	})

	evts := sink.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, messaging.EventUnitsCreated, evts[0].Type)

	data, ok := evts[0].Payload.(messaging.UnitsCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "import_bag", data.Kind)
	assert.Equal(t, testutil.PartyAcme, data.PartyID)
	assert.Equal(t, "import-1", data.ImportID)
	assert.Equal(t, []string{"I2501230001", "I2501230002"}, data.Barcodes)
	assert.Equal(t, []string{"unit-I2501230001", "unit-I2501230002"}, data.UnitIDs)

	p.PublishUnitsCreated(context.Background(), nil)
	assert.Len(t, sink.Events(), 1)
}

func TestPublishStatusChanged(t *testing.T) {
	sink := testutil.NewMockPublisher()
	p := events.NewUnitEventPublisher(sink, logger.Nop())
	at := time.Date(2025, time.January, 23, 5, 0, 0, 0, time.UTC)

	p.PublishStatusChanged(context.Background(), events.StatusChange{
		Bag:        bag("I2501230001", domain.StatusOpened),
		From:       domain.StatusUnopened,
		Source:     domain.SourceScan,
		ChangedBy:  "operator-1",
		TerminalID: "terminal-1",
		ChangedAt:  at,
	})

	sink.AssertEventPublished(t, messaging.EventUnitStatusChanged)
	data, ok := sink.Events()[0].Payload.(messaging.UnitStatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "unopened", data.FromStatus)
	assert.Equal(t, "opened", data.ToStatus)
	assert.Equal(t, "scan", data.Source)
	assert.Equal(t, "terminal-1", data.TerminalID)
	assert.Equal(t, at, data.ChangedAt)
}

func TestPublisher_FailuresAreSwallowed(t *testing.T) {
	sink := testutil.NewMockPublisher()
	sink.Err = fmt.Errorf("broker down")
	p := events.NewUnitEventPublisher(sink, logger.Nop())

	assert.NotPanics(t, func() {
		p.PublishUnitsCreated(context.Background(), []domain.Unit{bag("I2501230001", domain.StatusUnopened)})
	})

	var nilPublisher *events.UnitEventPublisher
	assert.NotPanics(t, func() {
		nilPublisher.PublishUnitsCreated(context.Background(), []domain.Unit{bag("I2501230001", domain.StatusUnopened)})
		nilPublisher.PublishStatusChanged(context.Background(), events.StatusChange{})
	})
}

func TestLocalDispatcher(t *testing.T) {
	d := events.NewLocalDispatcher("inventory-service")

	var got []messaging.UnitsCreatedEvent
	d.RegisterHandler(messaging.EventUnitsCreated, func(ctx context.Context, event *messaging.Event) error {
		assert.Equal(t, "inventory-service", event.Source)
		var data messaging.UnitsCreatedEvent
		if err := event.UnmarshalData(&data); err != nil {
			return err
		}
		got = append(got, data)
		return nil
	})

	p := events.NewUnitEventPublisher(d, logger.Nop())
	p.PublishUnitsCreated(context.Background(), []domain.Unit{bag("I2501230001", domain.StatusUnopened)})

	require.Len(t, got, 1)
	assert.Equal(t, []string{"I2501230001"}, got[0].Barcodes)

	// No handler registered for this type
	assert.NoError(t, d.Publish(context.Background(), messaging.EventUnitStatusChanged, messaging.UnitStatusChangedEvent{}))

	d.RegisterHandler(messaging.EventUnitStatusChanged, func(context.Context, *messaging.Event) error {
		return fmt.Errorf("stock store unavailable")
	})
	assert.Error(t, d.Publish(context.Background(), messaging.EventUnitStatusChanged, messaging.UnitStatusChangedEvent{}))
}
