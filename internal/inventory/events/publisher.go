package events

import (
	"context"
	"time"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/domain"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/bagtrack/bagtrack-backend/pkg/messaging"
)

// Sink delivers a typed event. *messaging.Publisher and *LocalDispatcher
// both satisfy it.
type Sink interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// UnitEventPublisher publishes unit lifecycle events after commit. Publish
// failures are logged and never fail the originating operation. A nil
// publisher is a no-op.
type UnitEventPublisher struct {
	sink   Sink
	logger *logger.Logger
}

// NewUnitEventPublisher creates a new unit event publisher
func NewUnitEventPublisher(sink Sink, log *logger.Logger) *UnitEventPublisher {
	return &UnitEventPublisher{
		sink:   sink,
		logger: log,
	}
}

// NewRabbitMQPublisher publishes unit events to the inventory exchange
func NewRabbitMQPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*UnitEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeInventoryEvents, "inventory-service", log)
	if err != nil {
		return nil, err
	}
	return NewUnitEventPublisher(publisher, log), nil
}

// PublishUnitsCreated publishes one event for a committed batch
func (p *UnitEventPublisher) PublishUnitsCreated(ctx context.Context, units []domain.Unit) {
	if p == nil || len(units) == 0 {
		return
	}

	first := units[0].Core()
	data := messaging.UnitsCreatedEvent{
		Kind:      string(first.Kind),
		PartyID:   first.PartyID,
		CreatedOn: first.CreatedOn,
		UnitIDs:   make([]string, 0, len(units)),
		Barcodes:  make([]string, 0, len(units)),
	}
	if bag, ok := units[0].(*domain.ImportBag); ok {
		data.ImportID = bag.ImportID
	}
	for _, u := range units {
		data.UnitIDs = append(data.UnitIDs, u.Core().ID)
		data.Barcodes = append(data.Barcodes, u.Core().Barcode)
	}

	if err := p.sink.Publish(ctx, messaging.EventUnitsCreated, data); err != nil {
		p.logger.Error().Err(err).
			Str("first_barcode", first.Barcode).
			Int("count", len(units)).
			Msg("failed to publish units created event")
	}
}

// StatusChange describes a committed import bag transition
type StatusChange struct {
	Bag        *domain.ImportBag
	From       domain.Status
	Source     domain.ChangeSource
	ChangedBy  string
	TerminalID string
	ChangedAt  time.Time
}

// PublishStatusChanged publishes a committed status transition
func (p *UnitEventPublisher) PublishStatusChanged(ctx context.Context, change StatusChange) {
	if p == nil {
		return
	}

	data := messaging.UnitStatusChangedEvent{
		UnitID:     change.Bag.ID,
		Barcode:    change.Bag.Barcode,
		PartyID:    change.Bag.PartyID,
		FromStatus: string(change.From),
		ToStatus:   string(change.Bag.Status),
		Source:     string(change.Source),
		ChangedBy:  change.ChangedBy,
		TerminalID: change.TerminalID,
		ChangedAt:  change.ChangedAt,
	}

	if err := p.sink.Publish(ctx, messaging.EventUnitStatusChanged, data); err != nil {
		p.logger.Error().Err(err).
			Str("barcode", change.Bag.Barcode).
			Msg("failed to publish status changed event")
	}
}
