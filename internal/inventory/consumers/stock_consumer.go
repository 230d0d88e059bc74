package consumers

import (
	"context"

	"github.com/bagtrack/bagtrack-backend/internal/inventory/service"
	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	"github.com/bagtrack/bagtrack-backend/pkg/messaging"
)

// StockQueue is the durable queue feeding the stock read model
const StockQueue = "inventory-service.stock"

// Registrar accepts event handlers. messaging.Consumer and
// events.LocalDispatcher both satisfy it.
type Registrar interface {
	RegisterHandler(eventType string, handler messaging.MessageHandler)
}

// StockEventConsumer recomputes party stock when units are created or change status
type StockEventConsumer struct {
	stock  *service.StockService
	logger *logger.Logger
}

// NewStockEventConsumer creates a new stock event consumer
func NewStockEventConsumer(stock *service.StockService, log *logger.Logger) *StockEventConsumer {
	return &StockEventConsumer{
		stock:  stock,
		logger: log.WithComponent("stock-consumer"),
	}
}

// Register attaches the consumer's handlers to r
func (c *StockEventConsumer) Register(r Registrar) {
	r.RegisterHandler(messaging.EventUnitsCreated, c.handleUnitsCreated)
	r.RegisterHandler(messaging.EventUnitStatusChanged, c.handleStatusChanged)
}

// StartRabbitMQ declares the stock queue, binds it to unit events and starts consuming
func (c *StockEventConsumer) StartRabbitMQ(ctx context.Context, rmq *messaging.RabbitMQ) error {
	consumer, err := messaging.NewConsumer(rmq, StockQueue, c.logger)
	if err != nil {
		return err
	}

	for _, key := range []string{messaging.EventUnitsCreated, messaging.EventUnitStatusChanged} {
		if err := consumer.Subscribe(messaging.ExchangeInventoryEvents, key); err != nil {
			return err
		}
	}

	c.Register(consumer)
	return consumer.Start(ctx)
}

func (c *StockEventConsumer) handleUnitsCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.UnitsCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Debug().
		Str("party_id", data.PartyID).
		Int("count", len(data.UnitIDs)).
		Msg("received units created event")

	_, err := c.stock.Recompute(ctx, service.Scope{PartyID: data.PartyID})
	return err
}

func (c *StockEventConsumer) handleStatusChanged(ctx context.Context, event *messaging.Event) error {
	var data messaging.UnitStatusChangedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Debug().
		Str("barcode", data.Barcode).
		Str("to", data.ToStatus).
		Msg("received status changed event")

	_, err := c.stock.Recompute(ctx, service.Scope{PartyID: data.PartyID})
	return err
}
