package events

import (
	"context"
	"fmt"

	"github.com/bagtrack/bagtrack-backend/pkg/messaging"
)

// LocalDispatcher delivers events synchronously to in-process handlers.
// It stands in for RabbitMQ when the broker is disabled, using the same
// envelope and handler signature as messaging.Consumer.
type LocalDispatcher struct {
	source   string
	handlers map[string][]messaging.MessageHandler
}

// NewLocalDispatcher creates a dispatcher with no handlers
func NewLocalDispatcher(source string) *LocalDispatcher {
	return &LocalDispatcher{
		source:   source,
		handlers: make(map[string][]messaging.MessageHandler),
	}
}

// RegisterHandler adds a handler for an event type
func (d *LocalDispatcher) RegisterHandler(eventType string, handler messaging.MessageHandler) {
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Publish wraps data in an event envelope and runs every handler for its type
func (d *LocalDispatcher) Publish(ctx context.Context, eventType string, data any) error {
	handlers := d.handlers[eventType]
	if len(handlers) == 0 {
		return nil
	}

	event, err := messaging.NewEvent(eventType, d.source, messaging.CorrelationID(ctx), data)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			return fmt.Errorf("handler for %s failed: %w", eventType, err)
		}
	}
	return nil
}
