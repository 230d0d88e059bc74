package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bagtrack/bagtrack-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// maxDeliveries is how many times a failing message is handled before it is
// rejected to the DLQ
const maxDeliveries = 3

// headerAttempts counts failed deliveries on a republished message
const headerAttempts = "x-attempts"

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
	// republish puts a failed message back on the queue. Defaults to the
	// broker's default exchange routed by queue name.
	republish func(ctx context.Context, queue string, msg amqp.Publishing) error
}

// NewConsumer creates a new consumer for the given queue
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return newConsumer(rmq, queueName, log), nil
}

func newConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) *Consumer {
	c := &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}
	c.republish = c.publishToQueue
	return c
}

func (c *Consumer) publishToQueue(ctx context.Context, queue string, msg amqp.Publishing) error {
	return c.rmq.Channel().PublishWithContext(ctx, "", queue, false, false, msg)
}

// Subscribe subscribes to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start starts consuming messages from the queue
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Str("queue", c.queueName).Msg("message channel closed")
					return
				}
				c.handleMessage(ctx, msg)
			}
		}
	}()

	return nil
}

// Dispatch routes a decoded event to its handler. Events without a handler
// are ignored.
func (c *Consumer) Dispatch(ctx context.Context, event *Event) error {
	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		return nil
	}

	c.logger.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Str("correlation_id", event.CorrelationID).
		Msg("processing event")

	return handler(WithCorrelationID(ctx, event.CorrelationID), event)
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		// Malformed messages go straight to the DLQ
		msg.Reject(false)
		return
	}

	if err := c.Dispatch(ctx, &event); err != nil {
		attempts := getRetryCount(msg) + 1
		c.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Int("attempt", attempts).
			Msg("failed to process event")

		if attempts >= maxDeliveries {
			msg.Reject(false)
			return
		}
		c.retry(ctx, msg, attempts)
		return
	}

	msg.Ack(false)
}

// retry republishes msg carrying its attempt count and acks the original
func (c *Consumer) retry(ctx context.Context, msg amqp.Delivery, attempts int) {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[headerAttempts] = int32(attempts)

	err := c.republish(ctx, c.queueName, amqp.Publishing{
		Headers:       headers,
		ContentType:   msg.ContentType,
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.MessageId,
		Type:          msg.Type,
		AppId:         msg.AppId,
		Timestamp:     msg.Timestamp,
		CorrelationId: msg.CorrelationId,
		Body:          msg.Body,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("queue", c.queueName).Msg("failed to republish event, requeueing")
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

// getRetryCount reads how many failed attempts a delivery has behind it
func getRetryCount(msg amqp.Delivery) int {
	switch n := msg.Headers[headerAttempts].(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}
