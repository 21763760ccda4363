package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nanba/pharmacy-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultMaxRetries is how often a failing event is redelivered before it
	// is dead-lettered
	DefaultMaxRetries = 3

	retryHeader = "x-retry-count"
)

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

type binding struct {
	exchange   string
	routingKey string
}

// Consumer drains one durable queue and dispatches events by type.
// A handler error re-publishes the delivery to the back of the queue with
// an incremented retry header; once the budget is spent the delivery is
// rejected into the dead letter exchange.
type Consumer struct {
	rmq        *RabbitMQ
	queueName  string
	handlers   map[string]MessageHandler
	bindings   []binding
	maxRetries int
	logger     *logger.Logger

	// retry re-publishes a failed delivery; replaced in tests
	retry func(ctx context.Context, msg amqp.Delivery, attempt int) error
}

// NewConsumer declares queueName and returns a consumer for it
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	c := &Consumer{
		rmq:        rmq,
		queueName:  queueName,
		handlers:   make(map[string]MessageHandler),
		maxRetries: DefaultMaxRetries,
		logger:     log.WithComponent("consumer"),
	}
	c.retry = c.republish
	return c, nil
}

// Subscribe binds the queue to exchange with a routing key pattern. The
// binding is replayed after a reconnect.
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	c.bindings = append(c.bindings, binding{exchange: exchange, routingKey: routingKeyPattern})

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

// Start begins consuming in a background goroutine that runs until ctx is
// cancelled. A dropped connection is re-established and the queue rebound.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.consume()
	if err != nil {
		return err
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go c.run(ctx, msgs)
	return nil
}

func (c *Consumer) consume() (<-chan amqp.Delivery, error) {
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
		return nil, fmt.Errorf("failed to start consuming %s: %w", c.queueName, err)
	}
	return msgs, nil
}

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
			return
		case msg, ok := <-msgs:
			if ok {
				c.handleMessage(ctx, msg)
				continue
			}
			if ctx.Err() != nil {
				return
			}

			c.logger.Warn().Str("queue", c.queueName).Msg("delivery channel closed, reconnecting")
			next, err := c.resume(ctx)
			if err != nil {
				c.logger.Error().Err(err).Str("queue", c.queueName).Msg("consumer gave up")
				return
			}
			msgs = next
		}
	}
}

// resume reconnects, then redeclares and rebinds the queue
func (c *Consumer) resume(ctx context.Context) (<-chan amqp.Delivery, error) {
	if err := c.rmq.Reconnect(ctx); err != nil {
		return nil, err
	}
	if _, err := c.rmq.DeclareQueue(c.queueName); err != nil {
		return nil, fmt.Errorf("failed to redeclare queue %s: %w", c.queueName, err)
	}
	for _, b := range c.bindings {
		if err := c.rmq.BindQueue(c.queueName, b.exchange, b.routingKey); err != nil {
			return nil, fmt.Errorf("failed to rebind queue: %w", err)
		}
	}
	return c.consume()
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Str("queue", c.queueName).Msg("failed to unmarshal event")
		// Malformed bodies go straight to the DLQ
		msg.Reject(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)
	log := c.logger.WithCorrelationID(event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		log.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		msg.Ack(false)
		return
	}

	log.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Msg("processing event")

	err := handler(ctx, &event)
	if err == nil {
		msg.Ack(false)
		return
	}

	attempt := retryCount(msg)
	failure := log.Error().
		Err(err).
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Int("retry_count", attempt)

	if attempt >= c.maxRetries {
		failure.Msg("failed to process event, retries exhausted, sending to DLQ")
		msg.Reject(false)
		return
	}
	failure.Msg("failed to process event, scheduling retry")

	if err := c.retry(ctx, msg, attempt+1); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("failed to re-publish event, requeueing")
		msg.Nack(false, true)
		return
	}
	msg.Ack(false)
}

// republish sends a copy of msg to the back of the queue through the
// default exchange
func (c *Consumer) republish(ctx context.Context, msg amqp.Delivery, attempt int) error {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryHeader] = int32(attempt)

	return c.rmq.Channel().PublishWithContext(ctx,
		"",          // default exchange
		c.queueName, // routing key
		false,
		false,
		amqp.Publishing{
			Headers:       headers,
			ContentType:   msg.ContentType,
			DeliveryMode:  amqp.Persistent,
			MessageId:     msg.MessageId,
			CorrelationId: msg.CorrelationId,
			Timestamp:     msg.Timestamp,
			Type:          msg.Type,
			AppId:         msg.AppId,
			Body:          msg.Body,
		},
	)
}

// retryCount reads the retry header written by republish
func retryCount(msg amqp.Delivery) int {
	switch n := msg.Headers[retryHeader].(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	}
	return 0
}
