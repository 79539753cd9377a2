package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/backend-ledger/ledger-service/internal/events"
)

// Sender delivers one notification payload.
type Sender interface {
	Send(ctx context.Context, payload any) error
}

// Consumer consumes transfer-completed events from RabbitMQ and hands them to
// a Sender.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	sender  Sender
	logger  *zap.Logger
}

// NewConsumer connects to RabbitMQ, declares the exchange and queue, and
// binds them with the given routing key.
func NewConsumer(url, exchange, queue, routingKey string, sender Sender, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	declared, err := channel.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := channel.QueueBind(declared.Name, routingKey, exchange, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		queue:   declared.Name,
		sender:  sender,
		logger:  logger,
	}, nil
}

// Start consumes messages until the context is cancelled. Messages the sender
// rejects are nacked without requeue: notification delivery is best-effort
// and must never pile up behind a dead endpoint.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack, we ack manually
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("notification consumer started", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("notification consumer stopping")
			return nil

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			if err := c.handleMessage(ctx, msg); err != nil {
				c.logger.Warn("failed to deliver notification", zap.Error(err))
				msg.Nack(false, false)
			} else {
				msg.Ack(false)
			}
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) error {
	var event events.TransferCompletedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.EventType != events.EventTypeTransferCompleted {
		c.logger.Debug("ignoring event", zap.String("event_type", event.EventType))
		return nil
	}

	if err := c.sender.Send(ctx, event); err != nil {
		return err
	}

	c.logger.Info("transfer notification delivered",
		zap.String("transaction_id", event.TransactionID),
		zap.String("amount", event.Amount.Value),
	)
	return nil
}

// Close releases the channel and connection.
func (c *Consumer) Close() error {
	if err := c.channel.Close(); err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return c.conn.Close()
}
