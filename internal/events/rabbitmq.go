// Package events publishes ledger domain events to RabbitMQ. Publication
// happens strictly after the atomic unit commits and is best-effort: a lost
// event never undoes a committed transfer.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/backend-ledger/ledger-service/internal/domain"
)

// EventTypeTransferCompleted identifies the transfer-completed event.
const EventTypeTransferCompleted = "transfer.completed"

// TransferCompletedEvent is the wire shape of a committed transfer.
type TransferCompletedEvent struct {
	EventID              string `json:"eventId"`
	EventType            string `json:"eventType"`
	TransactionID        string `json:"transactionId"`
	SourceAccountID      string `json:"sourceAccountId"`
	DestinationAccountID string `json:"destinationAccountId"`
	Amount               Amount `json:"amount"`
	IdempotencyKey       string `json:"idempotencyKey"`
	Status               string `json:"status"`
	Timestamp            string `json:"timestamp"`
}

// Amount is a decimal value with its ISO 4217 currency code.
type Amount struct {
	Value        string `json:"value"`
	CurrencyCode string `json:"currencyCode"`
}

// RabbitMQPublisher implements domain.EventPublisher on a topic exchange.
type RabbitMQPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
}

// NewRabbitMQPublisher connects to RabbitMQ and declares the topic exchange.
func NewRabbitMQPublisher(url, exchange, routingKey string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQPublisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

// PublishTransferCompleted publishes a transfer-completed event for a
// COMPLETED transaction.
func (p *RabbitMQPublisher) PublishTransferCompleted(ctx context.Context, transaction *domain.Transaction) error {
	timestamp := transaction.CreatedAt
	if transaction.CompletedAt != nil {
		timestamp = *transaction.CompletedAt
	}

	event := TransferCompletedEvent{
		EventID:              uuid.New().String(),
		EventType:            EventTypeTransferCompleted,
		TransactionID:        transaction.ID.String(),
		SourceAccountID:      transaction.SourceAccountID.String(),
		DestinationAccountID: transaction.DestinationAccountID.String(),
		Amount: Amount{
			Value:        transaction.Amount.StringFixed(2),
			CurrencyCode: transaction.Currency,
		},
		IdempotencyKey: transaction.IdempotencyKey,
		Status:         string(transaction.Status),
		Timestamp:      timestamp.UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		p.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.EventID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return p.conn.Close()
}
