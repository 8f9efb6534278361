package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"leafline/internal/domain"
)

// PendingPayment is the message body for an order whose payment could not be
// verified during checkout.
type PendingPayment struct {
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Total         decimal.Decimal `json:"total"`
	CustomerEmail string          `json:"customer_email"`
	PlacedAt      string          `json:"placed_at"`
	QueuedAt      time.Time       `json:"queued_at"`
}

func NewPendingPayment(o domain.Order, now time.Time) PendingPayment {
	return PendingPayment{
		OrderID:       o.ID,
		TransactionID: o.TransactionID,
		Total:         o.Total,
		CustomerEmail: o.CustomerEmail,
		PlacedAt:      o.CreatedAt,
		QueuedAt:      now.UTC(),
	}
}

// Publisher sends pending-payment messages to a durable queue.
type Publisher struct {
	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	queueName string
}

func NewPublisher(url, queueName string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	p := &Publisher{conn: conn, queueName: queueName}
	if err := p.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		p.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	p.ch = ch
	return nil
}

// PublishPending queues o for asynchronous payment verification.
func (p *Publisher) PublishPending(ctx context.Context, o domain.Order) error {
	body, err := json.Marshal(NewPendingPayment(o, time.Now()))
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.openChannel(); err != nil {
			return err
		}
	}
	err = p.ch.PublishWithContext(ctx,
		"",          // exchange
		p.queueName, // routing key (queue name)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    o.TransactionID,
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish order %s: %w", o.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	return p.conn.Close()
}
