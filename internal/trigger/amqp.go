package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the durable queue carrying refresh events.
const DefaultQueue = "availability.refresh"

// Event is the wire format of one refresh request published by the booking
// mutation layer.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Kind        Kind      `json:"kind"`
	RequestedAt time.Time `json:"requested_at"`
}

// Triggerer receives decoded refresh requests; in production it is the
// coalescing Worker.
type Triggerer interface {
	Trigger(kind Kind)
}

// Consumer reads refresh events from the broker and forwards them to the
// worker. Delivery is at-least-once: messages are acknowledged only after
// the trigger has been handed over, and duplicates are harmless because
// triggers coalesce.
type Consumer struct {
	url    string
	queue  string
	target Triggerer
	logger *slog.Logger
}

// NewConsumer creates a consumer for the given broker URL and queue. An
// empty queue name falls back to DefaultQueue.
func NewConsumer(url, queue string, target Triggerer, logger *slog.Logger) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{url: url, queue: queue, target: target, logger: logger}
}

// Run consumes until the context is cancelled, reconnecting with exponential
// backoff when the broker connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("broker dial failed", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consume loop ended, reconnecting", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(delivery)
		}
	}
}

func (c *Consumer) handle(delivery amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		c.logger.Warn("malformed refresh event rejected", "error", err)
		_ = delivery.Nack(false, false)
		return
	}
	c.target.Trigger(event.Kind)
	_ = delivery.Ack(false)
}

// Publisher sends refresh events. It exists for the booking mutation layer
// and for tests; the availability daemon itself only consumes.
type Publisher struct {
	url   string
	queue string
	now   func() time.Time
}

// NewPublisher creates a publisher for the given broker URL and queue.
func NewPublisher(url, queue string, now func() time.Time) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if now == nil {
		now = time.Now
	}
	return &Publisher{url: url, queue: queue, now: now}
}

// Publish sends one refresh event as a persistent message. A fresh
// connection per publish keeps the publisher stateless.
func (p *Publisher) Publish(ctx context.Context, kind Kind) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("broker dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	body, err := json.Marshal(Event{ID: uuid.New(), Kind: kind, RequestedAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
