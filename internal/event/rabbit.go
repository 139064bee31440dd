package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cmcp0/torreai-new-screening-process-approach/internal/domain"
)

// DefaultQueue is the durable work queue carrying all screening events.
const DefaultQueue = "screening.events"

// reconnectBackoff is the pause between consumer reconnect attempts.
const reconnectBackoff = 5 * time.Second

// Compile-time check that *RabbitPublisher satisfies [Publisher].
var _ Publisher = (*RabbitPublisher)(nil)

// RabbitPublisher publishes domain events to a durable RabbitMQ work queue
// with persistent delivery, and runs a consumer loop that dispatches incoming
// envelopes to a [Dispatcher].
//
// Publishing opens a connection per call; the consumer keeps its connection
// open for the duration of the loop and reconnects with a fixed backoff.
type RabbitPublisher struct {
	url        string
	queue      string
	dispatcher *Dispatcher
}

// NewRabbitPublisher returns a publisher for the broker at url. An empty
// queue name selects [DefaultQueue].
func NewRabbitPublisher(url, queue string, d *Dispatcher) *RabbitPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RabbitPublisher{url: url, queue: queue, dispatcher: d}
}

// Publish serialises e to its envelope and enqueues it with persistent
// delivery. Connection and channel failures are reported as
// [ErrBrokerUnavailable].
func (p *RabbitPublisher) Publish(ctx context.Context, e domain.Event) error {
	body, err := Marshal(e)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrBrokerUnavailable, err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: channel: %v", ErrBrokerUnavailable, err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: declare %q: %v", ErrBrokerUnavailable, p.queue, err)
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("%w: publish: %v", ErrBrokerUnavailable, err)
	}
	return nil
}

// Ping dials the broker and closes the connection again. Used by the
// readiness probe.
func (p *RabbitPublisher) Ping(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			done <- fmt.Errorf("%w: dial: %v", ErrBrokerUnavailable, err)
			return
		}
		conn.Close()
		done <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Consume runs the consumer loop until ctx is cancelled. It declares the
// durable queue, sets prefetch to 1, and for each delivery decodes the
// envelope and dispatches it; on success the delivery is acked, on any
// handler failure it is nacked with requeue. Connection errors trigger a
// reconnect after [reconnectBackoff].
func (p *RabbitPublisher) Consume(ctx context.Context) error {
	for {
		if err := p.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("consumer connection error, reconnecting", "queue", p.queue, "err", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectBackoff):
		}
	}
}

// consumeOnce holds one broker connection open and processes deliveries
// until ctx is cancelled or the connection drops.
func (p *RabbitPublisher) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("event: consumer dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("event: consumer channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("event: consumer declare %q: %w", p.queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("event: consumer qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, p.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("event: consume %q: %w", p.queue, err)
	}

	slog.Info("event consumer started", "queue", p.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("event: delivery channel closed")
			}
			p.handleDelivery(ctx, d)
		}
	}
}

// handleDelivery decodes and dispatches one delivery, acking on success and
// nacking with requeue on any failure. Subscribers run synchronously here to
// preserve acknowledgment ordering.
func (p *RabbitPublisher) handleDelivery(ctx context.Context, d amqp.Delivery) {
	e, err := Unmarshal(d.Body)
	if err != nil {
		slog.Error("consumer failed to decode envelope", "err", err)
		_ = d.Nack(false, true)
		return
	}

	if err := p.dispatcher.DispatchStrict(ctx, e); err != nil {
		slog.Error("consumer handler failed", "kind", e.Kind(), "err", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
