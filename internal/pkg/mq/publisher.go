package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	ErrPublishNacked  = errors.New("message was nacked by broker")
	ErrConfirmTimeout = errors.New("broker confirmation timed out")
	ErrConfirmsClosed = errors.New("confirmation channel closed")
)

// DefaultConfirmTimeout bounds the wait for a broker ack per publish.
const DefaultConfirmTimeout = 5 * time.Second

// ConfirmingPublisher publishes persistent JSON messages with publisher
// confirms enabled. Publish returns nil only after the broker acked the
// message, which is what lets the relay stamp published_at truthfully.
type ConfirmingPublisher struct {
	ch         *amqp.Channel
	confirms   chan amqp.Confirmation
	exchange   string
	routingKey string
	timeout    time.Duration
	mu         sync.Mutex
}

// NewConfirmingPublisher puts the channel into confirm mode. The channel
// must be dedicated to this publisher.
func NewConfirmingPublisher(ch *amqp.Channel, exchange, routingKey string, timeout time.Duration) (*ConfirmingPublisher, error) {
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &ConfirmingPublisher{
		ch:         ch,
		confirms:   ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		exchange:   exchange,
		routingKey: routingKey,
		timeout:    timeout,
	}, nil
}

// Publish sends one message and waits for the broker's confirmation.
// Publishes are serialized so confirmations pair with their message.
func (p *ConfirmingPublisher) Publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			return ErrConfirmsClosed
		}
		if !confirm.Ack {
			return ErrPublishNacked
		}
		return nil
	case <-time.After(p.timeout):
		return ErrConfirmTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
