package mq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/renewalworks/billingd/internal/pkg/billing"
)

// HandlerFunc processes one delivery body. Returning an error wrapped in
// billing.ErrInvalidEvent marks the message permanently unprocessable.
type HandlerFunc func(ctx context.Context, body []byte) error

// retryCountHeader tracks how many extra deliveries this message has had.
// The consumer bumps it when it re-enqueues a transiently failed message.
const retryCountHeader = "x-retry-count"

type disposition int

const (
	dispositionAck disposition = iota
	dispositionRetry
	dispositionDeadLetter
)

// Consumer pulls renewal events off the main queue with a pool of worker
// goroutines. Redelivery of transient failures is bounded: after
// MaxDeliveries attempts the message is rejected without requeue, which
// dead-letters it to the DLQ. Invalid payloads go there immediately.
type Consumer struct {
	ch      *amqp.Channel
	cfg     Config
	handler HandlerFunc
	wg      sync.WaitGroup

	// republish schedules a counted retry. The original delivery is acked
	// only after this returns nil, keeping the pipeline at-least-once.
	republish func(ctx context.Context, d amqp.Delivery, attempts int) error
	confirms  chan amqp.Confirmation
	pubMu     sync.Mutex
}

// NewConsumer creates a consumer bound to a dedicated channel.
func NewConsumer(ch *amqp.Channel, cfg Config, handler HandlerFunc) *Consumer {
	c := &Consumer{ch: ch, cfg: cfg, handler: handler}
	c.republish = c.reenqueue
	return c
}

// Start begins consuming with prefetch equal to the worker count. The channel
// is put into confirm mode so counted retries are acknowledged by the broker
// before the original delivery is acked away. It returns once the workers are
// running; cancel the context to stop them.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.ch.Confirm(false); err != nil {
		return err
	}
	c.confirms = c.ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	if err := c.ch.Qos(c.cfg.Workers, 0, false); err != nil {
		return err
	}
	deliveries, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Infof("[Consumer] Starting %d workers on queue %s", c.cfg.Workers, c.cfg.Queue)
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, deliveries)
	}
	return nil
}

// Wait blocks until all workers have exited.
func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) worker(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Infof("[Consumer] Worker %d stopping", id)
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Infof("[Consumer] Worker %d: delivery channel closed", id)
				return
			}
			c.handle(ctx, id, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, id int, d amqp.Delivery) {
	err := c.handler(ctx, d.Body)
	attempts := retryCount(d.Headers) + 1

	switch decide(err, attempts, c.cfg.MaxDeliveries) {
	case dispositionAck:
		_ = d.Ack(false)
	case dispositionDeadLetter:
		log.Errorf("[Consumer] Worker %d dead-lettering after %d attempts: %v", id, attempts, err)
		_ = d.Nack(false, false)
	case dispositionRetry:
		log.Errorf("[Consumer] Worker %d attempt %d/%d failed, re-enqueueing: %v", id, attempts, c.cfg.MaxDeliveries, err)
		if perr := c.republish(ctx, d, attempts); perr != nil {
			// Could not place a confirmed counted retry; fall back to broker
			// requeue so the message is never dropped.
			log.Errorf("[Consumer] Worker %d re-enqueue failed: %v", id, perr)
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	}
}

// reenqueue publishes a copy of the delivery back onto the main queue with a
// bumped retry counter and waits for the broker to confirm it; only then may
// the caller ack the original. Routing through the default exchange targets
// the queue directly. Publishes are serialized so confirmations pair with
// their message.
func (c *Consumer) reenqueue(ctx context.Context, d amqp.Delivery, attempts int) error {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	err := c.ch.PublishWithContext(ctx, "", c.cfg.Queue, false, false, amqp.Publishing{
		Headers:      retryHeaders(d.Headers, attempts),
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		Body:         d.Body,
	})
	if err != nil {
		return err
	}

	select {
	case confirm, ok := <-c.confirms:
		if !ok {
			return ErrConfirmsClosed
		}
		if !confirm.Ack {
			return ErrPublishNacked
		}
		return nil
	case <-time.After(DefaultConfirmTimeout):
		return ErrConfirmTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryHeaders copies the delivery headers with the retry counter set to the
// attempt count just spent.
func retryHeaders(headers amqp.Table, attempts int) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}
	out[retryCountHeader] = int32(attempts)
	return out
}

// decide maps a handler outcome onto the delivery's fate. Invalid events can
// never succeed and are dead-lettered at once; other failures retry until
// the attempt budget is spent.
func decide(err error, attempts, maxDeliveries int) disposition {
	if err == nil {
		return dispositionAck
	}
	if errors.Is(err, billing.ErrInvalidEvent) {
		return dispositionDeadLetter
	}
	if attempts >= maxDeliveries {
		return dispositionDeadLetter
	}
	return dispositionRetry
}

// retryCount reads the retry counter header, tolerating the integer widths
// AMQP clients encode.
func retryCount(headers amqp.Table) int {
	v, ok := headers[retryCountHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
