package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Config describes the broker topology and consumer policy for the renewal
// pipeline.
type Config struct {
	URL           string
	Exchange      string
	RoutingKey    string
	Queue         string
	DLXExchange   string
	DLQ           string
	DLQRoutingKey string
	MaxDeliveries int
	Workers       int
}

// DefaultConfig returns the topology used by the billing pipeline.
func DefaultConfig(url string) Config {
	return Config{
		URL:           url,
		Exchange:      "billing.renewals",
		RoutingKey:    "renewal.requested",
		Queue:         "billing.renewals.main",
		DLXExchange:   "billing.renewals.dlx",
		DLQ:           "billing.renewals.dlq",
		DLQRoutingKey: "dlq",
		MaxDeliveries: 5,
		Workers:       5,
	}
}

// Client wraps one AMQP connection.
type Client struct {
	conn *amqp.Connection
}

// Connect dials the broker.
func Connect(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Channel opens a fresh channel. Publishers and consumers must not share
// channels.
func (c *Client) Channel() (*amqp.Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Close tears down the connection and all its channels.
func (c *Client) Close() error {
	return c.conn.Close()
}

// DeclareTopology declares the durable exchange, main queue and dead-letter
// pair. The main queue dead-letters rejected messages to the DLX, which
// routes them to the DLQ for external consumption.
func DeclareTopology(ch *amqp.Channel, cfg Config) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if err := ch.ExchangeDeclare(cfg.DLXExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlx %s: %w", cfg.DLXExchange, err)
	}
	if _, err := ch.QueueDeclare(cfg.DLQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq %s: %w", cfg.DLQ, err)
	}
	if err := ch.QueueBind(cfg.DLQ, cfg.DLQRoutingKey, cfg.DLXExchange, false, nil); err != nil {
		return fmt.Errorf("bind dlq %s: %w", cfg.DLQ, err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    cfg.DLXExchange,
		"x-dead-letter-routing-key": cfg.DLQRoutingKey,
	}); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
	}
	return nil
}
