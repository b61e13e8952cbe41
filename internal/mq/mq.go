package mq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher defines a minimal interface for publishing events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Consumer defines a minimal interface for subscribing to queue messages.
type Consumer interface {
	Consume(handler func(amqp091.Delivery)) error
	Close() error
}

// RabbitPublisher publishes JSON events to a RabbitMQ topic exchange.
type RabbitPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	log      *slog.Logger
}

// NewRabbitPublisher creates a publisher connecting to RabbitMQ.
func NewRabbitPublisher(url, exchange string, log *slog.Logger) (*RabbitPublisher, error) {
	conn, ch, err := dialExchange(url, exchange)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

// Publish serializes the payload to JSON and sends it to the exchange as a
// persistent message.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

// Close terminates the connection.
func (p *RabbitPublisher) Close() error {
	if p == nil {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.log.Warn("close channel", "error", err)
	}
	return p.conn.Close()
}

// RabbitConsumer consumes messages from a queue bound to the exchange.
// Handlers are responsible for acknowledging deliveries.
type RabbitConsumer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	queue   string
	log     *slog.Logger
}

// NewRabbitConsumer declares the queue, binds it to exchange with bindingKey
// and returns a consumer.
func NewRabbitConsumer(url, exchange, queue, bindingKey string, log *slog.Logger) (*RabbitConsumer, error) {
	conn, ch, err := dialExchange(url, exchange)
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(q.Name, bindingKey, exchange, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &RabbitConsumer{conn: conn, channel: ch, queue: q.Name, log: log}, nil
}

// Consume begins delivering messages to handler.
func (c *RabbitConsumer) Consume(handler func(amqp091.Delivery)) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	go func() {
		for msg := range deliveries {
			handler(msg)
		}
	}()
	return nil
}

// Close closes the consumer resources.
func (c *RabbitConsumer) Close() error {
	if c == nil {
		return nil
	}
	if err := c.channel.Close(); err != nil {
		c.log.Warn("close channel", "error", err)
	}
	return c.conn.Close()
}

func dialExchange(url, exchange string) (*amqp091.Connection, *amqp091.Channel, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
