package queue

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPPublisher publishes JSON payloads to a durable RabbitMQ queue
// per topic. Subscribe is not supported here: consumers run as a
// separate worker process (cmd/worker) with their own channel.
type AMQPPublisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *zap.Logger
}

// NewAMQPPublisher dials the broker and opens a channel.
func NewAMQPPublisher(url string, logger *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, logger: logger}, nil
}

// Publish declares the durable queue and publishes the JSON-encoded
// payload to it.
func (p *AMQPPublisher) Publish(topic string, payload any) error {
	q, err := p.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = p.ch.Publish(
		"",
		q.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe is not supported on the publisher side.
func (p *AMQPPublisher) Subscribe(topic string, handler func(payload any) error) error {
	return fmt.Errorf("amqp publisher does not support subscribe; run cmd/worker instead")
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() {
	if err := p.ch.Close(); err != nil {
		p.logger.Warn("close amqp channel", zap.Error(err))
	}
	if err := p.conn.Close(); err != nil {
		p.logger.Warn("close amqp connection", zap.Error(err))
	}
}

var _ Queue = (*AMQPPublisher)(nil)
var _ Queue = (*InMemoryQueue)(nil)
