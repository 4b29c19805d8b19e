package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// amqpPublisher is the subset of *amqp.Channel the bridge uses.
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPBridge forwards bus events to a topic exchange, keyed by event type, so
// that other club systems can follow bookings without polling the store.
type AMQPBridge struct {
	conn     *amqp.Connection
	channel  amqpPublisher
	exchange string
	timeout  time.Duration
	logger   zerolog.Logger
}

// DialAMQP connects and declares a durable topic exchange.
func DialAMQP(url, exchange string, logger *zerolog.Logger) (*AMQPBridge, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open broker channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	bridge := newAMQPBridge(ch, exchange, logger)
	bridge.conn = conn
	return bridge, nil
}

func newAMQPBridge(ch amqpPublisher, exchange string, logger *zerolog.Logger) *AMQPBridge {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "amqp-bridge").Logger()
	}
	return &AMQPBridge{
		channel:  ch,
		exchange: exchange,
		timeout:  5 * time.Second,
		logger:   l,
	}
}

// Forward publishes one event. Failures are logged and returned; they never
// reach the workflow that raised the event.
func (b *AMQPBridge) Forward(event *Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	err := b.channel.PublishWithContext(ctx,
		b.exchange,
		event.Type,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.CreatedAt,
			Type:         event.Type,
			Body:         event.Payload,
		},
	)
	if err != nil {
		b.logger.Error().Err(err).Str("event", event.Type).Msg("failed to forward event to broker")
		return err
	}
	return nil
}

func (b *AMQPBridge) Close() error {
	if b.channel != nil {
		_ = b.channel.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
