package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/config"
	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// AMQPBroker implements Broker over a RabbitMQ connection with a single
// channel. AMQP channels are not safe for concurrent use, so every channel
// operation goes through the mutex.
type AMQPBroker struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	topicExchange   string
	headersExchange string
	queueArgs       amqp.Table

	logger *zap.Logger
}

// Dial connects to the broker and opens the shared channel. Prefetch is
// kept small: deliveries are processed one at a time per queue and SMTP or
// IRC round-trips dominate, so there is nothing to gain from a deep buffer.
func Dial(cfg *config.Config, logger *zap.Logger) (*AMQPBroker, error) {
	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(4, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	queueArgs := amqp.Table{}
	if cfg.QueueExpires > 0 {
		queueArgs["x-expires"] = cfg.QueueExpires.Milliseconds()
	}
	if cfg.QueueMaxLength > 0 {
		queueArgs["x-max-length"] = int64(cfg.QueueMaxLength)
	}
	if cfg.QueueMaxSize > 0 {
		queueArgs["x-max-length-bytes"] = int64(cfg.QueueMaxSize)
	}

	return &AMQPBroker{
		conn:            conn,
		ch:              ch,
		topicExchange:   cfg.TopicExchange,
		headersExchange: cfg.HeadersExchange,
		queueArgs:       queueArgs,
		logger:          logger,
	}, nil
}

func (b *AMQPBroker) DeclareQueue(_ context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.ch.QueueDeclare(queue, true, false, false, false, b.queueArgs)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

func (b *AMQPBroker) Bind(_ context.Context, queue string, bind domain.Binding) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	exchange, key, args := b.bindSpec(bind)
	if err := b.ch.QueueBind(queue, key, exchange, false, args); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, exchange, err)
	}
	return nil
}

func (b *AMQPBroker) Unbind(_ context.Context, queue string, bind domain.Binding) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	exchange, key, args := b.bindSpec(bind)
	if err := b.ch.QueueUnbind(queue, key, exchange, args); err != nil {
		return fmt.Errorf("unbind queue %s from %s: %w", queue, exchange, err)
	}
	return nil
}

// bindSpec maps a compiled binding onto AMQP bind parameters. Topic
// bindings use the routing key and no arguments; header bindings use no
// routing key and the match-argument table.
func (b *AMQPBroker) bindSpec(bind domain.Binding) (exchange, key string, args amqp.Table) {
	switch bind.Exchange {
	case domain.ExchangeTopic:
		return b.topicExchange, bind.RoutingKey, nil
	case domain.ExchangeHeaders:
		return b.headersExchange, "", amqp.Table(bind.Arguments)
	}
	// Compiled bindings come from the binding compiler, which only emits
	// the two exchange kinds.
	panic(fmt.Sprintf("broker: unknown exchange kind %q", bind.Exchange))
}

func (b *AMQPBroker) DeleteQueue(_ context.Context, queue string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.ch.QueueDelete(queue, false, false, false); err != nil {
		return fmt.Errorf("delete queue %s: %w", queue, err)
	}
	return nil
}

func (b *AMQPBroker) Consume(_ context.Context, queue string) (<-chan Delivery, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tag := queue + "." + uuid.New().String()[:8]
	deliveries, err := b.ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, "", fmt.Errorf("consume %s: %w", queue, err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for d := range deliveries {
			out <- Delivery{
				Tag:     d.DeliveryTag,
				Queue:   queue,
				Message: decodeMessage(d),
				Body:    d.Body,
			}
		}
	}()
	return out, tag, nil
}

func (b *AMQPBroker) Cancel(_ context.Context, tag string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ch.Cancel(tag, false); err != nil {
		return fmt.Errorf("cancel consumer %s: %w", tag, err)
	}
	return nil
}

func (b *AMQPBroker) Ack(tag uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch.Ack(tag, false)
}

func (b *AMQPBroker) Nack(tag uint64, requeue bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch.Nack(tag, false, requeue)
}

func (b *AMQPBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.ch.Close(); err != nil {
		b.logger.Warn("channel close error", zap.Error(err))
	}
	return b.conn.Close()
}

// compile-time check that AMQPBroker implements Broker
var _ Broker = (*AMQPBroker)(nil)
