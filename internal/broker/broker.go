// Package broker abstracts the message broker. The AMQP implementation is
// in amqp.go; tests use a hand-written mock (mock_broker.go).
package broker

import (
	"context"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// Delivery is one inbound message handed to the dispatch layer. Message is
// the decoded notification; Body is the raw payload, which the control
// handler decodes itself.
type Delivery struct {
	Tag     uint64
	Queue   string
	Message domain.Message
	Body    []byte
}

// Broker is the contract the dispatch engine requires from a broker
// connection. A single implementation instance is shared by every consumer
// in the process; implementations serialize channel access internally.
//
// Transport concerns (TLS, reconnection backoff) live below this interface.
type Broker interface {
	// DeclareQueue creates the durable queue if it does not exist,
	// applying the configured expiry and length limits.
	DeclareQueue(ctx context.Context, queue string) error

	// Bind attaches a compiled binding to the queue.
	Bind(ctx context.Context, queue string, b domain.Binding) error

	// Unbind removes a previously attached binding.
	Unbind(ctx context.Context, queue string, b domain.Binding) error

	// DeleteQueue removes the queue and all its bindings.
	DeleteQueue(ctx context.Context, queue string) error

	// Consume opens a consumer on the queue. The returned channel yields
	// deliveries in broker order and is closed when the consumer is
	// cancelled or the broker shuts down. The string is the consumer tag
	// for Cancel.
	Consume(ctx context.Context, queue string) (<-chan Delivery, string, error)

	// Cancel stops the consumer identified by tag and closes its channel.
	Cancel(ctx context.Context, tag string) error

	// Ack removes the delivery from the broker.
	Ack(tag uint64) error

	// Nack rejects the delivery; with requeue the broker redelivers it
	// later, without requeue it is dropped.
	Nack(tag uint64, requeue bool) error

	// Close releases the connection. All consumer channels close.
	Close() error
}
