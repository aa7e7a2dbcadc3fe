// Package backend defines the delivery backend contract. A backend accepts
// one message for one recipient and reports the outcome; the dispatch layer
// translates outcomes into broker acknowledgements.
package backend

import (
	"context"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// Backend delivers a single message over one transport. Implementations for
// IRC and email live in the subpackages. Mocking this interface in tests
// gives full control over delivery behaviour without touching a real
// transport.
type Backend interface {
	// Kind identifies the transport, matching the queue-name prefix.
	Kind() domain.BackendKind

	// Deliver transmits msg to the recipient identity (a nickname, channel,
	// or email address). It never returns an error; all failure detail is
	// carried in the Outcome.
	Deliver(ctx context.Context, msg domain.Message, recipient string) domain.Outcome
}
