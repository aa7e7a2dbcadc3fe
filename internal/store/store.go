package store

import (
	"context"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// SubscriptionStore is the narrow read interface over the record store
// owned by the web application. The dispatch service never writes through
// it. The pgx implementation is in pg_store.go; tests use a hand-written
// mock (mock_store.go).
type SubscriptionStore interface {
	// ListActiveQueues returns every non-batched subscription for one
	// backend kind, with its rules loaded.
	ListActiveQueues(ctx context.Context, kind domain.BackendKind) ([]domain.Subscription, error)

	// GetQueue fetches a single subscription by its fully-qualified queue
	// name. Returns domain.ErrNotFound if no such queue exists, which a
	// caller reacting to a control message must treat as a benign race
	// with deletion.
	GetQueue(ctx context.Context, name string) (*domain.Subscription, error)
}
