package store

import (
	"context"
	"sync"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// MockSubscriptionStore is a hand-written, in-memory implementation of
// SubscriptionStore used in unit tests. No mock-generation library needed.
type MockSubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]domain.Subscription

	// Optional error overrides — set in tests to simulate failure paths.
	ListErr error
	GetErr  error

	// GetHook, when set, runs at the top of GetQueue. Tests use it to
	// hold a lookup open while exercising concurrent lifecycle paths.
	GetHook func(name string)
}

func NewMockSubscriptionStore() *MockSubscriptionStore {
	return &MockSubscriptionStore{subs: make(map[string]domain.Subscription)}
}

// Add registers a subscription keyed by its queue name.
func (m *MockSubscriptionStore) Add(sub domain.Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[sub.Queue] = sub
}

// Remove deletes a subscription, simulating the web app destroying a queue.
func (m *MockSubscriptionStore) Remove(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, queue)
}

func (m *MockSubscriptionStore) ListActiveQueues(_ context.Context, kind domain.BackendKind) ([]domain.Subscription, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Subscription
	for _, sub := range m.subs {
		if sub.Kind == kind && sub.Batch == nil {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *MockSubscriptionStore) GetQueue(_ context.Context, name string) (*domain.Subscription, error) {
	if m.GetHook != nil {
		m.GetHook(name)
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if _, _, err := domain.ParseQueueName(name); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := sub
	return &clone, nil
}
