package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// NackCall records one Nack for assertion in tests.
type NackCall struct {
	Tag     uint64
	Requeue bool
}

// MockBroker is a hand-written, in-memory implementation of Broker used in
// unit tests. Tests push deliveries into consumers with Push and inspect
// the recorded operations.
type MockBroker struct {
	mu        sync.Mutex
	Declared  []string
	Binds     map[string][]domain.Binding
	Unbinds   map[string][]domain.Binding
	Deleted   []string
	Acks      []uint64
	Nacks     []NackCall
	Cancelled []string

	consumers map[string]chan Delivery // by consumer tag
	byQueue   map[string]string        // queue -> most recent tag
	tagSeq    int

	// Optional error overrides — set in tests to simulate failure paths.
	DeclareErr error
	BindErr    error
	ConsumeErr error
}

func NewMockBroker() *MockBroker {
	return &MockBroker{
		Binds:     make(map[string][]domain.Binding),
		Unbinds:   make(map[string][]domain.Binding),
		consumers: make(map[string]chan Delivery),
		byQueue:   make(map[string]string),
	}
}

func (m *MockBroker) DeclareQueue(_ context.Context, queue string) error {
	if m.DeclareErr != nil {
		return m.DeclareErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Declared = append(m.Declared, queue)
	return nil
}

func (m *MockBroker) Bind(_ context.Context, queue string, b domain.Binding) error {
	if m.BindErr != nil {
		return m.BindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Binds[queue] = append(m.Binds[queue], b)
	return nil
}

func (m *MockBroker) Unbind(_ context.Context, queue string, b domain.Binding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unbinds[queue] = append(m.Unbinds[queue], b)
	return nil
}

func (m *MockBroker) DeleteQueue(_ context.Context, queue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, queue)
	return nil
}

func (m *MockBroker) Consume(_ context.Context, queue string) (<-chan Delivery, string, error) {
	if m.ConsumeErr != nil {
		return nil, "", m.ConsumeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagSeq++
	tag := fmt.Sprintf("ctag-%d", m.tagSeq)
	ch := make(chan Delivery, 16)
	m.consumers[tag] = ch
	m.byQueue[queue] = tag
	return ch, tag, nil
}

func (m *MockBroker) Cancel(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, tag)
	if ch, ok := m.consumers[tag]; ok {
		close(ch)
		delete(m.consumers, tag)
	}
	return nil
}

func (m *MockBroker) Ack(tag uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Acks = append(m.Acks, tag)
	return nil
}

func (m *MockBroker) Nack(tag uint64, requeue bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Nacks = append(m.Nacks, NackCall{Tag: tag, Requeue: requeue})
	return nil
}

func (m *MockBroker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tag, ch := range m.consumers {
		close(ch)
		delete(m.consumers, tag)
	}
	return nil
}

// Push delivers a message to the current consumer of a queue. It fails the
// test setup (returns false) if nothing is consuming.
func (m *MockBroker) Push(queue string, d Delivery) bool {
	m.mu.Lock()
	tag, ok := m.byQueue[queue]
	var ch chan Delivery
	if ok {
		ch, ok = m.consumers[tag]
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	d.Queue = queue
	ch <- d
	return true
}

// AckedTags returns a snapshot of all acked delivery tags.
func (m *MockBroker) AckedTags() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.Acks...)
}

// NackCalls returns a snapshot of all recorded nacks.
func (m *MockBroker) NackCalls() []NackCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NackCall(nil), m.Nacks...)
}

// BindsFor returns a snapshot of the bindings attached to a queue.
func (m *MockBroker) BindsFor(queue string) []domain.Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Binding(nil), m.Binds[queue]...)
}

// UnbindsFor returns a snapshot of the bindings removed from a queue.
func (m *MockBroker) UnbindsFor(queue string) []domain.Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Binding(nil), m.Unbinds[queue]...)
}

// DeletedQueues returns a snapshot of deleted queue names.
func (m *MockBroker) DeletedQueues() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Deleted...)
}

// Consuming reports whether a queue currently has a live consumer.
func (m *MockBroker) Consuming(queue string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	tag, ok := m.byQueue[queue]
	if !ok {
		return false
	}
	_, ok = m.consumers[tag]
	return ok
}

// compile-time check that MockBroker implements Broker
var _ Broker = (*MockBroker)(nil)
