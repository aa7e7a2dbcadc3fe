package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/backend"
	"github.com/notifyhub/delivery-dispatch/internal/broker"
	"github.com/notifyhub/delivery-dispatch/internal/directory"
	"github.com/notifyhub/delivery-dispatch/internal/dispatch"
	"github.com/notifyhub/delivery-dispatch/internal/domain"
	"github.com/notifyhub/delivery-dispatch/internal/store"
)

type deliverCall struct {
	Recipient string
	Message   domain.Message
}

// recordingBackend captures Deliver calls and returns a fixed outcome.
type recordingBackend struct {
	mu      sync.Mutex
	kind    domain.BackendKind
	outcome domain.Outcome
	calls   []deliverCall
}

func (r *recordingBackend) Kind() domain.BackendKind { return r.kind }

func (r *recordingBackend) Deliver(_ context.Context, msg domain.Message, recipient string) domain.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, deliverCall{Recipient: recipient, Message: msg})
	return r.outcome
}

func (r *recordingBackend) Calls() []deliverCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]deliverCall(nil), r.calls...)
}

var _ backend.Backend = (*recordingBackend)(nil)

type fixture struct {
	broker *broker.MockBroker
	store  *store.MockSubscriptionStore
	dir    *directory.Directory
	irc    *recordingBackend
	email  *recordingBackend
	svc    *dispatch.Service
}

func newFixture() *fixture {
	f := &fixture{
		broker: broker.NewMockBroker(),
		store:  store.NewMockSubscriptionStore(),
		dir:    directory.New(),
		irc:    &recordingBackend{kind: domain.BackendIRC, outcome: domain.Success()},
		email:  &recordingBackend{kind: domain.BackendEmail, outcome: domain.Success()},
	}
	f.svc = dispatch.New(
		f.broker, f.store, f.dir,
		map[domain.BackendKind]backend.Backend{
			domain.BackendIRC:   f.irc,
			domain.BackendEmail: f.email,
		},
		"control",
		zap.NewNop(),
		dispatch.Hooks{},
	)
	return f
}

// waitFor polls cond until it holds or the deadline passes. Consumer loops
// run on their own goroutines, so assertions about their effects need a
// grace period.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func emailSub() domain.Subscription {
	return domain.Subscription{
		Queue:    "email.a@b.com",
		Kind:     domain.BackendEmail,
		Identity: "a@b.com",
		Rules: []domain.Rule{
			domain.HeaderRule{Key: "pkg_kernel", MinSeverity: domain.SeverityWarning},
		},
	}
}

func TestStart_BulkBindsActiveQueues(t *testing.T) {
	f := newFixture()
	f.store.Add(emailSub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.svc.Stop(ctx)

	// warning minimum expands to two header bindings
	if got := len(f.broker.BindsFor("email.a@b.com")); got != 2 {
		t.Fatalf("expected 2 bindings, got %d", got)
	}
	if !f.broker.Consuming("email.a@b.com") {
		t.Fatal("expected a consumer on the user queue")
	}
	if !f.broker.Consuming("control") {
		t.Fatal("expected a consumer on the control queue")
	}
	if _, ok := f.dir.Lookup("email.a@b.com"); !ok {
		t.Fatal("expected directory entry for the queue")
	}
}

func TestStart_ExcludesBatchedQueues(t *testing.T) {
	f := newFixture()
	batch := 60
	sub := emailSub()
	sub.Batch = &batch
	f.store.Add(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.svc.Stop(ctx)

	if f.broker.Consuming("email.a@b.com") {
		t.Fatal("batched queues must not be consumed")
	}
}

func TestDispatch_DeliveredAcks(t *testing.T) {
	f := newFixture()
	f.store.Add(emailSub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.svc.Stop(ctx)

	f.broker.Push("email.a@b.com", broker.Delivery{
		Tag:     7,
		Message: domain.Message{ID: "msg-1", Summary: "hello"},
	})

	waitFor(t, func() bool { return len(f.email.Calls()) == 1 })
	call := f.email.Calls()[0]
	if call.Recipient != "a@b.com" {
		t.Fatalf("expected delivery to a@b.com, got %q", call.Recipient)
	}

	waitFor(t, func() bool {
		acks := f.broker.AckedTags()
		return len(acks) == 1 && acks[0] == 7
	})
}

func TestDispatch_RetryableNacksWithRequeue(t *testing.T) {
	f := newFixture()
	f.store.Add(emailSub())
	f.email.outcome = domain.Retryable(domain.ErrNotConnected)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.svc.Stop(ctx)

	f.broker.Push("email.a@b.com", broker.Delivery{Tag: 9, Message: domain.Message{ID: "msg-1"}})

	waitFor(t, func() bool { return len(f.broker.NackCalls()) == 1 })
	nack := f.broker.NackCalls()[0]
	if nack.Tag != 9 || !nack.Requeue {
		t.Fatalf("expected nack with requeue=true, got %+v", nack)
	}
}

func TestDispatch_FatalNacksWithoutRequeue(t *testing.T) {
	f := newFixture()
	f.store.Add(emailSub())
	f.email.outcome = domain.Fatal(domain.ErrNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.svc.Stop(ctx)

	f.broker.Push("email.a@b.com", broker.Delivery{Tag: 3, Message: domain.Message{ID: "msg-1"}})

	waitFor(t, func() bool { return len(f.broker.NackCalls()) == 1 })
	nack := f.broker.NackCalls()[0]
	if nack.Requeue {
		t.Fatal("fatal failures must not requeue")
	}
}

func TestStop_DrainsInFlightControlEvent(t *testing.T) {
	f := newFixture()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// hold the store lookup open so the control loop is mid-event when
	// Stop is called
	entered := make(chan struct{})
	release := make(chan struct{})
	f.store.GetHook = func(string) {
		close(entered)
		<-release
	}
	f.store.Add(domain.Subscription{
		Queue: "irc.alice", Kind: domain.BackendIRC, Identity: "alice",
	})
	f.broker.Push("control", broker.Delivery{Tag: 100, Body: []byte(`{"kind":"queue.created","queue":"irc.alice"}`)})
	<-entered

	stopped := make(chan struct{})
	go func() {
		f.svc.Stop(ctx)
		close(stopped)
	}()

	// Stop must wait for the in-flight event, not race past it
	select {
	case <-stopped:
		t.Fatal("Stop returned while a control event was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop hung: consumer registered mid-shutdown was never cancelled")
	}
	if f.broker.Consuming("irc.alice") {
		t.Fatal("expected the late-registered consumer to be cancelled")
	}
}

func TestStop_CancelsAllConsumers(t *testing.T) {
	f := newFixture()
	f.store.Add(emailSub())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.svc.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.svc.Stop(ctx)

	if f.broker.Consuming("email.a@b.com") || f.broker.Consuming("control") {
		t.Fatal("expected all consumers cancelled after Stop")
	}
}
