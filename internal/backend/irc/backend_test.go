package irc

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

type fakeTransport struct {
	readyErr error
	sendErr  error

	target string
	line   string
}

func (f *fakeTransport) WaitReady(context.Context, time.Duration) error { return f.readyErr }

func (f *fakeTransport) Send(_ context.Context, target, line string) error {
	f.target, f.line = target, line
	return f.sendErr
}

func TestDeliver_SendsSummaryLine(t *testing.T) {
	ft := &fakeTransport{}
	b := &Backend{session: ft, connectWait: time.Second, logger: zap.NewNop()}

	out := b.Deliver(context.Background(), domain.Message{
		ID:      "msg-1",
		Topic:   "org.build.complete",
		Summary: "kernel build complete",
	}, "alice")

	if out.Kind != domain.Delivered {
		t.Fatalf("expected delivered, got %s", out.Kind)
	}
	if ft.target != "alice" {
		t.Fatalf("expected delivery to alice, got %q", ft.target)
	}
	if ft.line != "kernel build complete" {
		t.Fatalf("expected summary line, got %q", ft.line)
	}
}

func TestDeliver_NotConnectedIsRetryable(t *testing.T) {
	ft := &fakeTransport{readyErr: domain.ErrNotConnected}
	b := &Backend{session: ft, connectWait: time.Millisecond, logger: zap.NewNop()}

	out := b.Deliver(context.Background(), domain.Message{ID: "msg-1"}, "alice")
	if out.Kind != domain.RetryableFailure {
		t.Fatalf("expected retryable failure, got %s", out.Kind)
	}
	if ft.line != "" {
		t.Fatal("expected no send attempt while disconnected")
	}
}

func TestDeliver_SendErrorIsRetryable(t *testing.T) {
	ft := &fakeTransport{sendErr: context.Canceled}
	b := &Backend{session: ft, connectWait: time.Second, logger: zap.NewNop()}

	out := b.Deliver(context.Background(), domain.Message{ID: "msg-1"}, "alice")
	if out.Kind != domain.RetryableFailure {
		t.Fatalf("expected retryable failure, got %s", out.Kind)
	}
}
