package irc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// transport is the slice of Session the backend needs. Mocking it in tests
// gives full control over connection readiness without a real IRC server.
type transport interface {
	WaitReady(ctx context.Context, timeout time.Duration) error
	Send(ctx context.Context, target, line string) error
}

// Backend delivers messages as single privmsg lines over the shared
// session. IRC has no delivery acknowledgement, so a delivery succeeds once
// the line is handed to the connection.
type Backend struct {
	session     transport
	connectWait time.Duration
	logger      *zap.Logger
}

// NewBackend wraps the session. connectWait bounds how long one delivery
// may wait for the session to come up before being returned for requeue.
func NewBackend(session *Session, connectWait time.Duration, logger *zap.Logger) *Backend {
	return &Backend{session: session, connectWait: connectWait, logger: logger}
}

func (b *Backend) Kind() domain.BackendKind {
	return domain.BackendIRC
}

func (b *Backend) Deliver(ctx context.Context, msg domain.Message, recipient string) domain.Outcome {
	if err := b.session.WaitReady(ctx, b.connectWait); err != nil {
		return domain.Retryable(fmt.Errorf("irc session not ready: %w", err))
	}
	if err := b.session.Send(ctx, recipient, msg.Subject()); err != nil {
		return domain.Retryable(fmt.Errorf("irc send to %s: %w", recipient, err))
	}

	b.logger.Debug("irc message delivered",
		zap.String("to", recipient),
		zap.String("message_id", msg.ID),
	)
	return domain.Success()
}
