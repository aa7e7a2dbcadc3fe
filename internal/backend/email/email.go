// Package email delivers notifications over SMTP.
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/notifyhub/delivery-dispatch/internal/domain"
)

// maxBodyBytes caps the rendered message body. Bodies beyond this are
// replaced with a placeholder notice; a runaway renderer upstream must not
// produce multi-megabyte emails.
const maxBodyBytes = 500000

// Options holds the SMTP transport parameters.
type Options struct {
	Host        string
	Port        int
	Username    string
	Password    string
	RequireAuth bool
	RequireTLS  bool
	From        string
}

// Backend delivers messages as individual emails using go-mail.
type Backend struct {
	opts   Options
	client *mail.Client
	logger *zap.Logger
}

// New validates the options and builds the reusable SMTP client. The client
// dials per send; no connection is held between deliveries.
func New(opts Options, logger *zap.Logger) (*Backend, error) {
	// Catch a bad From address at startup rather than on every delivery.
	if err := mail.NewMsg().From(opts.From); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", opts.From, err)
	}

	clientOpts := []mail.Option{
		mail.WithPort(opts.Port),
	}
	if opts.RequireTLS {
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if opts.RequireAuth {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}

	return &Backend{opts: opts, client: client, logger: logger}, nil
}

func (b *Backend) Kind() domain.BackendKind {
	return domain.BackendEmail
}

// Deliver sends msg to the recipient address. A recipient the envelope
// builder rejects is permanently invalid; transport errors are classified
// by classify.
func (b *Backend) Deliver(ctx context.Context, msg domain.Message, recipient string) domain.Outcome {
	m, err := b.buildEnvelope(msg, recipient)
	if err != nil {
		return domain.Fatal(err)
	}

	if err := b.client.DialAndSendWithContext(ctx, m); err != nil {
		return classify(err)
	}

	b.logger.Debug("email delivered",
		zap.String("to", recipient),
		zap.String("message_id", msg.ID),
	)
	return domain.Success()
}

// buildEnvelope constructs the outbound email. The Precedence and
// Auto-Submitted headers mark the mail as auto-generated so auto-responders
// stay quiet (RFC 3834; Precedence for older clients that predate it).
func (b *Backend) buildEnvelope(msg domain.Message, recipient string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(b.opts.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", recipient, err)
	}

	m.SetGenHeader("Precedence", "Bulk")
	m.SetGenHeader("Auto-Submitted", "auto-generated")
	m.Subject(msg.Subject())

	body := msg.Body
	if len(body) > maxBodyBytes {
		body = fmt.Sprintf("Notification %s was too large to be sent!\n", msg.ID)
	}
	m.SetBodyString(mail.TypeTextPlain, body)

	return m, nil
}

// classify maps a send error onto a delivery outcome. Only a permanent
// recipient rejection (SMTP 550 class on RCPT TO) drops the message;
// everything else is retried, preferring redelivery over silent loss.
func classify(err error) domain.Outcome {
	var se *mail.SendError
	if errors.As(err, &se) && !se.IsTemp() && se.Reason == mail.ErrSMTPRcptTo {
		return domain.Fatal(err)
	}
	return domain.Retryable(err)
}
