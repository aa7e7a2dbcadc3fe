package domain

import (
	"fmt"
	"strings"
)

// BackendKind identifies the delivery transport for a queue.
type BackendKind string

const (
	BackendIRC   BackendKind = "irc"
	BackendEmail BackendKind = "email"
)

// backendKinds is the closed set of known kinds. Queue names are resolved
// through this table rather than by ad-hoc string comparison.
var backendKinds = map[string]BackendKind{
	"irc":   BackendIRC,
	"email": BackendEmail,
}

func (k BackendKind) IsValid() bool {
	_, ok := backendKinds[string(k)]
	return ok
}

// ParseBackendKind resolves a queue-name prefix to a BackendKind.
func ParseBackendKind(s string) (BackendKind, bool) {
	k, ok := backendKinds[s]
	return k, ok
}

// Severity is the ordered urgency level carried in the message headers.
// The numeric values are the wire values used by publishers; keep them
// spaced so new levels can be inserted without renumbering.
type Severity int

const (
	SeverityDebug   Severity = 10
	SeverityInfo    Severity = 20
	SeverityWarning Severity = 30
	SeverityError   Severity = 40
)

// Severities lists every level in ascending order.
var Severities = []Severity{SeverityDebug, SeverityInfo, SeverityWarning, SeverityError}

func (s Severity) IsValid() bool {
	switch s {
	case SeverityDebug, SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// QueueName derives the broker queue identifier for a delivery target.
// A user has at most one queue per backend kind, so the pair is unique.
func QueueName(kind BackendKind, identity string) string {
	return string(kind) + "." + identity
}

// ParseQueueName splits a queue identifier back into its backend kind and
// delivery identity. Only the first "." is a separator; identities such as
// email addresses contain dots of their own.
func ParseQueueName(name string) (BackendKind, string, error) {
	prefix, identity, found := strings.Cut(name, ".")
	if !found || identity == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadQueueName, name)
	}
	kind, ok := ParseBackendKind(prefix)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownBackend, prefix)
	}
	return kind, identity, nil
}

// Message is a notification as consumed from a user queue, reduced to what
// delivery needs. Summary is a single human-readable line; Body is the full
// rendered text.
type Message struct {
	ID       string
	Topic    string
	Summary  string
	Body     string
	Severity Severity
}

// Subject returns the one-line form of the message, falling back to the
// topic when the publisher supplied no summary.
func (m Message) Subject() string {
	if m.Summary != "" {
		return m.Summary
	}
	return m.Topic
}

// Subscription is a user's delivery preference record, read from the
// external store. The core never writes these.
type Subscription struct {
	Queue    string
	Kind     BackendKind
	Identity string

	// Batch is the batching interval in minutes; nil means immediate
	// delivery. Batched queues are excluded from dispatch.
	Batch *int

	Rules []Rule
}
