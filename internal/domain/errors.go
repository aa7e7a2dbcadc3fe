package domain

import "errors"

// Sentinel errors used throughout the application. Callers classify with
// errors.Is; the dispatch loop decides whether to skip, requeue, or surface
// the failure.
var (
	ErrNotFound        = errors.New("not found")
	ErrBadQueueName    = errors.New("malformed queue name")
	ErrUnknownBackend  = errors.New("unknown backend kind")
	ErrBadControlEvent = errors.New("malformed control event")
	ErrNotConnected    = errors.New("no live connection")
)
