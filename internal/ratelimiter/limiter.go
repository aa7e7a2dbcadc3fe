package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outbound sends on a single transport. IRC servers throttle
// or disconnect clients that send lines too quickly, so the IRC session
// waits on one of these before every line.
type Limiter struct {
	l *rate.Limiter
}

// New creates a Limiter allowing one send per interval, with no burst
// beyond a single token. A non-positive interval disables pacing.
func New(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{l: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{l: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the limiter grants a token. Returns a non-nil error
// only if ctx is cancelled while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.l.Wait(ctx)
}
