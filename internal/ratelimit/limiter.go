package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter bounds the outbound request rate for a whole run. It is shared by
// every worker; the token bucket serializes admission so the ceiling holds
// regardless of worker count. Burst equals the per-second rate, which keeps
// any one-second window under twice the configured ceiling.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter allowing rps requests per second. A non-positive rps
// is treated as 1.
func New(rps int) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Acquire blocks until the next request may be issued, or until the context
// is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
