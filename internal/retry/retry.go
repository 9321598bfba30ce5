package retry

import (
	"context"
	"math/rand"
	"time"
)

// maxJitter is the random slack added to every backoff delay so concurrent
// workers hitting the same failure do not retry in lockstep.
const maxJitter = 100 * time.Millisecond

// Policy bounds a retry loop: how many attempts, and how the delay between
// them grows. Delay before attempt n+1 is
// min(MaxDelay, BaseDelay*2^(n-1) + jitter).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the probe retry defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// delayFor computes the backoff after a failed attempt (1-based).
func (p Policy) delayFor(attempt int) time.Duration {
	backoff := p.MaxDelay
	// Left-shifting past 62 bits overflows; anything that far is capped anyway.
	if attempt-1 < 32 {
		if d := p.BaseDelay << uint(attempt-1); d < p.MaxDelay {
			backoff = d
		}
	}
	delay := backoff + time.Duration(rand.Int63n(int64(maxJitter)))
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// Do runs op until it yields a non-retryable result or attempts are
// exhausted, sleeping with exponential backoff in between. The last result
// and error are surfaced either way; the returned count is the number of
// attempts actually made. Cancellation interrupts the backoff sleep.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error), retryable func(T, error) bool) (T, int, error) {
	var result T
	var err error

	for attempt := 1; ; attempt++ {
		result, err = op(ctx)
		if !retryable(result, err) {
			return result, attempt, err
		}
		if attempt >= p.MaxAttempts {
			return result, attempt, err
		}

		select {
		case <-ctx.Done():
			return result, attempt, ctx.Err()
		case <-time.After(p.delayFor(attempt)):
		}
	}
}
