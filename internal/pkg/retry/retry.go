package retry

import (
	"context"
	"time"
)

// Policy is a reusable exponential-backoff retry policy. The same policy is
// shared by the GitHub credential broker, branch-SHA resolution and the
// compare fallback instead of scattering ad-hoc retry loops.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Classify reports whether err is worth retrying and, optionally, a
	// server-requested delay (e.g. Retry-After) overriding the backoff.
	Classify func(err error) (time.Duration, bool)
}

// Default covers idempotent GitHub reads: 5 attempts, 500ms doubling.
var Default = Policy{
	Attempts:     5,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     8 * time.Second,
}

// Do runs fn until it succeeds, the error is classified non-retryable, the
// attempts are exhausted, or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.InitialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		wait := delay
		if p.Classify != nil {
			after, retryable := p.Classify(err)
			if !retryable {
				return err
			}
			if after > 0 {
				wait = after
			}
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}
