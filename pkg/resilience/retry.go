package resilience

import (
	"context"
	"time"
)

// RetryPolicy retries transient failures with linear backoff. Rate limit
// errors are not retried; the circuit breaker owns that budget.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
}

// Do runs fn until it succeeds, the attempts are spent, or ctx ends.
// Context cancellation between attempts returns the context error.
func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if IsRateLimit(err) || attempt == r.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Backoff * time.Duration(attempt+1)):
		}
	}
}
