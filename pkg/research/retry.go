package research

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds how many times a generation step is attempted.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff is multiplied by the attempt number before each retry.
	Backoff time.Duration
	// ShouldRetry reports whether an attempt error is worth another try.
	// A nil ShouldRetry retries every error.
	ShouldRetry func(error) bool
}

// WithRetryIf returns a copy of the policy that only retries matching errors.
func (p RetryPolicy) WithRetryIf(fn func(error) bool) RetryPolicy {
	p.ShouldRetry = fn
	return p
}

// Do runs fn until it succeeds, the error is not retryable or attempts run out.
// fn receives the zero-based attempt number.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && p.Backoff > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			case <-time.After(p.Backoff * time.Duration(i)):
			}
		}

		lastErr = fn(i)
		if lastErr == nil {
			return nil
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
