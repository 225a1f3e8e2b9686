package research

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Do(t *testing.T) {
	errBoom := errors.New("boom")

	t.Run("succeeds on second attempt", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{MaxAttempts: 2}.Do(context.Background(), func(attempt int) error {
			calls++
			if attempt == 0 {
				return errBoom
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("returns last error when attempts run out", func(t *testing.T) {
		calls := 0
		err := RetryPolicy{MaxAttempts: 2}.Do(context.Background(), func(int) error {
			calls++
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 2, calls)
	})

	t.Run("predicate stops retries", func(t *testing.T) {
		calls := 0
		p := RetryPolicy{MaxAttempts: 5}.WithRetryIf(isParseError)
		err := p.Do(context.Background(), func(int) error {
			calls++
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_ = RetryPolicy{}.Do(context.Background(), func(int) error {
			calls++
			return errBoom
		})
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RetryPolicy{MaxAttempts: 3, Backoff: time.Hour}.Do(ctx, func(int) error { return errBoom })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
