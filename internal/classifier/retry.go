package classifier

import (
	"context"
	"time"

	"github.com/querydesk/backend/internal/ai"
)

// RetryPolicy bounds how often the remote model is asked before the keyword fallback takes over.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Retryable   func(err error) bool
}

func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// DefaultRetryPolicy: 3 attempts, attempt x 300ms between rate-limited calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     LinearBackoff(300 * time.Millisecond),
		Retryable:   ai.IsRateLimited,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Backoff == nil {
		p.Backoff = d.Backoff
	}
	if p.Retryable == nil {
		p.Retryable = d.Retryable
	}
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
