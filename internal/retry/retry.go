// Package retry re-runs operations that failed with a transient storage error.
package retry

import (
	"context"
	"time"

	"github.com/stemsi/tryout-backend/internal/apperror"
)

// Policy bounds a retry loop. Delays double from Base and are capped at Max.
type Policy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultPolicy is used when a caller has no configured policy.
var DefaultPolicy = Policy{Attempts: 3, Base: 100 * time.Millisecond, Max: 2 * time.Second}

// Do calls fn until it succeeds, returns a non-retryable error, or the policy is exhausted.
// Guard violations and not-found errors are returned on the first attempt.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !apperror.IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		t := time.NewTimer(p.backoff(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}

func (p Policy) backoff(attempt int) time.Duration {
	d := p.Base << attempt
	if p.Max > 0 && (d > p.Max || d <= 0) {
		return p.Max
	}
	return d
}
