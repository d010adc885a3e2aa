package orchestrator

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

const maxBackoff = time.Hour

// RetryPolicy decides whether and when a failed attempt is retried.
type RetryPolicy struct {
	Backoff    time.Duration   // wait before the first retry; zero retries at once
	Multiplier float64         // growth per further retry, default 2
	On         []types.Outcome // outcomes worth retrying; empty means every failure
}

// backoff returns the wait before attempt n (n >= 2):
// Backoff * Multiplier^(n-2), capped at one hour.
func (p RetryPolicy) backoff(n int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	if n <= 2 {
		return min(p.Backoff, maxBackoff)
	}
	m := p.Multiplier
	if m <= 0 {
		m = 2.0
	}
	d := float64(p.Backoff) * math.Pow(m, float64(n-2))
	if d > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(d)
}

// retryable reports whether an attempt that ended with outcome is retried.
func (p RetryPolicy) retryable(outcome types.Outcome) bool {
	if !outcome.Failed() {
		return false
	}
	return len(p.On) == 0 || slices.Contains(p.On, outcome)
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
