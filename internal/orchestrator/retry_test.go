package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dwsmith1983/factcorpus/pkg/types"
)

func TestRetryBackoff(t *testing.T) {
	p := RetryPolicy{Backoff: 30 * time.Second, Multiplier: 2.0}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{2, 30 * time.Second},
		{3, 60 * time.Second},
		{4, 120 * time.Second},
		{5, 240 * time.Second},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, p.backoff(tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestRetryBackoffCapsAtOneHour(t *testing.T) {
	p := RetryPolicy{Backoff: 30 * time.Minute, Multiplier: 4.0}
	assert.Equal(t, time.Hour, p.backoff(4))
}

func TestRetryBackoffDefaults(t *testing.T) {
	assert.Zero(t, RetryPolicy{}.backoff(3))
	assert.Equal(t, 20*time.Second, RetryPolicy{Backoff: 10 * time.Second}.backoff(3))
}

func TestRetryable(t *testing.T) {
	all := RetryPolicy{}
	assert.True(t, all.retryable(types.OutcomeCompilerError))
	assert.True(t, all.retryable(types.OutcomeTimeout))
	assert.False(t, all.retryable(types.OutcomeSuccess))

	timeouts := RetryPolicy{On: []types.Outcome{types.OutcomeTimeout}}
	assert.True(t, timeouts.retryable(types.OutcomeTimeout))
	assert.False(t, timeouts.retryable(types.OutcomeCompilerError))
}

func TestSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunRetriesOnlyListedOutcomes(t *testing.T) {
	h := newHarness(t, types.OutcomeCompilerError, types.OutcomeSuccess)
	h.cfg.Retries = 2
	h.cfg.Retry = RetryPolicy{On: []types.Outcome{types.OutcomeTimeout}}
	sum, err := h.run(t, entryA)
	assert.Error(t, err)
	assert.Len(t, sum.Jobs, 1)
}
