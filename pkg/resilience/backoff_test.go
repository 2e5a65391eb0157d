package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/athenasec/athena/pkg/errors"
)

func TestBackoff_ExponentialGrowth(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     false,
	})

	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1))
	assert.Equal(t, 400*time.Millisecond, b.Delay(2))
	assert.Equal(t, 800*time.Millisecond, b.Delay(3))
}

func TestBackoff_CappedAtMaxDelay(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		BaseDelay:  1 * time.Second,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     false,
	})

	assert.Equal(t, 5*time.Second, b.Delay(10))
	assert.Equal(t, 5*time.Second, b.Delay(100))
}

func TestBackoff_JitterStaysWithinBounds(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	})

	for i := 0; i < 50; i++ {
		d := b.Delay(1)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 2200*time.Millisecond)
	}
}

func TestBackoff_NegativeRetryCount(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		Multiplier: 2.0,
		Jitter:     false,
	})

	assert.Equal(t, time.Second, b.Delay(-3))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(errors.NewValidationError("duplicate request id")))
	assert.False(t, IsRetryable(errors.NewConfigError("bad concurrency")))
	assert.False(t, IsRetryable(errors.NewCancellationError("batch-1")))

	assert.True(t, IsRetryable(errors.NewProviderError("claude", "rate limited")))
	assert.True(t, IsRetryable(errors.NewTimeoutError("provider call")))
	assert.True(t, IsRetryable(errors.NewAllProvidersFailedError(map[string]error{
		"claude": errors.NewTimeoutError("provider call"),
	})))
}
