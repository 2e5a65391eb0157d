package resilience

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athenasec/athena/pkg/types"
)

func TestCircuitBreaker_ClosedAllowsRequests(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	})

	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 10; i++ {
		require.True(t, cb.AllowRequest())
		cb.RecordSuccess()
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 5,
		Cooldown:         time.Minute,
	})

	// Failures below the threshold keep the breaker closed
	for i := 0; i < 4; i++ {
		require.True(t, cb.AllowRequest())
		cb.RecordFailure()
		assert.Equal(t, StateClosed, cb.State())
	}

	// The fifth consecutive failure trips it
	require.True(t, cb.AllowRequest())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())

	// Open breaker rejects fast
	assert.False(t, cb.AllowRequest())
	assert.False(t, cb.AllowRequest())
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "openai",
		FailureThreshold: 3,
		Cooldown:         time.Minute,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	// Two failures after the reset, still below threshold
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.AllowRequest())
}

func TestCircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 1,
		Cooldown:         20 * time.Millisecond,
	})

	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())
	require.False(t, cb.AllowRequest())

	time.Sleep(30 * time.Millisecond)

	// Cooldown elapsed: exactly one trial is admitted
	assert.True(t, cb.AllowRequest())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.False(t, cb.AllowRequest())

	// Trial success closes the breaker
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.AllowRequest())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 1,
		Cooldown:         20 * time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(30 * time.Millisecond)

	require.True(t, cb.AllowRequest())
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.AllowRequest())

	// The cooldown restarted, so another wait admits a new trial
	time.Sleep(30 * time.Millisecond)
	assert.True(t, cb.AllowRequest())
}

func TestCircuitBreaker_SingleConcurrentTrial(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "deepseek",
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
	})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	var allowed int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cb.AllowRequest() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, allowed)
}

func TestCircuitBreaker_Health(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 2,
		Cooldown:         time.Minute,
	})

	health := cb.Health()
	assert.Equal(t, "claude", health.ProviderID)
	assert.Equal(t, types.BreakerClosed, health.State)
	assert.Zero(t, health.ConsecutiveFailures)
	assert.True(t, health.OpenedAt.IsZero())

	cb.RecordFailure()
	cb.RecordFailure()

	health = cb.Health()
	assert.Equal(t, types.BreakerOpen, health.State)
	assert.Equal(t, 2, health.ConsecutiveFailures)
	assert.False(t, health.OpenedAt.IsZero())
	assert.True(t, health.CooldownUntil.After(health.OpenedAt))
}

func TestCircuitBreaker_OpenStateIgnoresStaleOutcomes(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 2,
		Cooldown:         time.Hour,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())
	require.Equal(t, 2, cb.Health().ConsecutiveFailures)

	// Outcomes from calls that were in flight when the breaker tripped must
	// not inflate the failure count
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, 2, cb.Health().ConsecutiveFailures)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 1,
		Cooldown:         time.Hour,
	})

	cb.RecordFailure()
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.AllowRequest())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []string

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "claude",
		FailureThreshold: 1,
		Cooldown:         10 * time.Millisecond,
		OnStateChange: func(name string, from, to CircuitState) {
			mu.Lock()
			transitions = append(transitions, from.String()+"->"+to.String())
			mu.Unlock()
		},
	})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.AllowRequest())
	cb.RecordSuccess()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, transitions)
}
