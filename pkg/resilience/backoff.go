package resilience

import (
	"math"
	"math/rand"
	"time"

	"github.com/athenasec/athena/pkg/errors"
)

// BackoffConfig holds configuration for exponential backoff delays
type BackoffConfig struct {
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay caps the computed delay
	MaxDelay time.Duration
	// Multiplier for exponential growth, typically 2.0
	Multiplier float64
	// Jitter adds up to 10% randomness to avoid thundering herd
	Jitter bool
}

// DefaultBackoffConfig returns a default backoff configuration
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Backoff computes retry delays with exponential growth
type Backoff struct {
	config BackoffConfig
}

// NewBackoff creates a new backoff calculator with the given configuration
func NewBackoff(config BackoffConfig) *Backoff {
	if config.BaseDelay <= 0 {
		config.BaseDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}

	return &Backoff{config: config}
}

// Delay returns the delay before the retry following the given retry count.
// The first retry (retryCount 0) waits BaseDelay; each subsequent retry
// doubles the delay up to MaxDelay.
func (b *Backoff) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}

	delay := float64(b.config.BaseDelay) * math.Pow(b.config.Multiplier, float64(retryCount))
	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}

	if b.config.Jitter {
		delay += rand.Float64() * 0.1 * delay
	}

	return time.Duration(delay)
}

// IsRetryable reports whether an error represents a transient failure worth
// retrying at the scheduler level. Validation and configuration errors are
// permanent; provider failures, timeouts, and provider exhaustion are
// transient since a later attempt may reach a recovered provider.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.IsAllProvidersFailed(err) {
		return true
	}

	switch errors.GetType(err) {
	case errors.ErrorTypeValidation, errors.ErrorTypeConfig, errors.ErrorTypeCancellation:
		return false
	case errors.ErrorTypeProvider, errors.ErrorTypeTimeout, errors.ErrorTypeExhausted:
		return true
	}

	return true
}
