package resilience

import (
	"sync"
	"time"

	"github.com/athenasec/athena/pkg/logging"
	"github.com/athenasec/athena/pkg/types"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed - circuit is closed, requests are allowed
	StateClosed CircuitState = iota
	// StateOpen - circuit is open, requests are rejected
	StateOpen
	// StateHalfOpen - circuit is half-open, a single trial request is allowed
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s CircuitState) toBreakerState() types.BreakerState {
	switch s {
	case StateOpen:
		return types.BreakerOpen
	case StateHalfOpen:
		return types.BreakerHalfOpen
	default:
		return types.BreakerClosed
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// Name of the circuit breaker for logging/metrics, typically the provider id
	Name string
	// FailureThreshold is the number of consecutive failures that trips the
	// breaker from closed to open
	FailureThreshold int
	// Cooldown is the period of the open state, after which the next
	// AllowRequest admits a single trial call
	Cooldown time.Duration
	// OnStateChange is called whenever the state of the circuit breaker changes
	OnStateChange func(name string, from CircuitState, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the default breaker configuration
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// CircuitBreaker gates calls to a single provider. It is safe for concurrent
// use; AllowRequest never blocks.
//
// The open-to-half-open transition is evaluated lazily on AllowRequest once
// the cooldown has elapsed. A half-open breaker admits exactly one concurrent
// trial call; further requests are rejected as if the breaker were open until
// the trial outcome is recorded.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	cooldown         time.Duration
	onStateChange    func(name string, from CircuitState, to CircuitState)

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
	cooldownUntil       time.Time
	trialInFlight       bool

	logger *logging.Logger
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 60 * time.Second
	}

	return &CircuitBreaker{
		name:             config.Name,
		failureThreshold: config.FailureThreshold,
		cooldown:         config.Cooldown,
		onStateChange:    config.OnStateChange,
		state:            StateClosed,
		logger:           logging.GetLogger(),
	}
}

// AllowRequest reports whether a call to the provider may proceed. A true
// return from a half-open breaker claims the single trial slot; the caller
// must follow up with RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Now().Before(cb.cooldownUntil) {
			return false
		}
		cb.setState(StateHalfOpen)
		cb.trialInFlight = true
		return true

	case StateHalfOpen:
		if cb.trialInFlight {
			return false
		}
		cb.trialInFlight = true
		return true
	}

	return false
}

// RecordSuccess records a successful provider call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures = 0

	case StateHalfOpen:
		cb.trialInFlight = false
		cb.consecutiveFailures = 0
		cb.setState(StateClosed)

	case StateOpen:
		// A success can land here if the breaker tripped while the call was
		// in flight; the outcome is stale and the open state stands.
		cb.logger.WithComponent("circuit_breaker").
			WithField("name", cb.name).
			Debug("success recorded while breaker open, ignoring")
	}
}

// RecordFailure records a failed or timed-out provider call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.trip()
		}

	case StateHalfOpen:
		cb.consecutiveFailures++
		cb.trialInFlight = false
		cb.trip()

	case StateOpen:
		// Stale outcome from a call that started before the breaker opened;
		// the count already reflects the trip and stays put.
	}
}

// State returns the current state of the circuit breaker. The open state is
// reported as-is even when the cooldown has elapsed; the transition to
// half-open happens on the next AllowRequest.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Name returns the name of the circuit breaker
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Health returns a snapshot of the breaker as provider health
func (cb *CircuitBreaker) Health() types.ProviderHealth {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return types.ProviderHealth{
		ProviderID:          cb.name,
		State:               cb.state.toBreakerState(),
		ConsecutiveFailures: cb.consecutiveFailures,
		OpenedAt:            cb.openedAt,
		CooldownUntil:       cb.cooldownUntil,
	}
}

// Reset returns the breaker to the closed state with counters cleared
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.trialInFlight = false
	cb.openedAt = time.Time{}
	cb.cooldownUntil = time.Time{}
	cb.setState(StateClosed)
}

// trip moves the breaker to open and starts the cooldown. Caller holds cb.mu.
func (cb *CircuitBreaker) trip() {
	now := time.Now()
	cb.openedAt = now
	cb.cooldownUntil = now.Add(cb.cooldown)
	cb.setState(StateOpen)
}

// setState transitions the state and fires callbacks. Caller holds cb.mu.
func (cb *CircuitBreaker) setState(state CircuitState) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state

	cb.logger.WithComponent("circuit_breaker").WithFields(map[string]interface{}{
		"name":                 cb.name,
		"from":                 prev.String(),
		"to":                   state.String(),
		"consecutive_failures": cb.consecutiveFailures,
	}).Info("Circuit breaker state changed")

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, state)
	}
}
