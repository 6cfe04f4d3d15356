// Package recovery implements the circuit breaker guarding the PCI
// transport: a consistently failing serial or TCP link should fast-fail
// sends instead of making every queued command wait out its own
// confirmation timeout one at a time.
package recovery

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState is one of the three circuit breaker states.
type CircuitState int

const (
	// StateClosed - normal operation, sends pass through to the transport.
	StateClosed CircuitState = iota
	// StateOpen - the transport is failing, sends are rejected immediately.
	StateOpen
	// StateHalfOpen - timeout elapsed, a bounded number of sends are let
	// through to test whether the transport has recovered.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker wraps calls to an unreliable transport, tripping open
// after a run of consecutive failures and probing for recovery after a
// timeout.
type CircuitBreaker struct {
	maxFailures      int
	timeout          time.Duration
	halfOpenMaxTries int

	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	halfOpenAttempts int

	mu sync.RWMutex
}

// CircuitBreakerConfig configures a CircuitBreaker. Zero values fall back
// to the defaults below.
type CircuitBreakerConfig struct {
	MaxFailures      int           // default: 5
	Timeout          time.Duration // default: 30s
	HalfOpenMaxTries int           // default: 3
}

// NewCircuitBreaker builds a CircuitBreaker starting CLOSED.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxTries == 0 {
		config.HalfOpenMaxTries = 3
	}

	return &CircuitBreaker{
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		halfOpenMaxTries: config.HalfOpenMaxTries,
		state:            StateClosed,
		lastStateChange:  time.Now(),
	}
}

// Call runs fn if the circuit allows it, returning the circuit's own
// rejection error when OPEN/HALF-OPEN-exhausted, or fn's own error/result
// otherwise.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.lastFailureTime) > cb.timeout {
			cb.state = StateHalfOpen
			cb.halfOpenAttempts = 0
			cb.lastStateChange = time.Now()
			return nil
		}
		return fmt.Errorf("circuit breaker is OPEN (failed %d times, waiting %.0fs)",
			cb.failures, time.Until(cb.lastFailureTime.Add(cb.timeout)).Seconds())

	case StateHalfOpen:
		if cb.halfOpenAttempts >= cb.halfOpenMaxTries {
			return fmt.Errorf("circuit breaker is HALF-OPEN (max test attempts reached)")
		}
		cb.halfOpenAttempts++
		return nil

	default:
		return fmt.Errorf("circuit breaker in unknown state")
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
			cb.lastStateChange = time.Now()
		}

	case StateHalfOpen:
		cb.state = StateOpen
		cb.halfOpenAttempts = 0
		cb.lastStateChange = time.Now()
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		if cb.halfOpenAttempts >= cb.halfOpenMaxTries {
			cb.state = StateClosed
			cb.failures = 0
			cb.halfOpenAttempts = 0
			cb.lastStateChange = time.Now()
		}
	}
}

// GetState returns the current circuit state, exposed for metrics/logging
// in pci.CircuitBreakerAdapter.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns a point-in-time snapshot, used when logging an OPEN
// transition.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		State:                    cb.state,
		Failures:                 cb.failures,
		LastFailureTime:          cb.lastFailureTime,
		LastStateChange:          cb.lastStateChange,
		HalfOpenAttempts:         cb.halfOpenAttempts,
		TimeSinceLastStateChange: time.Since(cb.lastStateChange),
	}
}

// CircuitBreakerStats is a snapshot of a CircuitBreaker's internal counters.
type CircuitBreakerStats struct {
	State                    CircuitState
	Failures                 int
	LastFailureTime          time.Time
	LastStateChange          time.Time
	HalfOpenAttempts         int
	TimeSinceLastStateChange time.Duration
}
