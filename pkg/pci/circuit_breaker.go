package pci

import (
	"context"
	"time"

	"cbus-mqtt-bridge/pkg/logger"
	"cbus-mqtt-bridge/pkg/recovery"
)

// CircuitBreakerAdapter wraps an Adapter with the circuit breaker pattern,
// fast-failing SendOn/SendOff/SendRamp once the underlying transport has
// failed repeatedly instead of letting every queued command wait out its
// own confirmation timeout.
type CircuitBreakerAdapter struct {
	adapter        Adapter
	circuitBreaker *recovery.CircuitBreaker
	lastLogTime    time.Time
}

// NewCircuitBreakerAdapter wraps adapter with a circuit breaker built from
// config.
func NewCircuitBreakerAdapter(adapter Adapter, config recovery.CircuitBreakerConfig) *CircuitBreakerAdapter {
	cb := recovery.NewCircuitBreaker(config)

	logger.LogInfo("Circuit breaker initialized for PCI adapter (MaxFailures: %d, Timeout: %s)",
		config.MaxFailures, config.Timeout)

	return &CircuitBreakerAdapter{
		adapter:        adapter,
		circuitBreaker: cb,
		lastLogTime:    time.Now(),
	}
}

func (c *CircuitBreakerAdapter) Connect(ctx context.Context) error { return c.adapter.Connect(ctx) }
func (c *CircuitBreakerAdapter) Disconnect()                       { c.adapter.Disconnect() }
func (c *CircuitBreakerAdapter) IsConnected() bool                 { return c.adapter.IsConnected() }

func (c *CircuitBreakerAdapter) SendOn(ga int) (Token, error) {
	var token Token
	err := c.circuitBreaker.Call(func() error {
		var callErr error
		token, callErr = c.adapter.SendOn(ga)
		return callErr
	})
	c.logStateIfChanged()
	return token, err
}

func (c *CircuitBreakerAdapter) SendOff(ga int) (Token, error) {
	var token Token
	err := c.circuitBreaker.Call(func() error {
		var callErr error
		token, callErr = c.adapter.SendOff(ga)
		return callErr
	})
	c.logStateIfChanged()
	return token, err
}

func (c *CircuitBreakerAdapter) SendRamp(ga int, duration uint16, level uint8) (Token, error) {
	var token Token
	err := c.circuitBreaker.Call(func() error {
		var callErr error
		token, callErr = c.adapter.SendRamp(ga, duration, level)
		return callErr
	})
	c.logStateIfChanged()
	return token, err
}

func (c *CircuitBreakerAdapter) OnConfirmation(fn func(Token, bool)) { c.adapter.OnConfirmation(fn) }
func (c *CircuitBreakerAdapter) OnBusEvent(fn func(BusEvent))        { c.adapter.OnBusEvent(fn) }
func (c *CircuitBreakerAdapter) OnClockRequest(fn func())            { c.adapter.OnClockRequest(fn) }

// GetState returns the current circuit breaker state, exposed for metrics.
func (c *CircuitBreakerAdapter) GetState() recovery.CircuitState {
	return c.circuitBreaker.GetState()
}

// logStateIfChanged logs the circuit breaker's current state, at most once
// a minute so a flapping transport doesn't flood the log. It does not
// compare against the previously logged state, so an unchanged state is
// logged again once the minute has passed.
func (c *CircuitBreakerAdapter) logStateIfChanged() {
	if time.Since(c.lastLogTime) <= time.Minute {
		return
	}
	switch c.circuitBreaker.GetState() {
	case recovery.StateClosed:
		logger.LogDebug("Circuit breaker: CLOSED (normal operation)")
	case recovery.StateOpen:
		stats := c.circuitBreaker.GetStats()
		logger.LogWarn("Circuit breaker: OPEN (failures: %d, fast-failing sends)", stats.Failures)
	case recovery.StateHalfOpen:
		logger.LogInfo("Circuit breaker: HALF-OPEN (testing recovery)")
	}
	c.lastLogTime = time.Now()
}

var _ Adapter = (*CircuitBreakerAdapter)(nil)
