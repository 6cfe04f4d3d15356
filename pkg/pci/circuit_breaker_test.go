package pci

import (
	"context"
	"errors"
	"testing"
	"time"

	"cbus-mqtt-bridge/pkg/recovery"
)

type mockAdapter struct {
	shouldFail bool
	callCount  int
	connected  bool
}

func (m *mockAdapter) Connect(ctx context.Context) error { m.connected = true; return nil }
func (m *mockAdapter) Disconnect()                       { m.connected = false }
func (m *mockAdapter) IsConnected() bool                 { return m.connected }

func (m *mockAdapter) SendOn(ga int) (Token, error) {
	m.callCount++
	if m.shouldFail {
		return Token{}, errors.New("mock transport error")
	}
	return NewToken(1), nil
}

func (m *mockAdapter) SendOff(ga int) (Token, error) { return m.SendOn(ga) }

func (m *mockAdapter) SendRamp(ga int, duration uint16, level uint8) (Token, error) {
	return m.SendOn(ga)
}

func (m *mockAdapter) OnConfirmation(fn func(Token, bool)) {}
func (m *mockAdapter) OnBusEvent(fn func(BusEvent))        {}
func (m *mockAdapter) OnClockRequest(fn func())            {}

func TestCircuitBreakerAdapterNormalOperation(t *testing.T) {
	mock := &mockAdapter{connected: true}
	config := recovery.CircuitBreakerConfig{MaxFailures: 3, Timeout: time.Second, HalfOpenMaxTries: 2}
	adapter := NewCircuitBreakerAdapter(mock, config)

	token, err := adapter.SendOn(5)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if token.IsZero() {
		t.Fatal("expected a non-zero token")
	}
	if adapter.GetState() != recovery.StateClosed {
		t.Fatalf("expected circuit CLOSED, got %s", adapter.GetState())
	}
}

func TestCircuitBreakerAdapterOpensAfterFailures(t *testing.T) {
	mock := &mockAdapter{shouldFail: true, connected: true}
	config := recovery.CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxTries: 1}
	adapter := NewCircuitBreakerAdapter(mock, config)

	for i := 0; i < 2; i++ {
		if _, err := adapter.SendOn(5); err == nil {
			t.Fatal("expected failure from mock adapter")
		}
	}

	if adapter.GetState() != recovery.StateOpen {
		t.Fatalf("expected circuit OPEN after reaching MaxFailures, got %s", adapter.GetState())
	}

	callsBefore := mock.callCount
	if _, err := adapter.SendOn(5); err == nil {
		t.Fatal("expected circuit breaker to reject the call")
	}
	if mock.callCount != callsBefore {
		t.Fatal("expected the underlying adapter not to be called while OPEN")
	}
}

func TestTokenAllocatorSkipsZero(t *testing.T) {
	var c tokenCounter
	for i := 0; i < 1000; i++ {
		if tok := c.allocate(); tok.IsZero() {
			t.Fatal("allocate() must never hand out the zero token")
		}
	}
}

func TestFrameEncoding(t *testing.T) {
	token := NewToken(0x42)
	on := encodeOn(7, token)
	if on[0] != opLightOn || on[1] != 7 || on[2] != 0x42 {
		t.Fatalf("unexpected on frame: %v", on)
	}

	off := encodeOff(7, token)
	if off[0] != opLightOff {
		t.Fatalf("unexpected off frame opcode: %v", off)
	}

	ramp := encodeRamp(7, 0x0105, 128, token)
	if ramp[0] != opLightRamp || ramp[1] != 7 || ramp[2] != 0x01 || ramp[3] != 0x05 || ramp[4] != 128 || ramp[5] != 0x42 {
		t.Fatalf("unexpected ramp frame: %v", ramp)
	}
}
