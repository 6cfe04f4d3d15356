package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestTransportErrorCreation(t *testing.T) {
	baseErr := fmt.Errorf("write timeout")
	transportErr := NewTransportError("send_on", baseErr, 12)

	if transportErr.GroupAddress != 12 {
		t.Errorf("expected GA 12, got %d", transportErr.GroupAddress)
	}
	if transportErr.Severity != SeverityError {
		t.Errorf("expected SeverityError, got %s", transportErr.Severity)
	}

	errMsg := transportErr.Error()
	if errMsg == "" {
		t.Error("expected non-empty error message")
	}
}

func TestMQTTErrorCreation(t *testing.T) {
	baseErr := fmt.Errorf("connection timeout")
	mqttErr := NewMQTTError("connect", baseErr, "localhost:1883")
	mqttErr.Topic = "homeassistant/light/cbus_12/state"

	if mqttErr.Broker != "localhost:1883" {
		t.Errorf("expected Broker 'localhost:1883', got '%s'", mqttErr.Broker)
	}
	if mqttErr.Topic != "homeassistant/light/cbus_12/state" {
		t.Errorf("expected Topic set, got '%s'", mqttErr.Topic)
	}

	errMsg := mqttErr.Error()
	if errMsg == "" {
		t.Error("expected non-empty error message")
	}
}

func TestErrorUnwrapping(t *testing.T) {
	baseErr := fmt.Errorf("base error")
	transportErr := NewTransportError("send_off", baseErr, 5)

	unwrapped := errors.Unwrap(transportErr)
	if unwrapped != baseErr {
		t.Error("expected to unwrap to base error")
	}
}

func TestErrorTypeAssertion(t *testing.T) {
	baseErr := fmt.Errorf("confirmation lost")
	exhausted := NewExhaustedRetriesError(5, 4)

	var err error = exhausted

	switch e := err.(type) {
	case *ExhaustedRetriesError:
		if e.GroupAddress != 5 {
			t.Errorf("expected GA 5, got %d", e.GroupAddress)
		}
		if e.Attempts != 4 {
			t.Errorf("expected Attempts 4, got %d", e.Attempts)
		}
	case *TransportError:
		t.Error("expected ExhaustedRetriesError, got TransportError")
	default:
		t.Error("expected ExhaustedRetriesError, got unknown type")
	}
	_ = baseErr
}

func TestErrorSeverity(t *testing.T) {
	transportErr := NewTransportError("send_on", fmt.Errorf("test error"), 1)
	if transportErr.Severity != SeverityError {
		t.Errorf("expected SeverityError, got %s", transportErr.Severity)
	}

	rejected := NewRejectedError(7, "ignored group address")
	if rejected.Severity != SeverityInfo {
		t.Errorf("expected SeverityInfo, got %s", rejected.Severity)
	}

	configErr := NewConfigError("test", fmt.Errorf("test error"), "field")
	if configErr.Severity != SeverityWarning {
		t.Errorf("expected SeverityWarning, got %s", configErr.Severity)
	}

	validationErr := NewValidationError("field", "expected", "actual")
	if validationErr.Severity != SeverityWarning {
		t.Errorf("expected SeverityWarning, got %s", validationErr.Severity)
	}
}

func TestErrorCodes(t *testing.T) {
	configErr := NewConfigError("test", fmt.Errorf("test"), "field")
	if configErr.Code != 1 {
		t.Errorf("expected Code 1, got %d", configErr.Code)
	}

	transportErr := NewTransportError("test", fmt.Errorf("test"), 1)
	if transportErr.Code != 13 {
		t.Errorf("expected Code 13, got %d", transportErr.Code)
	}

	mqttErr := NewMQTTError("test", fmt.Errorf("test"), "broker")
	if mqttErr.Code != 4 {
		t.Errorf("expected Code 4, got %d", mqttErr.Code)
	}

	exhausted := NewExhaustedRetriesError(1, 4)
	if exhausted.Code != 15 {
		t.Errorf("expected Code 15, got %d", exhausted.Code)
	}
}
