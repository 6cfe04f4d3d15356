package errors

import (
	"cbus-mqtt-bridge/pkg/logger"
	"context"
	"fmt"
)

// ErrorHandler provides centralized error handling for the bridge's error
// taxonomy: it logs at the right severity and optionally forwards a
// diagnostic publish so Home Assistant can surface the failure.
type ErrorHandler struct {
	diagnosticPublisher DiagnosticPublisher
}

// DiagnosticPublisher interface for publishing diagnostics
type DiagnosticPublisher interface {
	PublishDiagnostic(ctx context.Context, code int, message string) error
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(publisher DiagnosticPublisher) *ErrorHandler {
	return &ErrorHandler{
		diagnosticPublisher: publisher,
	}
}

// Handle processes an error with appropriate logging and diagnostics
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	switch e := err.(type) {
	case *TopicError:
		logger.LogError("❌ %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("topic %s: %s", e.Topic, e.Op))
	case *PayloadError:
		logger.LogError("❌ %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("payload on %s: %s", e.Topic, e.Op))
	case *RejectedError:
		logger.LogInfo("ℹ️ %s", e.Error())
	case *TransportError:
		logger.LogError("❌ %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("GA %d transport failure", e.GroupAddress))
	case *ConfirmationTimeoutError:
		logger.LogWarn("⚠️ %s", e.Error())
	case *ExhaustedRetriesError:
		logger.LogError("❌ %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("GA %d exhausted retries", e.GroupAddress))
	case *MQTTError:
		h.handleMQTTError(ctx, e)
	case *ConfigError:
		logger.LogWarn("⚠️ %s", e.Error())
		h.publish(ctx, e.Code, fmt.Sprintf("config field '%s': %s", e.Field, e.Op))
	case *ValidationError:
		logger.LogWarn("⚠️ %s", e.Error())
	case *BridgeError:
		h.handleBridgeError(ctx, e)
	default:
		logger.LogError("❌ untyped error: %v", err)
		h.publish(ctx, 99, err.Error())
	}
}

func (h *ErrorHandler) handleMQTTError(ctx context.Context, err *MQTTError) {
	switch err.Severity {
	case SeverityCritical:
		logger.LogError("🔴 CRITICAL MQTT error: %s", err.Error())
	case SeverityError:
		logger.LogError("❌ MQTT error: %s", err.Error())
	case SeverityWarning:
		logger.LogWarn("⚠️ MQTT warning: %s", err.Error())
	default:
		logger.LogInfo("ℹ️ MQTT info: %s", err.Error())
	}
	h.publish(ctx, err.Code, fmt.Sprintf("broker '%s': %s", err.Broker, err.Op))
}

func (h *ErrorHandler) handleBridgeError(ctx context.Context, err *BridgeError) {
	switch err.Severity {
	case SeverityCritical:
		logger.LogError("🔴 CRITICAL error: %s", err.Error())
	case SeverityError:
		logger.LogError("❌ error: %s", err.Error())
	case SeverityWarning:
		logger.LogWarn("⚠️ warning: %s", err.Error())
	default:
		logger.LogInfo("ℹ️ info: %s", err.Error())
	}
	h.publish(ctx, err.Code, err.Op)
}

func (h *ErrorHandler) publish(ctx context.Context, code int, message string) {
	if h.diagnosticPublisher == nil {
		return
	}
	if err := h.diagnosticPublisher.PublishDiagnostic(ctx, code, message); err != nil {
		logger.LogDebug("failed to publish diagnostic: %v", err)
	}
}

// IsRecoverable returns true if the error is recoverable. Only a
// BridgeError or MQTTError of critical severity is unrecoverable; a
// ConfigError (a bad GA that is simply omitted from the map) and every
// other category are handled locally by the caller (the dispatcher's retry
// arbitration, BEF, etc).
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}

	switch e := err.(type) {
	case *BridgeError:
		return e.Severity != SeverityCritical
	case *MQTTError:
		return e.Severity != SeverityCritical
	default:
		return true
	}
}

// GetDiagnosticCode extracts the diagnostic code from an error
func GetDiagnosticCode(err error) int {
	if err == nil {
		return 0
	}

	switch e := err.(type) {
	case *TopicError:
		return e.Code
	case *PayloadError:
		return e.Code
	case *RejectedError:
		return e.Code
	case *TransportError:
		return e.Code
	case *ConfirmationTimeoutError:
		return e.Code
	case *ExhaustedRetriesError:
		return e.Code
	case *MQTTError:
		return e.Code
	case *ConfigError:
		return e.Code
	case *ValidationError:
		return e.Code
	case *BridgeError:
		return e.Code
	default:
		return 99
	}
}
