// Package metrics defines a narrow collector interface for
// dispatch/publish activity counters and a zero-overhead no-op
// implementation. Kept standard-library-only since no example repo in the
// pack imports a metrics client library for this concern.
package metrics

// Collector tracks the command-dispatch engine's and bus-event fan-out's
// activity. Implementations: InMemoryCollector and NullCollector.
type Collector interface {
	// IncrementDispatchSends counts a frame the dispatcher handed to the
	// PCI adapter, successful or not.
	IncrementDispatchSends()

	// IncrementDispatchRetries counts a command requeued after a negative
	// confirmation or a watchdog timeout.
	IncrementDispatchRetries()

	// IncrementDispatchExhausted counts a command dropped after exceeding
	// its retry budget.
	IncrementDispatchExhausted()

	// IncrementPublishSuccess counts a successful MQTT state publish (a
	// confirmed command or a bus-event fan-out). Discovery config publishes
	// are not counted.
	IncrementPublishSuccess()

	// IncrementPublishErrors counts a failed MQTT publish.
	IncrementPublishErrors()

	// SetPCIConnected records the PCI adapter's current connection state.
	SetPCIConnected(connected bool)
}
