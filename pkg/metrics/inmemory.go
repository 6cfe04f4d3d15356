package metrics

import "sync/atomic"

// InMemoryCollector accumulates counters in memory with no external
// dependency. Safe for concurrent use by the dispatcher, the watchdog
// loop and the bus-event fan-out simultaneously.
type InMemoryCollector struct {
	dispatchSends     int64
	dispatchRetries   int64
	dispatchExhausted int64
	publishSuccess    int64
	publishErrors     int64
	pciConnected      int64
}

// NewInMemoryCollector creates an InMemoryCollector with all counters
// zeroed.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{}
}

func (c *InMemoryCollector) IncrementDispatchSends()     { atomic.AddInt64(&c.dispatchSends, 1) }
func (c *InMemoryCollector) IncrementDispatchRetries()   { atomic.AddInt64(&c.dispatchRetries, 1) }
func (c *InMemoryCollector) IncrementDispatchExhausted() { atomic.AddInt64(&c.dispatchExhausted, 1) }
func (c *InMemoryCollector) IncrementPublishSuccess()    { atomic.AddInt64(&c.publishSuccess, 1) }
func (c *InMemoryCollector) IncrementPublishErrors()     { atomic.AddInt64(&c.publishErrors, 1) }

func (c *InMemoryCollector) SetPCIConnected(connected bool) {
	var v int64
	if connected {
		v = 1
	}
	atomic.StoreInt64(&c.pciConnected, v)
}

// Snapshot is a point-in-time read of every counter, used for logging or
// a future metrics endpoint.
type Snapshot struct {
	DispatchSends     int64
	DispatchRetries   int64
	DispatchExhausted int64
	PublishSuccess    int64
	PublishErrors     int64
	PCIConnected      bool
}

// Snapshot reads every counter atomically.
func (c *InMemoryCollector) Snapshot() Snapshot {
	return Snapshot{
		DispatchSends:     atomic.LoadInt64(&c.dispatchSends),
		DispatchRetries:   atomic.LoadInt64(&c.dispatchRetries),
		DispatchExhausted: atomic.LoadInt64(&c.dispatchExhausted),
		PublishSuccess:    atomic.LoadInt64(&c.publishSuccess),
		PublishErrors:     atomic.LoadInt64(&c.publishErrors),
		PCIConnected:      atomic.LoadInt64(&c.pciConnected) == 1,
	}
}

var _ Collector = (*InMemoryCollector)(nil)
