package metrics

// NullCollector is a zero-overhead no-op Collector. Used whenever the
// caller has no metrics sink configured.
type NullCollector struct{}

// NewNullCollector creates a NullCollector.
func NewNullCollector() *NullCollector { return &NullCollector{} }

func (n *NullCollector) IncrementDispatchSends()     {}
func (n *NullCollector) IncrementDispatchRetries()   {}
func (n *NullCollector) IncrementDispatchExhausted() {}
func (n *NullCollector) IncrementPublishSuccess()    {}
func (n *NullCollector) IncrementPublishErrors()     {}
func (n *NullCollector) SetPCIConnected(bool)        {}

var _ Collector = (*NullCollector)(nil)
