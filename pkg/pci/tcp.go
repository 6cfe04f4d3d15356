package pci

import (
	"context"
	"fmt"
	"net"
	"time"

	"cbus-mqtt-bridge/pkg/logger"
)

// TCPConnector speaks the PCI protocol over a TCP-tunneled CNI (C-Bus
// Network Interface), the usual case when the interface sits on a
// dedicated IP-connected gateway rather than the host's own serial port.
type TCPConnector struct {
	base

	address     string
	dialTimeout time.Duration
	retryDelay  time.Duration
}

// NewTCPConnector builds a connector for address (host:port).
func NewTCPConnector(address string, dialTimeout, retryDelay time.Duration) *TCPConnector {
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	if retryDelay == 0 {
		retryDelay = 5 * time.Second
	}
	return &TCPConnector{address: address, dialTimeout: dialTimeout, retryDelay: retryDelay}
}

// Connect dials the CNI, retrying indefinitely until it succeeds or ctx is
// cancelled.
func (t *TCPConnector) Connect(ctx context.Context) error {
	attempt := 1
	for {
		logger.LogDebug("Attempting to dial CNI at %s (attempt %d)...", t.address, attempt)

		conn, err := net.DialTimeout("tcp", t.address, t.dialTimeout)
		if err != nil {
			logger.LogError("CNI dial failed (attempt %d): %v", attempt, err)
			logger.LogInfo("Retrying in %.0f seconds...", t.retryDelay.Seconds())
			select {
			case <-ctx.Done():
				return fmt.Errorf("tcp connect cancelled: %w", ctx.Err())
			case <-time.After(t.retryDelay):
				attempt++
				continue
			}
		}

		t.attach(conn)
		logger.LogInfo("CNI at %s connected after %d attempts", t.address, attempt)
		return nil
	}
}

var _ Adapter = (*TCPConnector)(nil)
