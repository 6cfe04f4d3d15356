package pci

import (
	"context"
	"fmt"
	"time"

	"github.com/tarm/serial"

	"cbus-mqtt-bridge/pkg/logger"
)

// SerialConnector speaks the PCI protocol over a locally attached serial
// port, the usual case for a PC Interface wired directly to the host.
type SerialConnector struct {
	base

	devicePath string
	baudRate   int
	retryDelay time.Duration
}

// NewSerialConnector builds a connector for the given device path (e.g.
// "/dev/ttyUSB0"). baudRate defaults to 9600, the PCI's fixed rate, when 0.
func NewSerialConnector(devicePath string, baudRate int, retryDelay time.Duration) *SerialConnector {
	if baudRate == 0 {
		baudRate = 9600
	}
	if retryDelay == 0 {
		retryDelay = 5 * time.Second
	}
	return &SerialConnector{devicePath: devicePath, baudRate: baudRate, retryDelay: retryDelay}
}

// Connect opens the serial port, retrying indefinitely until it succeeds or
// ctx is cancelled.
func (s *SerialConnector) Connect(ctx context.Context) error {
	attempt := 1
	for {
		logger.LogDebug("Attempting to open serial port %s (attempt %d)...", s.devicePath, attempt)

		port, err := serial.OpenPort(&serial.Config{
			Name:        s.devicePath,
			Baud:        s.baudRate,
			ReadTimeout: 0,
		})
		if err != nil {
			logger.LogError("Serial port open failed (attempt %d): %v", attempt, err)
			logger.LogInfo("Retrying in %.0f seconds...", s.retryDelay.Seconds())
			select {
			case <-ctx.Done():
				return fmt.Errorf("serial connect cancelled: %w", ctx.Err())
			case <-time.After(s.retryDelay):
				attempt++
				continue
			}
		}

		s.attach(port)
		logger.LogInfo("Serial port %s opened after %d attempts", s.devicePath, attempt)
		return nil
	}
}

var _ Adapter = (*SerialConnector)(nil)
