package pci

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"cbus-mqtt-bridge/pkg/logger"
	cbuserrors "cbus-mqtt-bridge/pkg/errors"
)

// base is embedded by SerialConnector and TCPConnector; it owns the
// byte-oriented connection, serializes writes, and runs the read loop that
// delivers confirmations, bus events and clock requests to the registered
// callbacks. The dispatcher's 100ms inter-frame gate means writes are
// never contended in practice, but the mutex keeps SendOn/SendOff/SendRamp
// safe to call from any goroutine regardless.
type base struct {
	mu      sync.Mutex
	conn    io.ReadWriteCloser
	tokens  tokenCounter
	onConf  func(Token, bool)
	onEvent func(BusEvent)
	onClock func()
}

func (b *base) attach(conn io.ReadWriteCloser) {
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	go b.readLoop(conn)
}

func (b *base) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

func (b *base) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

func (b *base) OnConfirmation(fn func(Token, bool)) { b.onConf = fn }
func (b *base) OnBusEvent(fn func(BusEvent))         { b.onEvent = fn }
func (b *base) OnClockRequest(fn func())             { b.onClock = fn }

func (b *base) write(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return fmt.Errorf("pci: not connected")
	}
	_, err := b.conn.Write(frame)
	return err
}

// SendOn writes an on(ga) frame and returns the token the PCI will echo.
func (b *base) SendOn(ga int) (Token, error) {
	token := b.tokens.allocate()
	if err := b.write(encodeOn(ga, token)); err != nil {
		return Token{}, cbuserrors.NewTransportError("send_on", err, ga)
	}
	return token, nil
}

// SendOff writes an off(ga) frame and returns the token the PCI will echo.
func (b *base) SendOff(ga int) (Token, error) {
	token := b.tokens.allocate()
	if err := b.write(encodeOff(ga, token)); err != nil {
		return Token{}, cbuserrors.NewTransportError("send_off", err, ga)
	}
	return token, nil
}

// SendRamp writes a ramp(ga, duration, level) frame and returns the token
// the PCI will echo.
func (b *base) SendRamp(ga int, duration uint16, level uint8) (Token, error) {
	token := b.tokens.allocate()
	if err := b.write(encodeRamp(ga, duration, level, token)); err != nil {
		return Token{}, cbuserrors.NewTransportError("send_ramp", err, ga)
	}
	return token, nil
}

// readLoop parses inbound frames until the connection closes. Each frame
// starts with a one-byte header that fixes its length (confirmation: token
// and success byte; bus event: GA, source, tag and level bytes; clock
// request: no body); bytes with an unknown header are discarded one at a
// time. A real PCI protocol implementation would frame on its own escape
// sequences, which stays out of scope here.
func (b *base) readLoop(conn io.ReadWriteCloser) {
	reader := bufio.NewReader(conn)
	for {
		header, err := reader.ReadByte()
		if err != nil {
			logger.LogDebug("pci: read loop exiting: %v", err)
			return
		}

		switch header {
		case inConfirmation:
			tokenByte, err := reader.ReadByte()
			if err != nil {
				return
			}
			successByte, err := reader.ReadByte()
			if err != nil {
				return
			}
			if b.onConf != nil {
				b.onConf(NewToken(tokenByte), successByte != 0)
			}
		case inBusEvent:
			fields := make([]byte, 4)
			if _, err := io.ReadFull(reader, fields); err != nil {
				return
			}
			if b.onEvent != nil {
				b.onEvent(BusEvent{
					GA:         int(fields[0]),
					SourceAddr: int(fields[1]),
					Command: BusCommand{
						Tag:      BusCommandTag(fields[2]),
						Level:    fields[3],
					},
				})
			}
		case inClockRequest:
			if b.onClock != nil {
				b.onClock()
			}
		default:
			logger.LogDebug("pci: discarding unknown frame header 0x%02X", header)
		}
	}
}
