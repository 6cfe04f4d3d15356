// Package dispatch implements the Command Queue & Dispatcher: a
// rate-limited, confirmation-tracked, bounded-retry command pump between
// the MQTT-facing payload codec and the PCI adapter.
package dispatch

import "time"

// Default timing constants, used whenever a Settings field is left zero.
const (
	DefaultInterFrameGap       = 100 * time.Millisecond
	DefaultConfirmationTimeout = 250 * time.Millisecond
	DefaultWatchdogPeriod      = 50 * time.Millisecond
	DefaultMaxAttempts         = 4
	DefaultQueueCapacity       = 64
)

// Settings carries the four timing constants spec'd for the dispatcher
// plus the fresh-queue channel capacity. Zero-value fields fall back to
// the package defaults.
type Settings struct {
	InterFrameGap       time.Duration
	ConfirmationTimeout time.Duration
	WatchdogPeriod      time.Duration
	MaxAttempts         int
	QueueCapacity       int
}

func (s Settings) withDefaults() Settings {
	if s.InterFrameGap == 0 {
		s.InterFrameGap = DefaultInterFrameGap
	}
	if s.ConfirmationTimeout == 0 {
		s.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if s.WatchdogPeriod == 0 {
		s.WatchdogPeriod = DefaultWatchdogPeriod
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.QueueCapacity == 0 {
		s.QueueCapacity = DefaultQueueCapacity
	}
	return s
}
