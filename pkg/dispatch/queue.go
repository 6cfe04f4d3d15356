package dispatch

import (
	"time"

	"cbus-mqtt-bridge/pkg/payload"
)

// QueuedCommand is a CommandIntent in flight through the dispatcher,
// carrying the retry bookkeeping the spec's QueuedCommand type describes.
type QueuedCommand struct {
	Intent     payload.Intent
	Attempts   int
	IsRetry    bool
	EnqueuedAt time.Time
}

// pendingEntry is the Pending Map's value: the in-flight command together
// with the time its frame was written, used by the watchdog to detect a
// confirmation timeout.
type pendingEntry struct {
	cmd    *QueuedCommand
	sentAt time.Time
}
