package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	cbuserrors "cbus-mqtt-bridge/pkg/errors"
	"cbus-mqtt-bridge/pkg/logger"
	"cbus-mqtt-bridge/pkg/metrics"
	"cbus-mqtt-bridge/pkg/payload"
	"cbus-mqtt-bridge/pkg/pci"
)

// ErrQueueFull is returned by Enqueue when the fresh queue's channel
// buffer is saturated; the caller (the MQTT set-topic subscriber) is
// expected to drop the command and let Home Assistant retry.
var ErrQueueFull = errors.New("dispatch: fresh queue full")

// Publisher is the narrow surface the dispatcher needs to announce
// confirmed state; satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Dispatcher is the Command Queue & Dispatcher: it owns the Fresh Queue,
// Retry Deque and Pending Map, serializes sends to the PCI adapter behind
// a single inter-frame gate, and fans confirmed state out to MQTT.
//
// A single mutex guards fresh, retry and pending together, matching the
// requirement that retry-deque preemption over the fresh queue be decided
// in one place rather than via channel select fairness.
type Dispatcher struct {
	adapter   pci.Adapter
	publisher Publisher
	settings  Settings
	limiter   *rate.Limiter
	metrics   metrics.Collector

	freshCh chan *QueuedCommand

	mu      sync.Mutex
	fresh   []*QueuedCommand
	retry   []*QueuedCommand
	pending map[byte]*pendingEntry

	cancel context.CancelFunc
}

// NewDispatcher builds a Dispatcher. Call Start to begin processing.
func NewDispatcher(adapter pci.Adapter, publisher Publisher, settings Settings) *Dispatcher {
	settings = settings.withDefaults()
	return &Dispatcher{
		adapter:   adapter,
		publisher: publisher,
		settings:  settings,
		limiter:   rate.NewLimiter(rate.Every(settings.InterFrameGap), 1),
		freshCh:   make(chan *QueuedCommand, settings.QueueCapacity),
		pending:   make(map[byte]*pendingEntry),
		metrics:   metrics.NewNullCollector(),
	}
}

// SetMetrics installs a Collector to observe dispatch activity. Must be
// called before Start; defaults to a no-op collector.
func (d *Dispatcher) SetMetrics(collector metrics.Collector) {
	d.metrics = collector
}

// Enqueue submits a freshly decoded command intent. Non-blocking: returns
// ErrQueueFull if the fresh queue's buffer is saturated.
func (d *Dispatcher) Enqueue(intent payload.Intent) error {
	cmd := &QueuedCommand{Intent: intent, EnqueuedAt: time.Now()}
	select {
	case d.freshCh <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the dispatch loop and the timeout watchdog. It returns
// immediately; both loops run until ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.adapter.OnConfirmation(d.onConfirmation)

	go d.dispatchLoop(ctx)
	go d.watchdogLoop(ctx)

	logger.LogInfo("dispatch: started (inter-frame gap %s, confirmation timeout %s, max attempts %d)",
		d.settings.InterFrameGap, d.settings.ConfirmationTimeout, d.settings.MaxAttempts)
}

// Stop cancels both loops. Safe to call once Start has returned.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
}

// dispatchLoop drains the fresh channel into the Fresh Queue and, once per
// inter-frame gate tick, sends the next command — Retry Deque first, Fresh
// Queue otherwise.
func (d *Dispatcher) dispatchLoop(ctx context.Context) {
	for {
		next := d.popNext()
		if next == nil {
			select {
			case <-ctx.Done():
				return
			case cmd := <-d.freshCh:
				d.mu.Lock()
				d.fresh = append(d.fresh, cmd)
				d.mu.Unlock()
				continue
			case <-time.After(d.settings.WatchdogPeriod):
				continue
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return
		}
		d.send(next)
	}
}

// popNext drains any fresh arrivals into the Fresh Queue, then pops the
// Retry Deque's head if non-empty, otherwise the Fresh Queue's head.
func (d *Dispatcher) popNext() *QueuedCommand {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		select {
		case cmd := <-d.freshCh:
			d.fresh = append(d.fresh, cmd)
			continue
		default:
		}
		break
	}

	if len(d.retry) > 0 {
		cmd := d.retry[0]
		d.retry = d.retry[1:]
		return cmd
	}
	if len(d.fresh) > 0 {
		cmd := d.fresh[0]
		d.fresh = d.fresh[1:]
		return cmd
	}
	return nil
}

// send writes cmd's frame to the PCI adapter and, on success, parks it in
// the Pending Map awaiting confirmation.
func (d *Dispatcher) send(cmd *QueuedCommand) {
	cmd.Attempts++
	d.metrics.IncrementDispatchSends()

	token, err := d.writeFrame(cmd)
	if err != nil {
		d.retryOrExhaust(cmd, cbuserrors.NewTransportError("dispatch_send", err, cmd.Intent.GA))
		return
	}
	if token.IsZero() {
		d.retryOrExhaust(cmd, cbuserrors.NewTransportError("dispatch_send", errors.New("no confirmation token"), cmd.Intent.GA))
		return
	}

	d.mu.Lock()
	d.pending[token.Byte()] = &pendingEntry{cmd: cmd, sentAt: time.Now()}
	d.mu.Unlock()
}

func (d *Dispatcher) writeFrame(cmd *QueuedCommand) (pci.Token, error) {
	c := cmd.Intent.Command
	switch c.Tag {
	case payload.On:
		return d.adapter.SendOn(cmd.Intent.GA)
	case payload.Off:
		return d.adapter.SendOff(cmd.Intent.GA)
	default:
		return d.adapter.SendRamp(cmd.Intent.GA, c.Duration, c.Level)
	}
}

// onConfirmation is registered with the PCI adapter once at Start and
// correlates every confirmation against the Pending Map.
func (d *Dispatcher) onConfirmation(token pci.Token, success bool) {
	d.mu.Lock()
	entry, ok := d.pending[token.Byte()]
	if ok {
		delete(d.pending, token.Byte())
	}
	d.mu.Unlock()

	if !ok {
		logger.LogDebug("dispatch: confirmation for unknown token 0x%02X, dropping", token.Byte())
		return
	}

	if success {
		d.onConfirmed(entry.cmd)
		return
	}
	d.retryOrExhaust(entry.cmd, errors.New("negative confirmation from PCI"))
}

// watchdogLoop scans the Pending Map every WatchdogPeriod for entries that
// have outlived ConfirmationTimeout and routes them into retry arbitration.
func (d *Dispatcher) watchdogLoop(ctx context.Context) {
	ticker := time.NewTicker(d.settings.WatchdogPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.checkTimeouts()
		}
	}
}

func (d *Dispatcher) checkTimeouts() {
	now := time.Now()

	d.mu.Lock()
	var expired []*QueuedCommand
	for token, entry := range d.pending {
		if now.Sub(entry.sentAt) >= d.settings.ConfirmationTimeout {
			expired = append(expired, entry.cmd)
			delete(d.pending, token)
		}
	}
	d.mu.Unlock()

	for _, cmd := range expired {
		d.retryOrExhaust(cmd, cbuserrors.NewConfirmationTimeoutError(cmd.Intent.GA))
	}
}

// retryOrExhaust requeues cmd onto the Retry Deque unless it has already
// used its last attempt, in which case the command is dropped and its
// state topic is left unpublished.
func (d *Dispatcher) retryOrExhaust(cmd *QueuedCommand, cause error) {
	if cmd.Attempts >= d.settings.MaxAttempts {
		d.metrics.IncrementDispatchExhausted()
		logger.LogError("%v", cbuserrors.NewExhaustedRetriesError(cmd.Intent.GA, cmd.Attempts))
		return
	}
	cmd.IsRetry = true
	d.metrics.IncrementDispatchRetries()

	d.mu.Lock()
	d.retry = append(d.retry, cmd)
	d.mu.Unlock()

	logger.LogWarn("dispatch: GA %d queued for retry (attempt %d/%d): %v",
		cmd.Intent.GA, cmd.Attempts, d.settings.MaxAttempts, cause)
}

// onConfirmed publishes the command's projected state to MQTT now that the
// PCI has confirmed it took effect.
func (d *Dispatcher) onConfirmed(cmd *QueuedCommand) {
	topic, body, err := stateTopicAndPayload(cmd.Intent)
	if err != nil {
		logger.LogError("dispatch: GA %d confirmed but state encode failed: %v", cmd.Intent.GA, err)
		return
	}

	if err := d.publisher.Publish(topic, 1, true, body); err != nil {
		d.metrics.IncrementPublishErrors()
		logger.LogError("dispatch: GA %d confirmed but state publish failed: %v", cmd.Intent.GA, err)
		return
	}

	d.metrics.IncrementPublishSuccess()
	logger.LogDebug("dispatch: GA %d confirmed after %d attempt(s), published %s", cmd.Intent.GA, cmd.Attempts, topic)
}
