// Package busevents implements the Bus-Event Fan-out: translating
// unsolicited PCI bus events (another station switching a load) into
// retained MQTT state publishes, keyed by the group address's device kind.
package busevents

import (
	"cbus-mqtt-bridge/pkg/classify"
	"cbus-mqtt-bridge/pkg/logger"
	"cbus-mqtt-bridge/pkg/metrics"
	"cbus-mqtt-bridge/pkg/payload"
	"cbus-mqtt-bridge/pkg/pci"
	"cbus-mqtt-bridge/pkg/topics"
)

// Publisher is the narrow MQTT surface the fan-out needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// FanOut resolves a bus event's group address to a device kind and
// publishes the corresponding retained state topic.
type FanOut struct {
	classifier *classify.Map
	publisher  Publisher
	metrics    metrics.Collector
}

// New builds a FanOut.
func New(classifier *classify.Map, publisher Publisher) *FanOut {
	return &FanOut{classifier: classifier, publisher: publisher, metrics: metrics.NewNullCollector()}
}

// SetMetrics installs a Collector to observe fan-out publish activity.
func (f *FanOut) SetMetrics(collector metrics.Collector) {
	f.metrics = collector
}

// Handle is the callback registered with pci.Adapter.OnBusEvent.
func (f *FanOut) Handle(evt pci.BusEvent) {
	switch f.classifier.KindOf(evt.GA) {
	case classify.Ignore:
		return
	case classify.BinarySensor:
		f.publishBinarySensor(evt)
	case classify.Switch:
		f.publishSwitch(evt)
	case classify.NonDimmable:
		f.publishLight(evt, classify.NonDimmable)
	default:
		f.publishLight(evt, classify.Dimmable)
	}
}

func (f *FanOut) publishLight(evt pci.BusEvent, kind classify.Kind) {
	state, brightness, transition := stateFromBusCommand(evt.Command)
	colorMode := "brightness"
	if kind == classify.NonDimmable {
		colorMode = "onoff"
		transition = 0
		if state == "ON" {
			brightness = 255
		} else {
			brightness = 0
		}
	}

	body, err := payload.EncodeLightState(payload.StateSnapshot{
		State:      state,
		Brightness: brightness,
		Transition: transition,
		SourceAddr: evt.SourceAddr,
		ColorMode:  colorMode,
	})
	if err != nil {
		logger.LogError("busevents: GA %d state encode failed: %v", evt.GA, err)
		return
	}
	f.publish(topics.LightStateTopic(evt.GA), body)
}

func (f *FanOut) publishSwitch(evt pci.BusEvent) {
	state, _, _ := stateFromBusCommand(evt.Command)
	f.publish(topics.SwitchStateTopic(evt.GA), []byte(state))
}

func (f *FanOut) publishBinarySensor(evt pci.BusEvent) {
	state, _, _ := stateFromBusCommand(evt.Command)
	f.publish(topics.BinarySensorStateTopic(evt.GA), []byte(state))
}

func (f *FanOut) publish(topic string, body []byte) {
	if err := f.publisher.Publish(topic, 1, true, body); err != nil {
		f.metrics.IncrementPublishErrors()
		logger.LogError("busevents: publish %s failed: %v", topic, err)
		return
	}
	f.metrics.IncrementPublishSuccess()
}

// stateFromBusCommand derives the HA-facing state/brightness/transition
// triple from the raw bus command an event carries.
func stateFromBusCommand(cmd pci.BusCommand) (state string, brightness uint8, transition uint16) {
	switch cmd.Tag {
	case pci.BusOff:
		return "OFF", 0, 0
	case pci.BusRamp:
		if cmd.Level == 0 {
			return "OFF", 0, cmd.Duration
		}
		return "ON", cmd.Level, cmd.Duration
	default:
		return "ON", 255, 0
	}
}
