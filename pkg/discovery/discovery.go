// Package discovery implements the Discovery Publisher: at MQTT-connect
// time it announces a Home Assistant retained config topic for every
// non-ignored group address and subscribes to the corresponding set
// topics.
package discovery

import (
	"encoding/json"
	"fmt"

	"cbus-mqtt-bridge/pkg/classify"
	"cbus-mqtt-bridge/pkg/logger"
	"cbus-mqtt-bridge/pkg/topics"
)

// Publisher is the narrow MQTT surface needed to announce retained config
// topics.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Subscriber is the narrow MQTT surface needed to subscribe to set topics.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
}

// DeviceInfo is the HA discovery "device" block shared by every entity
// this bridge announces.
type DeviceInfo struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Connections  [][]string `json:"connections,omitempty"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

// LightConfig is the discovery document for a Dimmable or NonDimmable GA.
type LightConfig struct {
	Name                string     `json:"name"`
	UniqueID            string     `json:"unique_id"`
	CommandTopic        string     `json:"command_topic"`
	StateTopic          string     `json:"state_topic"`
	Schema              string     `json:"schema"`
	SupportedColorModes []string   `json:"supported_color_modes"`
	Device              DeviceInfo `json:"device"`
}

// SwitchConfig is the discovery document for a Switch GA.
type SwitchConfig struct {
	Name         string     `json:"name"`
	UniqueID     string     `json:"unique_id"`
	CommandTopic string     `json:"command_topic"`
	StateTopic   string     `json:"state_topic"`
	Schema       string     `json:"schema"`
	Device       DeviceInfo `json:"device"`
}

// BinarySensorConfig is the discovery document for a BinarySensor GA; it
// carries no command topic since binary sensors are bus-driven only.
type BinarySensorConfig struct {
	Name       string     `json:"name"`
	UniqueID   string     `json:"unique_id"`
	StateTopic string     `json:"state_topic"`
	Device     DeviceInfo `json:"device"`
}

// MetaDeviceConfig describes the bridge process itself as a binary_sensor
// entity, published once regardless of which GAs are configured.
type MetaDeviceConfig struct {
	Name     string     `json:"name"`
	UniqueID string     `json:"unique_id"`
	Device   DeviceInfo `json:"device"`
}

const (
	manufacturer = "micolous by wazza_aus"
	model        = "cbus2ha"
	metaDeviceID = "cbus_mqttd"
)

// Labels maps a group address to its human-readable project-file name,
// populated by pkg/project. A nil Labels falls back to a generated name
// for every GA.
type Labels map[int]string

// Announcer publishes discovery config topics and subscribes to the set
// topics they describe.
type Announcer struct {
	publisher  Publisher
	subscriber Subscriber
	classifier *classify.Map
	labels     Labels
}

// New builds an Announcer.
func New(publisher Publisher, subscriber Subscriber, classifier *classify.Map, labels Labels) *Announcer {
	return &Announcer{publisher: publisher, subscriber: subscriber, classifier: classifier, labels: labels}
}

// PublishAll walks every GA in [MinGA, MaxGA], publishes a discovery config
// topic for each non-ignored kind, subscribes its set topic (skipping
// BinarySensor, which is bus-driven only), and always publishes the meta
// device config once.
func (a *Announcer) PublishAll(setHandler func(topic string, payload []byte)) error {
	if err := a.publishMeta(); err != nil {
		return err
	}

	published := 0
	for ga := topics.MinGA; ga <= topics.MaxGA; ga++ {
		kind := a.classifier.KindOf(ga)
		if kind == classify.Ignore {
			continue
		}

		if err := a.publishEntity(ga, kind); err != nil {
			return err
		}
		if kind != classify.BinarySensor {
			if err := a.subscribeSet(ga, setHandler); err != nil {
				return err
			}
		}
		published++
	}

	logger.LogInfo("discovery: published config for %d group address(es)", published)
	return nil
}

func (a *Announcer) publishEntity(ga int, kind classify.Kind) error {
	switch kind {
	case classify.Switch:
		return a.publishJSON(topics.SwitchConfigTopic(ga), SwitchConfig{
			Name:         a.nameFor(ga, kind),
			UniqueID:     fmt.Sprintf("cbus_switch_%d", ga),
			CommandTopic: topics.SwitchSetTopic(ga),
			StateTopic:   topics.SwitchStateTopic(ga),
			Schema:       "json",
			Device:       a.deviceFor(ga, kind),
		})
	case classify.BinarySensor:
		return a.publishJSON(topics.BinarySensorConfigTopic(ga), BinarySensorConfig{
			Name:       a.nameFor(ga, kind),
			UniqueID:   fmt.Sprintf("cbus_binary_sensor_%d", ga),
			StateTopic: topics.BinarySensorStateTopic(ga),
			Device:     a.deviceFor(ga, kind),
		})
	case classify.NonDimmable:
		return a.publishLight(ga, kind, []string{"onoff"})
	default:
		return a.publishLight(ga, kind, []string{"brightness"})
	}
}

func (a *Announcer) publishLight(ga int, kind classify.Kind, colorModes []string) error {
	return a.publishJSON(topics.LightConfigTopic(ga), LightConfig{
		Name:                a.nameFor(ga, kind),
		UniqueID:            fmt.Sprintf("cbus_light_%d", ga),
		CommandTopic:        topics.LightSetTopic(ga),
		StateTopic:          topics.LightStateTopic(ga),
		Schema:              "json",
		SupportedColorModes: colorModes,
		Device:              a.deviceFor(ga, kind),
	})
}

func (a *Announcer) publishMeta() error {
	return a.publishJSON(topics.MetaDeviceConfigTopic, MetaDeviceConfig{
		Name:     "cbus2ha",
		UniqueID: metaDeviceID,
		Device: DeviceInfo{
			Name:         "cbus2ha",
			Identifiers:  []string{metaDeviceID},
			Manufacturer: manufacturer,
			Model:        model,
		},
	})
}

// subscribeSet subscribes both the light-prefix and switch-prefix set
// topics for ga, regardless of kind, so Home Assistant can drive the GA
// through either entity representation.
func (a *Announcer) subscribeSet(ga int, handler func(topic string, payload []byte)) error {
	if err := a.subscriber.Subscribe(topics.LightSetTopic(ga), 2, handler); err != nil {
		return err
	}
	return a.subscriber.Subscribe(topics.SwitchSetTopic(ga), 2, handler)
}

func (a *Announcer) publishJSON(topic string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("discovery: encode %s: %w", topic, err)
	}
	return a.publisher.Publish(topic, 1, true, body)
}

func (a *Announcer) deviceFor(ga int, kind classify.Kind) DeviceInfo {
	id := fmt.Sprintf("cbus_%s_%d", entityKind(kind), ga)
	return DeviceInfo{
		Name:         a.nameFor(ga, kind),
		Identifiers:  []string{id},
		Connections:  [][]string{{"cbus_group_address", fmt.Sprintf("%d", ga)}},
		Manufacturer: manufacturer,
		Model:        model,
		ViaDevice:    metaDeviceID,
	}
}

func (a *Announcer) nameFor(ga int, kind classify.Kind) string {
	if a.labels != nil {
		if name, ok := a.labels[ga]; ok && name != "" {
			return name
		}
	}
	return fmt.Sprintf("C-Bus %s %03d", kindLabel(kind), ga)
}

func entityKind(kind classify.Kind) string {
	switch kind {
	case classify.Switch:
		return "switch"
	case classify.BinarySensor:
		return "binary_sensor"
	default:
		return "light"
	}
}

func kindLabel(kind classify.Kind) string {
	switch kind {
	case classify.Switch:
		return "Switch"
	case classify.BinarySensor:
		return "Binary Sensor"
	default:
		return "Light"
	}
}
