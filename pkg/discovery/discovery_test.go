package discovery

import (
	"encoding/json"
	"testing"

	"cbus-mqtt-bridge/pkg/classify"
)

type fakeMQTT struct {
	published    map[string][]byte
	subscribed   map[string]byte
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{published: map[string][]byte{}, subscribed: map[string]byte{}}
}

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, body []byte) error {
	f.published[topic] = body
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, qos byte, handler func(string, []byte)) error {
	f.subscribed[topic] = qos
	return nil
}

func TestPublishAllAnnouncesEveryNonIgnoredGA(t *testing.T) {
	m := classify.NewMap([]int{2}, []int{3}, []int{4}, []int{5})
	mqtt := newFakeMQTT()
	a := New(mqtt, mqtt, m, nil)

	if err := a.PublishAll(func(topic string, payload []byte) {}); err != nil {
		t.Fatalf("PublishAll: %v", err)
	}

	if _, ok := mqtt.published["homeassistant/binary_sensor/cbus_cmqttd/config"]; !ok {
		t.Fatal("expected meta device config to be published")
	}

	if _, ok := mqtt.published["homeassistant/light/cbus_1/config"]; !ok {
		t.Fatal("expected default-dimmable GA 1 to get a light config")
	}
	var lightCfg LightConfig
	if err := json.Unmarshal(mqtt.published["homeassistant/light/cbus_1/config"], &lightCfg); err != nil {
		t.Fatalf("decode light config: %v", err)
	}
	if lightCfg.SupportedColorModes[0] != "brightness" {
		t.Fatalf("expected brightness color mode, got %v", lightCfg.SupportedColorModes)
	}

	if _, ok := mqtt.published["homeassistant/light/cbus_2/config"]; !ok {
		t.Fatal("expected non-dimmable GA 2 to get a light config")
	}
	var nonDimmable LightConfig
	json.Unmarshal(mqtt.published["homeassistant/light/cbus_2/config"], &nonDimmable)
	if nonDimmable.SupportedColorModes[0] != "onoff" {
		t.Fatalf("expected onoff color mode for non-dimmable, got %v", nonDimmable.SupportedColorModes)
	}

	if _, ok := mqtt.published["homeassistant/switch/cbus_3/config"]; !ok {
		t.Fatal("expected GA 3 to get a switch config")
	}
	if _, ok := mqtt.published["homeassistant/binary_sensor/cbus_4/config"]; !ok {
		t.Fatal("expected GA 4 to get a binary_sensor config")
	}
	if _, ok := mqtt.published["homeassistant/light/cbus_5/config"]; ok {
		t.Fatal("expected ignored GA 5 to get no config")
	}

	// Every non-ignored, non-BinarySensor GA subscribes both the light-
	// prefix and switch-prefix set topics, regardless of its own kind, so
	// HA can drive it through either entity representation.
	if _, ok := mqtt.subscribed["homeassistant/light/cbus_1/set"]; !ok {
		t.Fatal("expected light set topic subscription for GA 1")
	}
	if _, ok := mqtt.subscribed["homeassistant/switch/cbus_1/set"]; !ok {
		t.Fatal("expected switch set topic subscription for GA 1 too")
	}
	if _, ok := mqtt.subscribed["homeassistant/light/cbus_3/set"]; !ok {
		t.Fatal("expected light set topic subscription for GA 3 too")
	}
	if _, ok := mqtt.subscribed["homeassistant/switch/cbus_3/set"]; !ok {
		t.Fatal("expected switch set topic subscription for GA 3")
	}
	if _, ok := mqtt.subscribed["homeassistant/light/cbus_4/set"]; ok {
		t.Fatal("binary sensors have no set topic")
	}
	if _, ok := mqtt.subscribed["homeassistant/switch/cbus_4/set"]; ok {
		t.Fatal("binary sensors have no set topic")
	}
}

func TestNameFallsBackWhenNoLabel(t *testing.T) {
	m := classify.NewMap(nil, nil, nil, nil)
	mqtt := newFakeMQTT()
	a := New(mqtt, mqtt, m, Labels{1: "Kitchen Downlights"})

	if err := a.PublishAll(func(string, []byte) {}); err != nil {
		t.Fatalf("PublishAll: %v", err)
	}

	var cfg LightConfig
	json.Unmarshal(mqtt.published["homeassistant/light/cbus_1/config"], &cfg)
	if cfg.Name != "Kitchen Downlights" {
		t.Fatalf("expected labeled name, got %q", cfg.Name)
	}

	var fallback LightConfig
	json.Unmarshal(mqtt.published["homeassistant/light/cbus_2/config"], &fallback)
	if fallback.Name != "C-Bus Light 002" {
		t.Fatalf("expected generated name, got %q", fallback.Name)
	}
}
