package busevents

import (
	"encoding/json"
	"testing"

	"cbus-mqtt-bridge/pkg/classify"
	"cbus-mqtt-bridge/pkg/pci"
)

type recorder struct {
	topic string
	body  []byte
	calls int
}

func (r *recorder) Publish(topic string, qos byte, retained bool, body []byte) error {
	r.topic = topic
	r.body = body
	r.calls++
	return nil
}

func TestFanOutPublishesLightState(t *testing.T) {
	m := classify.NewMap(nil, nil, nil, nil)
	rec := &recorder{}
	f := New(m, rec)

	f.Handle(pci.BusEvent{GA: 10, SourceAddr: 2, Command: pci.BusCommand{Tag: pci.BusOn}})

	if rec.topic != "homeassistant/light/cbus_10/state" {
		t.Fatalf("unexpected topic: %s", rec.topic)
	}
	var decoded struct {
		State      string `json:"state"`
		Brightness uint8  `json:"brightness"`
	}
	if err := json.Unmarshal(rec.body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.State != "ON" || decoded.Brightness != 255 {
		t.Fatalf("unexpected decoded state: %+v", decoded)
	}
}

func TestFanOutPublishesSwitchState(t *testing.T) {
	m := classify.NewMap(nil, []int{20}, nil, nil)
	rec := &recorder{}
	f := New(m, rec)

	f.Handle(pci.BusEvent{GA: 20, Command: pci.BusCommand{Tag: pci.BusOff}})

	if rec.topic != "homeassistant/switch/cbus_20/state" {
		t.Fatalf("unexpected topic: %s", rec.topic)
	}
	if string(rec.body) != "OFF" {
		t.Fatalf("unexpected body: %s", rec.body)
	}
}

func TestFanOutSkipsIgnoredGA(t *testing.T) {
	m := classify.NewMap(nil, nil, nil, []int{30})
	rec := &recorder{}
	f := New(m, rec)

	f.Handle(pci.BusEvent{GA: 30, Command: pci.BusCommand{Tag: pci.BusOn}})

	if rec.calls != 0 {
		t.Fatalf("expected no publish for ignored GA, got %d calls", rec.calls)
	}
}

func TestFanOutPublishesBinarySensorState(t *testing.T) {
	m := classify.NewMap(nil, nil, []int{40}, nil)
	rec := &recorder{}
	f := New(m, rec)

	f.Handle(pci.BusEvent{GA: 40, Command: pci.BusCommand{Tag: pci.BusOn}})

	if rec.topic != "homeassistant/binary_sensor/cbus_40/state" {
		t.Fatalf("unexpected topic: %s", rec.topic)
	}
	if string(rec.body) != "ON" {
		t.Fatalf("unexpected body: %s", rec.body)
	}
}
