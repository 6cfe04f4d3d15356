package config

import (
	"testing"
)

const validYAML = `
mqtt:
  broker: "tcp://localhost:1883"
  port: 1883
  client_id: "cbus-bridge"
homeassistant:
  discovery_prefix: "homeassistant"
  status_topic: "cbus2mqtt/status"
pci:
  transport: "serial"
  serial_device: "/dev/ttyUSB0"
  serial_baud: 9600
devices:
  non_dimmable_lights: [10, 11]
  switches: [20]
  binary_sensors: [30]
  ignore: [99]
dispatch:
  max_attempts: 4
logging:
  level: "info"
`

func TestLoadConfigFromStringValid(t *testing.T) {
	cfg, err := LoadConfigFromString(validYAML)
	if err != nil {
		t.Fatalf("LoadConfigFromString: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" {
		t.Fatalf("unexpected broker: %s", cfg.MQTT.Broker)
	}
	if len(cfg.Devices.NonDimmable) != 2 || cfg.Devices.NonDimmable[0] != 10 {
		t.Fatalf("unexpected non-dimmable list: %v", cfg.Devices.NonDimmable)
	}
}

func TestValidateRejectsMissingBroker(t *testing.T) {
	_, err := LoadConfigFromString(`
homeassistant:
  status_topic: "x"
pci:
  transport: "serial"
  serial_device: "/dev/ttyUSB0"
`)
	if err == nil {
		t.Fatal("expected error for missing broker")
	}
}

func TestValidateRejectsUnknownTransport(t *testing.T) {
	_, err := LoadConfigFromString(`
mqtt:
  broker: "tcp://localhost:1883"
  port: 1883
homeassistant:
  status_topic: "x"
pci:
  transport: "modem"
`)
	if err == nil {
		t.Fatal("expected error for unrecognized pci.transport")
	}
}

func TestValidateRequiresSerialDeviceForSerialTransport(t *testing.T) {
	_, err := LoadConfigFromString(`
mqtt:
  broker: "tcp://localhost:1883"
  port: 1883
homeassistant:
  status_topic: "x"
pci:
  transport: "serial"
`)
	if err == nil {
		t.Fatal("expected error for missing serial_device")
	}
}

func TestParseGAListSkipsInvalidEntries(t *testing.T) {
	gas := parseGAList("test_field", "10, 20, notanumber, 300, 30")
	want := []int{10, 20, 30}
	if len(gas) != len(want) {
		t.Fatalf("expected %v, got %v", want, gas)
	}
	for i, v := range want {
		if gas[i] != v {
			t.Fatalf("expected %v, got %v", want, gas)
		}
	}
}

func TestEnvOverrideReplacesDeviceList(t *testing.T) {
	t.Setenv(envSwitches, "40,41")

	cfg, err := LoadConfigFromString(validYAML)
	if err != nil {
		t.Fatalf("LoadConfigFromString: %v", err)
	}
	if len(cfg.Devices.Switches) != 2 || cfg.Devices.Switches[0] != 40 {
		t.Fatalf("expected env override to replace switches list, got %v", cfg.Devices.Switches)
	}
}

func TestNewMQTTSettingsExtractsFields(t *testing.T) {
	cfg, err := LoadConfigFromString(validYAML)
	if err != nil {
		t.Fatalf("LoadConfigFromString: %v", err)
	}

	settings := NewMQTTSettings(cfg)
	if settings.Broker != cfg.MQTT.Broker || settings.ClientID != "cbus-bridge" {
		t.Fatalf("unexpected MQTT settings: %+v", settings)
	}
}

func TestNewDeviceMapSettingsExtractsFields(t *testing.T) {
	cfg, err := LoadConfigFromString(validYAML)
	if err != nil {
		t.Fatalf("LoadConfigFromString: %v", err)
	}

	settings := NewDeviceMapSettings(cfg)
	if len(settings.BinarySensors) != 1 || settings.BinarySensors[0] != 30 {
		t.Fatalf("unexpected device map settings: %+v", settings)
	}
}
