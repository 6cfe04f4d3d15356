package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	cbuserrors "cbus-mqtt-bridge/pkg/errors"
	"cbus-mqtt-bridge/pkg/logger"
)

// Config represents the complete application configuration.
type Config struct {
	MQTT          MQTTConfig           `yaml:"mqtt"`
	HomeAssistant HAConfig             `yaml:"homeassistant"`
	PCI           PCIConfig            `yaml:"pci"`
	Devices       DeviceMapConfig      `yaml:"devices"`
	Dispatch      DispatchConfig       `yaml:"dispatch"`
	Project       ProjectConfig        `yaml:"project"`
	Logging       logger.LoggingConfig `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker     string    `yaml:"broker"`
	Port       int       `yaml:"port"`
	Username   string    `yaml:"username"`
	Password   string    `yaml:"password"`
	ClientID   string    `yaml:"client_id"`
	RetryDelay int       `yaml:"retry_delay"` // milliseconds between reconnect attempts
	KeepAlive  int       `yaml:"keep_alive"`  // seconds
	TLS        TLSConfig `yaml:"tls"`
}

// TLSConfig carries the certificate material for a TLS MQTT connection.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// HAConfig contains Home Assistant discovery and availability settings.
type HAConfig struct {
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	StatusTopic     string `yaml:"status_topic"`
}

// PCIConfig selects and configures the PC Interface transport.
type PCIConfig struct {
	Transport           string               `yaml:"transport"` // "serial" xor "tcp"
	SerialDevice        string               `yaml:"serial_device"`
	SerialBaud          int                  `yaml:"serial_baud"`
	TCPAddress          string               `yaml:"tcp_address"`
	DialTimeoutMs       int                  `yaml:"dial_timeout_ms"`
	RetryDelayMs        int                  `yaml:"retry_delay_ms"`
	CircuitBreaker      CircuitBreakerConfig `yaml:"circuit_breaker"`
	TimeSyncIntervalSec int                  `yaml:"time_sync_interval_seconds"` // 0 disables
	AnswerClockRequests bool                 `yaml:"answer_clock_requests"`
}

// CircuitBreakerConfig tunes the PCI adapter's circuit breaker.
type CircuitBreakerConfig struct {
	MaxFailures      int `yaml:"max_failures"`
	TimeoutSeconds   int `yaml:"timeout_seconds"`
	HalfOpenMaxTries int `yaml:"half_open_max_tries"`
}

// DeviceMapConfig lists the four disjoint group-address classifications,
// mirroring the CLI's four comma-separated list flags. Every field can
// also be supplied as a comma-separated environment variable override.
type DeviceMapConfig struct {
	NonDimmable   []int `yaml:"non_dimmable_lights"`
	Switches      []int `yaml:"switches"`
	BinarySensors []int `yaml:"binary_sensors"`
	Ignore        []int `yaml:"ignore"`
}

// DispatchConfig carries the command-dispatch engine's timing constants
// and queue capacity. Zero fields fall back to dispatch.Settings' own
// defaults.
type DispatchConfig struct {
	InterFrameGapMs       int `yaml:"inter_frame_gap_ms"`
	ConfirmationTimeoutMs int `yaml:"confirmation_timeout_ms"`
	WatchdogPeriodMs      int `yaml:"watchdog_period_ms"`
	MaxAttempts           int `yaml:"max_attempts"`
	QueueCapacity         int `yaml:"queue_capacity"`
}

// ProjectConfig points at the optional group-address label file.
type ProjectConfig struct {
	LabelsFile string `yaml:"labels_file"`
}

// Environment variables overriding the four device-map list fields.
const (
	envNonDimmable   = "CBUS_NON_DIMMABLE_LIGHTS"
	envSwitches      = "CBUS_SWITCHES"
	envBinarySensors = "CBUS_BINARY_SENSORS"
	envIgnore        = "CBUS_IGNORE"
)

// LoadConfig loads configuration from configPath, falling back to the
// usual system locations when it is empty or unreadable.
func LoadConfig(configPath string) (*Config, error) {
	paths := []string{
		configPath,
		"/etc/cbus-mqtt-bridge/config.yaml",
		"/etc/cbus-mqtt-bridge.yaml",
		"./config.yaml",
	}

	var data []byte
	var err error
	var usedPath string

	for _, path := range paths {
		if path == "" {
			continue
		}
		// #nosec G304 - paths are drawn from a hardcoded list of safe configuration locations
		data, err = os.ReadFile(path)
		if err == nil {
			usedPath = path
			break
		}
	}

	if err != nil {
		return nil, fmt.Errorf("cannot read configuration file from any of the locations: %v. Last error: %w", paths, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing configuration from %s: %w", usedPath, err)
	}

	// Enable level-gated logging now so the GA-list warnings below and the
	// success message are not dropped before NewApplication runs.
	logger.GlobalLogging = &config.Logging

	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", usedPath, err)
	}

	logger.LogInfo("Configuration loaded successfully from %s", usedPath)
	return &config, nil
}

// LoadConfigFromString loads configuration from a YAML string, for tests.
func LoadConfigFromString(yamlContent string) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(yamlContent), &config); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if raw, ok := os.LookupEnv(envNonDimmable); ok {
		config.Devices.NonDimmable = parseGAList(envNonDimmable, raw)
	}
	if raw, ok := os.LookupEnv(envSwitches); ok {
		config.Devices.Switches = parseGAList(envSwitches, raw)
	}
	if raw, ok := os.LookupEnv(envBinarySensors); ok {
		config.Devices.BinarySensors = parseGAList(envBinarySensors, raw)
	}
	if raw, ok := os.LookupEnv(envIgnore); ok {
		config.Devices.Ignore = parseGAList(envIgnore, raw)
	}
}

// parseGAList parses a comma-separated group-address list. A malformed
// or out-of-range entry is a configuration error: logged at WARNING and
// omitted from the result, not fatal to the whole list.
func parseGAList(field, raw string) []int {
	var gas []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 255 {
			logger.LogWarn("%v", cbuserrors.NewConfigError("parse_ga_list", fmt.Errorf("invalid group address %q", part), field))
			continue
		}
		gas = append(gas, n)
	}
	return gas
}

// Validate checks that every field the rest of the bridge depends on is
// present and consistent.
func (c *Config) Validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is not specified")
	}
	if c.MQTT.Port <= 0 {
		return fmt.Errorf("mqtt.port must be positive")
	}
	if c.HomeAssistant.StatusTopic == "" {
		return fmt.Errorf("homeassistant.status_topic is not specified")
	}

	switch c.PCI.Transport {
	case "serial":
		if c.PCI.SerialDevice == "" {
			return fmt.Errorf("pci.serial_device is required when pci.transport is \"serial\"")
		}
	case "tcp":
		if c.PCI.TCPAddress == "" {
			return fmt.Errorf("pci.tcp_address is required when pci.transport is \"tcp\"")
		}
	default:
		return fmt.Errorf("pci.transport must be \"serial\" or \"tcp\", got %q", c.PCI.Transport)
	}

	if c.Dispatch.MaxAttempts < 0 {
		return fmt.Errorf("dispatch.max_attempts must be non-negative")
	}

	return nil
}
