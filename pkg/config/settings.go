package config

import "time"

// MQTTSettings contains only MQTT-specific configuration. Used for
// dependency injection to avoid coupling consumers to the full Config.
type MQTTSettings struct {
	Broker     string
	Port       int
	Username   string
	Password   string
	ClientID   string
	RetryDelay time.Duration
	KeepAlive  time.Duration
	TLS        TLSConfig
}

// NewMQTTSettings extracts MQTT settings from the full config.
func NewMQTTSettings(cfg *Config) MQTTSettings {
	return MQTTSettings{
		Broker:     cfg.MQTT.Broker,
		Port:       cfg.MQTT.Port,
		Username:   cfg.MQTT.Username,
		Password:   cfg.MQTT.Password,
		ClientID:   cfg.MQTT.ClientID,
		RetryDelay: time.Duration(cfg.MQTT.RetryDelay) * time.Millisecond,
		KeepAlive:  time.Duration(cfg.MQTT.KeepAlive) * time.Second,
		TLS:        cfg.MQTT.TLS,
	}
}

// PCISettings contains only PC Interface transport configuration.
type PCISettings struct {
	Transport           string
	SerialDevice        string
	SerialBaud          int
	TCPAddress          string
	DialTimeout         time.Duration
	RetryDelay          time.Duration
	CircuitBreaker      CircuitBreakerConfig
	TimeSyncInterval    time.Duration
	AnswerClockRequests bool
}

// NewPCISettings extracts PCI transport settings from the full config.
func NewPCISettings(cfg *Config) PCISettings {
	return PCISettings{
		Transport:           cfg.PCI.Transport,
		SerialDevice:        cfg.PCI.SerialDevice,
		SerialBaud:          cfg.PCI.SerialBaud,
		TCPAddress:          cfg.PCI.TCPAddress,
		DialTimeout:         time.Duration(cfg.PCI.DialTimeoutMs) * time.Millisecond,
		RetryDelay:          time.Duration(cfg.PCI.RetryDelayMs) * time.Millisecond,
		CircuitBreaker:      cfg.PCI.CircuitBreaker,
		TimeSyncInterval:    time.Duration(cfg.PCI.TimeSyncIntervalSec) * time.Second,
		AnswerClockRequests: cfg.PCI.AnswerClockRequests,
	}
}

// DeviceMapSettings contains only the group-address classification lists.
type DeviceMapSettings struct {
	NonDimmable   []int
	Switches      []int
	BinarySensors []int
	Ignore        []int
}

// NewDeviceMapSettings extracts the device map from the full config.
func NewDeviceMapSettings(cfg *Config) DeviceMapSettings {
	return DeviceMapSettings{
		NonDimmable:   cfg.Devices.NonDimmable,
		Switches:      cfg.Devices.Switches,
		BinarySensors: cfg.Devices.BinarySensors,
		Ignore:        cfg.Devices.Ignore,
	}
}

// DispatchSettings contains only the command-dispatch engine's timing and
// capacity configuration.
type DispatchSettings struct {
	InterFrameGap       time.Duration
	ConfirmationTimeout time.Duration
	WatchdogPeriod      time.Duration
	MaxAttempts         int
	QueueCapacity       int
}

// NewDispatchSettings extracts dispatch settings from the full config.
func NewDispatchSettings(cfg *Config) DispatchSettings {
	return DispatchSettings{
		InterFrameGap:       time.Duration(cfg.Dispatch.InterFrameGapMs) * time.Millisecond,
		ConfirmationTimeout: time.Duration(cfg.Dispatch.ConfirmationTimeoutMs) * time.Millisecond,
		WatchdogPeriod:      time.Duration(cfg.Dispatch.WatchdogPeriodMs) * time.Millisecond,
		MaxAttempts:         cfg.Dispatch.MaxAttempts,
		QueueCapacity:       cfg.Dispatch.QueueCapacity,
	}
}

// DiscoverySettings contains only Home Assistant discovery configuration.
type DiscoverySettings struct {
	DiscoveryPrefix string
	StatusTopic     string
	LabelsFile      string
}

// NewDiscoverySettings extracts discovery settings from the full config.
func NewDiscoverySettings(cfg *Config) DiscoverySettings {
	return DiscoverySettings{
		DiscoveryPrefix: cfg.HomeAssistant.DiscoveryPrefix,
		StatusTopic:     cfg.HomeAssistant.StatusTopic,
		LabelsFile:      cfg.Project.LabelsFile,
	}
}
