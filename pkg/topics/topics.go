// Package topics implements the Topic Codec: pure functions mapping a
// group address and device kind to the MQTT topic strings used across the
// bridge, and back.
package topics

import (
	"fmt"
	"strconv"
	"strings"

	cbuserrors "cbus-mqtt-bridge/pkg/errors"
)

const (
	// MinGA and MaxGA bound the closed range of valid C-Bus group addresses.
	MinGA = 1
	MaxGA = 255

	lightPrefix        = "homeassistant/light"
	switchPrefix       = "homeassistant/switch"
	binarySensorPrefix = "homeassistant/binary_sensor"

	setSuffix    = "set"
	stateSuffix  = "state"
	configSuffix = "config"
)

// MetaDeviceConfigTopic is the process-wide availability sensor discovery
// topic, published once per MQTT (re-)connect regardless of GA.
const MetaDeviceConfigTopic = binarySensorPrefix + "/cbus_cmqttd/config"

// DiagnosticTopic carries non-retained JSON error reports surfaced through
// pkg/errors's ErrorHandler, independent of any single group address.
const DiagnosticTopic = "cbus_cmqttd/diagnostic"

func entity(ga int) string {
	return fmt.Sprintf("cbus_%d", ga)
}

// LightConfigTopic, LightSetTopic and LightStateTopic build the three
// light-domain topics for a group address.
func LightConfigTopic(ga int) string { return fmt.Sprintf("%s/%s/%s", lightPrefix, entity(ga), configSuffix) }
func LightSetTopic(ga int) string    { return fmt.Sprintf("%s/%s/%s", lightPrefix, entity(ga), setSuffix) }
func LightStateTopic(ga int) string  { return fmt.Sprintf("%s/%s/%s", lightPrefix, entity(ga), stateSuffix) }

// SwitchConfigTopic, SwitchSetTopic and SwitchStateTopic build the three
// switch-domain topics for a group address.
func SwitchConfigTopic(ga int) string {
	return fmt.Sprintf("%s/%s/%s", switchPrefix, entity(ga), configSuffix)
}
func SwitchSetTopic(ga int) string {
	return fmt.Sprintf("%s/%s/%s", switchPrefix, entity(ga), setSuffix)
}
func SwitchStateTopic(ga int) string {
	return fmt.Sprintf("%s/%s/%s", switchPrefix, entity(ga), stateSuffix)
}

// BinarySensorConfigTopic and BinarySensorStateTopic build the two
// binary_sensor-domain topics for a group address (binary sensors have no
// set topic; they are bus-driven only).
func BinarySensorConfigTopic(ga int) string {
	return fmt.Sprintf("%s/%s/%s", binarySensorPrefix, entity(ga), configSuffix)
}
func BinarySensorStateTopic(ga int) string {
	return fmt.Sprintf("%s/%s/%s", binarySensorPrefix, entity(ga), stateSuffix)
}

// ValidGA reports whether ga falls in the closed [MinGA, MaxGA] range.
func ValidGA(ga int) bool {
	return ga >= MinGA && ga <= MaxGA
}

// ParseSetTopic resolves the group address encoded in a light or switch set
// topic. It fails with InvalidTopic when neither the light nor the switch
// prefix matches, the suffix is not "set", or the extracted integer falls
// outside the GA range.
func ParseSetTopic(topic string) (int, error) {
	for _, prefix := range []string{lightPrefix, switchPrefix} {
		rest, ok := strings.CutPrefix(topic, prefix+"/cbus_")
		if !ok {
			continue
		}
		ga, suffixOK := splitEntitySuffix(rest, setSuffix)
		if !suffixOK {
			return 0, cbuserrors.NewTopicError("parse_set_topic", fmt.Errorf("not a set topic"), topic)
		}
		n, err := strconv.Atoi(ga)
		if err != nil || !ValidGA(n) {
			return 0, cbuserrors.NewTopicError("parse_set_topic", fmt.Errorf("group address out of range"), topic)
		}
		return n, nil
	}
	return 0, cbuserrors.NewTopicError("parse_set_topic", fmt.Errorf("unrecognized topic prefix"), topic)
}

func splitEntitySuffix(rest, wantSuffix string) (ga string, ok bool) {
	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return "", false
	}
	if rest[idx+1:] != wantSuffix {
		return "", false
	}
	return rest[:idx], true
}
