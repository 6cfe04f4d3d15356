// Package payload implements the Payload Codec: decoding inbound MQTT set
// payloads into a normalized CommandIntent, and encoding outbound state
// payloads per device kind.
package payload

import (
	"encoding/json"
	"fmt"
	"strings"

	"cbus-mqtt-bridge/pkg/classify"
	cbuserrors "cbus-mqtt-bridge/pkg/errors"
	"cbus-mqtt-bridge/pkg/topics"
)

// CommandTag is the tagged variant of CommandKind.
type CommandTag int

const (
	On CommandTag = iota
	Off
	Ramp
)

// Command is the normalized lighting command: On, Off, or Ramp to a level
// over a duration.
type Command struct {
	Tag      CommandTag
	Duration uint16 // seconds
	Level    uint8  // 0..255
}

// StateSnapshot is the per-kind structured value used to compose the
// outbound MQTT payload.
type StateSnapshot struct {
	State         string // "ON" or "OFF"
	Brightness    uint8
	Transition    uint16
	SourceAddr    int
	ColorMode     string // "brightness" or "onoff"; empty for switch/binary_sensor
}

// Intent is the CommandIntent handed to the dispatcher: everything it
// needs to send a frame and, on confirmed success, publish state.
type Intent struct {
	GA        int
	Kind      classify.Kind
	Command   Command
	Projected StateSnapshot
}

type rawSetPayload struct {
	State      string `json:"state"`
	Brightness *int   `json:"brightness"`
	Transition *int   `json:"transition"`
}

// DecodeSetTopic runs the full inbound pipeline described by the Payload
// Codec: resolve the GA from the topic, resolve its kind, reject
// ignored/binary-sensor targets, parse the payload (JSON object or a bare
// "ON"/"OFF" literal), normalize non-dimmable brightness/transition, and
// compose the CommandKind plus projected state.
func DecodeSetTopic(topic string, classifier *classify.Map, raw []byte) (Intent, error) {
	ga, err := topics.ParseSetTopic(topic)
	if err != nil {
		return Intent{}, err
	}

	kind := classifier.KindOf(ga)
	if kind == classify.Ignore || kind == classify.BinarySensor {
		return Intent{}, cbuserrors.NewRejectedError(ga, fmt.Sprintf("kind %s does not accept commands", kind))
	}

	state, brightness, transition, err := parsePayload(topic, raw)
	if err != nil {
		return Intent{}, err
	}

	if kind == classify.NonDimmable || kind == classify.Switch {
		if state == "ON" {
			brightness = 255
		} else {
			brightness = 0
		}
		transition = 0
	}

	cmd := composeCommand(state, brightness, transition)
	projected := buildProjectedState(kind, state, brightness, transition)

	return Intent{GA: ga, Kind: kind, Command: cmd, Projected: projected}, nil
}

// parsePayload implements step 3-4 of the Payload Codec algorithm.
func parsePayload(topic string, raw []byte) (state string, brightness uint8, transition uint16, err error) {
	var decoded rawSetPayload
	if jsonErr := json.Unmarshal(raw, &decoded); jsonErr == nil && decoded.State != "" {
		state = strings.ToUpper(decoded.State)
		brightness = 255
		if decoded.Brightness != nil {
			brightness = clampBrightness(*decoded.Brightness)
		}
		if decoded.Transition != nil {
			transition = clampTransition(*decoded.Transition)
		}
	} else {
		literal := strings.ToUpper(strings.Trim(strings.TrimSpace(string(raw)), `"`))
		if literal != "ON" && literal != "OFF" {
			return "", 0, 0, cbuserrors.NewPayloadError("decode_set_payload", fmt.Errorf("not a JSON object or ON/OFF literal"), topic)
		}
		state = literal
		brightness = 255
	}

	if state != "ON" && state != "OFF" {
		return "", 0, 0, cbuserrors.NewPayloadError("decode_set_payload", fmt.Errorf("state must be ON or OFF, got %q", state), topic)
	}

	return state, brightness, transition, nil
}

func clampBrightness(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampTransition(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}

// composeCommand implements step 6 of the Payload Codec algorithm.
func composeCommand(state string, brightness uint8, transition uint16) Command {
	switch {
	case state == "ON" && brightness == 255 && transition == 0:
		return Command{Tag: On}
	case state == "ON":
		return Command{Tag: Ramp, Duration: transition, Level: brightness}
	case state == "OFF" && transition > 0:
		return Command{Tag: Ramp, Duration: transition, Level: 0}
	default:
		return Command{Tag: Off}
	}
}

// buildProjectedState implements step 7 of the Payload Codec algorithm,
// producing the payload to publish iff the command is later confirmed.
func buildProjectedState(kind classify.Kind, state string, brightness uint8, transition uint16) StateSnapshot {
	snap := StateSnapshot{State: state}
	switch kind {
	case classify.Dimmable, classify.NonDimmable:
		snap.Brightness = brightness
		snap.Transition = transition
		if kind == classify.NonDimmable {
			snap.ColorMode = "onoff"
		} else {
			snap.ColorMode = "brightness"
		}
	case classify.Switch:
		// plain ON/OFF, no brightness/transition fields
	}
	return snap
}

// EncodeLightState renders the outbound JSON payload for a light
// (Dimmable or NonDimmable) state topic.
func EncodeLightState(snap StateSnapshot) ([]byte, error) {
	type lightState struct {
		State         string `json:"state"`
		Brightness    uint8  `json:"brightness"`
		Transition    uint16 `json:"transition"`
		CBusSourceAddr int   `json:"cbus_source_addr"`
		ColorMode     string `json:"color_mode"`
	}
	return json.Marshal(lightState{
		State:          snap.State,
		Brightness:     snap.Brightness,
		Transition:     snap.Transition,
		CBusSourceAddr: snap.SourceAddr,
		ColorMode:      snap.ColorMode,
	})
}

// DecodeLightState is the inverse of EncodeLightState: re-encoding the
// decoded snapshot reproduces any payload EncodeLightState produced.
func DecodeLightState(raw []byte) (StateSnapshot, error) {
	type lightState struct {
		State          string `json:"state"`
		Brightness     uint8  `json:"brightness"`
		Transition     uint16 `json:"transition"`
		CBusSourceAddr int    `json:"cbus_source_addr"`
		ColorMode      string `json:"color_mode"`
	}
	var decoded lightState
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return StateSnapshot{}, err
	}
	return StateSnapshot{
		State:      decoded.State,
		Brightness: decoded.Brightness,
		Transition: decoded.Transition,
		SourceAddr: decoded.CBusSourceAddr,
		ColorMode:  decoded.ColorMode,
	}, nil
}
