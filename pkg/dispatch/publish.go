package dispatch

import (
	"cbus-mqtt-bridge/pkg/classify"
	"cbus-mqtt-bridge/pkg/payload"
	"cbus-mqtt-bridge/pkg/topics"
)

// stateTopicAndPayload composes the retained state-topic publish for a
// confirmed command: a JSON body on the light domain for dimmable and
// non-dimmable kinds, a bare "ON"/"OFF" body on the switch domain.
func stateTopicAndPayload(intent payload.Intent) (string, []byte, error) {
	switch intent.Kind {
	case classify.Switch:
		return topics.SwitchStateTopic(intent.GA), []byte(intent.Projected.State), nil
	default:
		body, err := payload.EncodeLightState(intent.Projected)
		if err != nil {
			return "", nil, err
		}
		return topics.LightStateTopic(intent.GA), body, nil
	}
}
