// Package project loads optional human-readable group-address labels used
// only for log lines and the discovery payload's "name" field. It is
// intentionally not a CBZ project-file parser: CBZ parsing is an
// out-of-scope collaborator, and this package reads a small JSON map
// instead of the project archive format.
package project

import (
	"encoding/json"
	"fmt"
	"os"

	"cbus-mqtt-bridge/pkg/discovery"
)

// LoadLabels reads a JSON object mapping group address (as a string key,
// since JSON object keys are always strings) to a display name. A missing
// path is not an error: the bridge runs fine with generated names.
func LoadLabels(path string) (discovery.Labels, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("project: read labels %s: %w", path, err)
	}

	var byString map[string]string
	if err := json.Unmarshal(raw, &byString); err != nil {
		return nil, fmt.Errorf("project: decode labels %s: %w", path, err)
	}

	labels := make(discovery.Labels, len(byString))
	for key, name := range byString {
		var ga int
		if _, err := fmt.Sscanf(key, "%d", &ga); err != nil {
			continue
		}
		labels[ga] = name
	}
	return labels, nil
}
