package rytmi

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ReadTimeline reads a timeline definition from r, accepting either JSON or
// YAML, repairs any authoring imperfections (unsorted sections or cues,
// inverted cue spans, degenerate tempo values) and validates the result.
func ReadTimeline(r io.Reader) (*Timeline, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read timeline: %v", err)
	}
	var t Timeline
	if errJSON := json.Unmarshal(b, &t); errJSON != nil {
		if errYaml := yaml.Unmarshal(b, &t); errYaml != nil {
			return nil, fmt.Errorf("the timeline could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
		}
	}
	t.sanitize()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// WriteTimelineYAML writes the timeline definition to w as YAML.
func WriteTimelineYAML(w io.Writer, t *Timeline) error {
	contents, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("could not marshal timeline: %v", err)
	}
	if _, err := w.Write(contents); err != nil {
		return fmt.Errorf("could not write timeline: %v", err)
	}
	return nil
}

// WriteTimelineJSON writes the timeline definition to w as JSON.
func WriteTimelineJSON(w io.Writer, t *Timeline) error {
	contents, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("could not marshal timeline: %v", err)
	}
	if _, err := w.Write(contents); err != nil {
		return fmt.Errorf("could not write timeline: %v", err)
	}
	return nil
}
