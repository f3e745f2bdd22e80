package scenario

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// LoadYAML parses a suite definition from YAML, applies defaults, and
// validates it.
func LoadYAML(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suite yaml: %w", err)
	}

	s.Normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
