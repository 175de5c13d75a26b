package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseEvalConfigYAML parses an EvalConfig from YAML bytes, applies defaults
// for omitted keys and validates it.
func ParseEvalConfigYAML(data []byte) (*EvalConfig, error) {
	cfg := DefaultEvalConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse eval config yaml: %w", err)
	}

	if err := ValidateEvalConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid eval config: %w", err)
	}

	return &cfg, nil
}

// ParseEvalConfigYAMLString parses an EvalConfig from a YAML string and validates it.
func ParseEvalConfigYAMLString(yamlText string) (*EvalConfig, error) {
	return ParseEvalConfigYAML([]byte(yamlText))
}

// MarshalEvalConfigYAML renders the config back to YAML
func MarshalEvalConfigYAML(cfg *EvalConfig) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	return yaml.Marshal(cfg)
}
