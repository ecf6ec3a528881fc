package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPreset reads a YAML preset into cfg. Keys missing from the file keep
// the value cfg already holds.
func LoadPreset(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read preset: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: failed to parse preset %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}
