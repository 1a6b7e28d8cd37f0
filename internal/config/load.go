package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads device.yaml at path, expands ${VAR}/${VAR:-default}
// references against the process environment, and unmarshals it onto
// Default() so any field the file omits keeps its config.h value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}
	return cfg, nil
}
