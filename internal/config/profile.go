package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/WutIsHummus/FreshRoles/internal/model"
)

// LoadProfile reads a matching profile from a YAML file. The profile is
// immutable for the run's duration; callers load it once at startup.
func LoadProfile(path string) (*model.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}

	var p model.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = "default"
	}

	return &p, nil
}
