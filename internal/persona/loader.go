package persona

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/normanking/switchboard/internal/logging"
)

// LoadFromFile loads a persona from a YAML file.
// A missing file yields the default persona; missing keys keep their defaults.
func LoadFromFile(path string) (*Persona, error) {
	if path == "" {
		return Default(), nil
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file: %w", err)
	}

	p, err := LoadFromYAML(data)
	if err != nil {
		return nil, err
	}
	logging.Global().WithComponent("Persona").Info("loaded persona %q from %s", p.Name, path)
	return p, nil
}

// LoadFromYAML parses persona YAML over the defaults.
func LoadFromYAML(data []byte) (*Persona, error) {
	p := &Persona{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse persona YAML: %w", err)
	}
	p.merge(Default())
	return p, nil
}

// SaveToFile writes p as YAML, creating parent directories.
func SaveToFile(p *Persona, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create persona directory: %w", err)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal persona: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
