package manifest

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteManifest writes a manifest to a YAML file
func WriteManifest(m *Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0644)
}

// ReadManifest reads a manifest from a YAML file
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}
