package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/aretw0/barter/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Seed is the initial catalog loaded by `barter seed` or at startup.
type Seed struct {
	Items []domain.Item `yaml:"items"`
}

// LoadSeed reads a YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML. Unknown fields are rejected.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	for i, item := range seed.Items {
		if item.Title == "" || item.Owner == "" {
			return nil, fmt.Errorf("seed item %d: title and owner are required", i)
		}
	}
	return &seed, nil
}
