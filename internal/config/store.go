package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"whisper-batch/internal/domain"
)

// Store defines persistence operations for remembered preferences.
type Store interface {
	Load() (domain.Settings, error)
	Save(domain.Settings) error
}

// NewStore picks a JSON or YAML store from the file extension; YAML is the default.
func NewStore(path string) Store {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return NewJSONStore(path)
	}
	return NewYAMLStore(path)
}

// YAMLStore persists settings in a single YAML file on disk.
type YAMLStore struct {
	path string
}

// NewYAMLStore creates a YAML-backed settings store.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

// Load reads settings from disk, filling missing fields with defaults.
func (s *YAMLStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return domain.Settings{}, fmt.Errorf("reading settings file: %w", err)
	}

	cfg := DefaultSettings()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("parsing settings file: %w", err)
	}
	return Normalize(cfg), nil
}

// Save writes settings as YAML and creates parent directories.
func (s *YAMLStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// JSONStore persists settings in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads settings from disk or returns defaults when missing.
func (s *JSONStore) Load() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return domain.Settings{}, err
	}

	cfg := DefaultSettings()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.Settings{}, err
	}
	return Normalize(cfg), nil
}

// Save writes settings as indented JSON and creates parent directories.
func (s *JSONStore) Save(cfg domain.Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
