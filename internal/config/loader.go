package config

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Load reads the settings file, applies env overrides and defaults, and
// persists back when a forward token had to be generated. A missing file
// yields empty settings with defaults.
func Load(path string) (*Settings, error) {
	s := &Settings{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	case os.IsNotExist(err):
		log.WithField("path", path).Info("settings file not found, starting with defaults")
	default:
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	applyEnvOverrides(s)
	s.ApplyDefaults()

	if s.ForwardToken == "" {
		s.ForwardToken = GenForwardToken()
		if err := Save(path, s); err != nil {
			log.WithError(err).Warn("failed to persist generated forward token")
		}
	}
	return s, nil
}

// Save writes settings atomically via a temp file rename.
func Save(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
