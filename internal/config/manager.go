package config

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Manager holds the live settings and serializes reload/save.
type Manager struct {
	mu   sync.RWMutex
	path string
	cur  *Settings

	onChange []func(*Settings)
}

// NewManager loads settings from path and wraps them.
func NewManager(path string) (*Manager, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, cur: s}, nil
}

// Current returns the live settings snapshot pointer. Callers must treat
// the returned value as read-only.
func (m *Manager) Current() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur
}

// Path returns the settings file location.
func (m *Manager) Path() string { return m.path }

// OnChange registers a callback invoked after every successful swap.
func (m *Manager) OnChange(fn func(*Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Reload re-reads the settings file and swaps the live snapshot.
func (m *Manager) Reload() error {
	s, err := Load(m.path)
	if err != nil {
		return err
	}
	m.swap(s)
	log.WithFields(log.Fields{
		"upstreams": len(s.Upstreams),
		"models":    len(s.Models),
	}).Info("settings reloaded")
	return nil
}

// Update mutates settings under the lock, persists them, and notifies.
func (m *Manager) Update(mutate func(*Settings)) error {
	m.mu.Lock()
	next := *m.cur
	mutate(&next)
	m.cur = &next
	callbacks := append([]func(*Settings){}, m.onChange...)
	m.mu.Unlock()

	if err := Save(m.path, &next); err != nil {
		return err
	}
	if next.Backup.IsEnabled() && next.Backup.AutoOnConfig() {
		if err := SnapshotSettings(&next, m.path); err != nil {
			log.WithError(err).Warn("settings backup snapshot failed")
		}
	}
	for _, fn := range callbacks {
		fn(&next)
	}
	return nil
}

// RotateForwardToken regenerates the local access token and persists it.
func (m *Manager) RotateForwardToken() (string, error) {
	token := GenForwardToken()
	if err := m.Update(func(s *Settings) { s.ForwardToken = token }); err != nil {
		return "", err
	}
	return token, nil
}

func (m *Manager) swap(s *Settings) {
	m.mu.Lock()
	m.cur = s
	callbacks := append([]func(*Settings){}, m.onChange...)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn(s)
	}
}
