package camera

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownPreset is returned by ApplyPreset for a name Preset rejects.
var ErrUnknownPreset = errors.New("unknown camera preset")

// Manager owns the live capture settings. Changes go through
// OnConfigChange, which reopens the device.
type Manager struct {
	mu  sync.RWMutex
	cfg Config

	OnConfigChange func(Config) error
}

// NewManager returns a manager holding cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg}
}

// Config returns the current settings.
func (m *Manager) Config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// SetConfig validates cfg, stores it and hands it to OnConfigChange.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera config: %s", strings.Join(errs, "; "))
	}
	m.mu.Lock()
	m.cfg = cfg
	reopen := m.OnConfigChange
	m.mu.Unlock()

	if reopen == nil {
		return nil
	}
	if err := reopen(cfg); err != nil {
		return fmt.Errorf("reopen camera: %w", err)
	}
	return nil
}

// ApplyPreset switches to the named preset. The device index and the
// backend order are kept.
func (m *Manager) ApplyPreset(name string) error {
	cfg, ok := Preset(name)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownPreset, name)
	}
	cur := m.Config()
	cfg.Device, cfg.Backends = cur.Device, cur.Backends
	return m.SetConfig(cfg)
}
