package camera

import (
	"fmt"
	"sync"
)

// Manager holds the current camera configuration and handles updates.
// A running capture keeps the config it was opened with; changes apply to
// the next session.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// Callback when config changes
	OnConfigChange func(cfg Config) error
}

// NewManager creates a camera manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and replaces the camera configuration.
func (m *Manager) SetConfig(cfg Config) error {
	if errors := cfg.Validate(); len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// Update is a partial camera change. Nil fields keep their current value.
type Update struct {
	Preset    *string `json:"preset,omitempty"`
	Device    *string `json:"device,omitempty"`
	Width     *int    `json:"width,omitempty"`
	Height    *int    `json:"height,omitempty"`
	Framerate *int    `json:"framerate,omitempty"`
	Quality   *int    `json:"quality,omitempty"`
	Mirror    *bool   `json:"mirror,omitempty"`
}

// UpdateConfig applies a preset (if named) and then the individual fields.
func (m *Manager) UpdateConfig(u Update) error {
	cfg := m.GetConfig()

	if u.Preset != nil {
		preset := GetPreset(*u.Preset)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", *u.Preset)
		}
		device := cfg.Device
		cfg = *preset
		cfg.Device = device
	}

	if u.Device != nil {
		cfg.Device = *u.Device
	}
	if u.Width != nil {
		cfg.Width = *u.Width
	}
	if u.Height != nil {
		cfg.Height = *u.Height
	}
	if u.Framerate != nil {
		cfg.Framerate = *u.Framerate
	}
	if u.Quality != nil {
		cfg.Quality = *u.Quality
	}
	if u.Mirror != nil {
		cfg.Mirror = *u.Mirror
	}

	return m.SetConfig(cfg)
}
