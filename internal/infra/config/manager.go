package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/runoshun/tracksync/internal/domain"
)

// Ensure Manager implements domain.ConfigManager.
var _ domain.ConfigManager = (*Manager)(nil)

const configHeader = `# tracksync configuration
#
# Environment overrides: TRACKSYNC_API_URL, TRACKSYNC_REALTIME_URL,
# TRACKSYNC_LOG_LEVEL, TRACKSYNC_STORE (also read from .env).

`

// Manager manages the configuration file.
type Manager struct {
	globalConfDir string // Path to config directory (e.g., ~/.config/tracksync)
}

// NewManager creates a new Manager using the default config directory.
func NewManager() *Manager {
	return NewManagerWithGlobalDir(DefaultGlobalConfigDir())
}

// NewManagerWithGlobalDir creates a new Manager with a custom config directory.
// This is useful for testing.
func NewManagerWithGlobalDir(globalConfDir string) *Manager {
	return &Manager{globalConfDir: globalConfDir}
}

// GetGlobalConfigInfo returns information about the config file.
func (m *Manager) GetGlobalConfigInfo() domain.ConfigInfo {
	if m.globalConfDir == "" {
		return domain.ConfigInfo{}
	}
	path := filepath.Join(m.globalConfDir, domain.ConfigFileName)
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.ConfigInfo{Path: path}
	}
	return domain.ConfigInfo{
		Path:    path,
		Content: string(content),
		Exists:  true,
	}
}

// InitGlobalConfig writes cfg to a new config file.
func (m *Manager) InitGlobalConfig(cfg *domain.Config) error {
	if m.globalConfDir == "" {
		return errors.New("config directory not available")
	}
	path := filepath.Join(m.globalConfDir, domain.ConfigFileName)

	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return domain.ErrConfigExists
	}

	content, err := Render(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.globalConfDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

// Render formats cfg as a commented TOML document.
func Render(cfg *domain.Config) (string, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return configHeader + string(data), nil
}
