package domain

import (
	"path/filepath"
	"time"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "config.toml"

// AppDirName is the directory name used under the config and data homes.
const AppDirName = "tracksync"

// Store backends.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Config represents the application configuration.
// Fields are ordered to minimize memory padding.
type Config struct {
	Warnings []string       `toml:"-" yaml:"-"`
	API      APIConfig      `toml:"api" yaml:"api"`
	Realtime RealtimeConfig `toml:"realtime" yaml:"realtime"`
	Session  SessionConfig  `toml:"session" yaml:"session"`
	Store    StoreConfig    `toml:"store" yaml:"store"`
	Log      LogConfig      `toml:"log" yaml:"log"`
}

// APIConfig holds REST settings from [api] section.
type APIConfig struct {
	BaseURL string `toml:"base_url" yaml:"base_url"` // Base URL all routes are relative to
	Timeout string `toml:"timeout" yaml:"timeout"`   // Per-request timeout (e.g. "30s")
}

// RealtimeConfig holds push channel settings from [realtime] section.
type RealtimeConfig struct {
	URL            string `toml:"url" yaml:"url"`                         // Channel URL (ws:// or wss://)
	ConnectTimeout string `toml:"connect_timeout" yaml:"connect_timeout"` // Bound on the initial connect
	InitialDelay   string `toml:"initial_delay" yaml:"initial_delay"`     // First reconnect delay
	MaxDelay       string `toml:"max_delay" yaml:"max_delay"`             // Reconnect delay cap
	MaxAttempts    int    `toml:"max_attempts" yaml:"max_attempts"`       // Reconnect attempts before giving up
}

// SessionConfig holds credential settings from [session] section.
type SessionConfig struct {
	RefreshSkew    string `toml:"refresh_skew" yaml:"refresh_skew"`       // Refresh this long before JWT exp
	RefreshTimeout string `toml:"refresh_timeout" yaml:"refresh_timeout"` // Bound on one refresh round trip
}

// StoreConfig holds local persistence settings from [store] section.
type StoreConfig struct {
	Backend string `toml:"backend" yaml:"backend"` // "json" (default) or "sqlite"
	Dir     string `toml:"dir,omitempty" yaml:"dir,omitempty"`
	Encrypt bool   `toml:"encrypt" yaml:"encrypt"` // Encrypt credentials at rest
}

// LogConfig holds logging settings from [log] section.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"` // Log level: debug, info, warn, error
}

// Default values.
const (
	DefaultAPITimeout     = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultInitialDelay   = time.Second
	DefaultMaxDelay       = 5 * time.Second
	DefaultMaxAttempts    = 5
	DefaultRefreshSkew    = 30 * time.Second
	DefaultRefreshTimeout = 15 * time.Second
	defaultAPIBaseURL     = "http://localhost:3000/api/v1"
	defaultRealtimeURL    = "ws://localhost:3000/realtime"
	defaultLogLevel       = "info"
)

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: defaultAPIBaseURL,
			Timeout: DefaultAPITimeout.String(),
		},
		Realtime: RealtimeConfig{
			URL:            defaultRealtimeURL,
			ConnectTimeout: DefaultConnectTimeout.String(),
			InitialDelay:   DefaultInitialDelay.String(),
			MaxDelay:       DefaultMaxDelay.String(),
			MaxAttempts:    DefaultMaxAttempts,
		},
		Session: SessionConfig{
			RefreshSkew:    DefaultRefreshSkew.String(),
			RefreshTimeout: DefaultRefreshTimeout.String(),
		},
		Store: StoreConfig{
			Backend: StoreJSON,
			Encrypt: true,
		},
		Log: LogConfig{
			Level: defaultLogLevel,
		},
	}
}

// ParseDurationOr parses s, returning def when s is empty, invalid or negative.
func ParseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// GlobalConfigDir returns the config directory under configHome.
// Format: <configHome>/tracksync
func GlobalConfigDir(configHome string) string {
	return filepath.Join(configHome, AppDirName)
}

// LogsDir returns the log directory under the data directory.
func LogsDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// LogPath returns the log file path under the data directory.
func LogPath(dataDir string) string {
	return filepath.Join(LogsDir(dataDir), "tracksync.log")
}

// KeyFilePath returns the path of the at-rest encryption key.
func KeyFilePath(dataDir string) string {
	return filepath.Join(dataDir, "store.key")
}

// GlobalDataDir returns the data directory under dataHome.
// Format: <dataHome>/tracksync
func GlobalDataDir(dataHome string) string {
	return filepath.Join(dataHome, AppDirName)
}

// StorePath returns the state file path for the given backend.
func StorePath(dataDir, backend string) string {
	if backend == StoreSQLite {
		return filepath.Join(dataDir, "state.db")
	}
	return filepath.Join(dataDir, "state.json")
}

// ConfigInfo describes a config file on disk.
type ConfigInfo struct {
	Path    string
	Content string
	Exists  bool
}

// ConfigLoader loads the effective configuration.
type ConfigLoader interface {
	// Load returns defaults merged with the config file and environment overrides.
	Load() (*Config, error)
}

// ConfigManager manages the config file.
type ConfigManager interface {
	// GetGlobalConfigInfo returns information about the config file.
	GetGlobalConfigInfo() ConfigInfo

	// InitGlobalConfig writes cfg as a new config file.
	// Returns ErrConfigExists when the file is already present.
	InitGlobalConfig(cfg *Config) error
}
