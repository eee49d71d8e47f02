// Package config provides configuration loading functionality.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/runoshun/tracksync/internal/domain"
)

// Ensure Loader implements domain.ConfigLoader.
var _ domain.ConfigLoader = (*Loader)(nil)

// Environment variables that override the config file.
const (
	EnvAPIURL      = "TRACKSYNC_API_URL"
	EnvRealtimeURL = "TRACKSYNC_REALTIME_URL"
	EnvLogLevel    = "TRACKSYNC_LOG_LEVEL"
	EnvStore       = "TRACKSYNC_STORE"
)

// Loader loads configuration from the TOML file and the environment.
// Fields are ordered to minimize memory padding.
type Loader struct {
	lookupEnv     func(string) (string, bool)
	globalConfDir string   // Path to config directory (e.g., ~/.config/tracksync)
	envFiles      []string // .env files read for overrides; real env wins
}

// NewLoader creates a new Loader using the default config directory.
// envFiles are optional .env files (missing ones are ignored).
func NewLoader(envFiles ...string) *Loader {
	return NewLoaderWithGlobalDir(DefaultGlobalConfigDir(), envFiles...)
}

// NewLoaderWithGlobalDir creates a new Loader with a custom config directory.
// This is useful for testing.
func NewLoaderWithGlobalDir(globalConfDir string, envFiles ...string) *Loader {
	return &Loader{
		globalConfDir: globalConfDir,
		envFiles:      envFiles,
		lookupEnv:     os.LookupEnv,
	}
}

// WithLookupEnv replaces the process environment lookup. Used by tests.
func (l *Loader) WithLookupEnv(fn func(string) (string, bool)) *Loader {
	l.lookupEnv = fn
	return l
}

// DefaultGlobalConfigDir returns the default config directory.
func DefaultGlobalConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return domain.GlobalConfigDir(configHome)
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return domain.GlobalDataDir(dataHome)
}

// DataDir returns the data directory configured in cfg, or the default one.
func DataDir(cfg *domain.Config) string {
	if cfg != nil && cfg.Store.Dir != "" {
		return cfg.Store.Dir
	}
	return DefaultDataDir()
}

// Load returns the effective configuration: default <- file <- environment.
func (l *Loader) Load() (*domain.Config, error) {
	base := domain.NewDefaultConfig()

	if l.globalConfDir != "" {
		file, err := l.loadFile(filepath.Join(l.globalConfDir, domain.ConfigFileName))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		if file != nil {
			base = mergeConfigs(base, file)
		}
	}

	if err := l.applyEnv(base); err != nil {
		return nil, err
	}

	validate(base)
	sort.Strings(base.Warnings)
	return base, nil
}

// fileConfig is a parsed config file.
// encryptSet distinguishes "encrypt = false" from an absent key.
type fileConfig struct {
	cfg        *domain.Config
	encryptSet bool
}

// loadFile loads a configuration from a file.
func (l *Loader) loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return convertRawToDomainConfig(raw), nil
}

// applyEnv overlays TRACKSYNC_* variables from the process environment,
// falling back to the configured .env files.
func (l *Loader) applyEnv(cfg *domain.Config) error {
	var existing []string
	for _, f := range l.envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}

	dotenv := map[string]string{}
	if len(existing) > 0 {
		m, err := godotenv.Read(existing...)
		if err != nil {
			return fmt.Errorf("read env file: %w", err)
		}
		dotenv = m
	}

	lookup := func(key string) string {
		if v, ok := l.lookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	}

	if v := lookup(EnvAPIURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := lookup(EnvRealtimeURL); v != "" {
		cfg.Realtime.URL = v
	}
	if v := lookup(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := lookup(EnvStore); v != "" {
		cfg.Store.Backend = v
	}
	return nil
}

// validate resets unusable values to their defaults and records a warning.
func validate(cfg *domain.Config) {
	def := domain.NewDefaultConfig()
	check := func(name string, value *string, fallback string) {
		if *value == "" {
			*value = fallback
			return
		}
		if domain.ParseDurationOr(*value, -1) < 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid duration for %s: %q (using %s)", name, *value, fallback))
			*value = fallback
		}
	}
	check("api.timeout", &cfg.API.Timeout, def.API.Timeout)
	check("realtime.connect_timeout", &cfg.Realtime.ConnectTimeout, def.Realtime.ConnectTimeout)
	check("realtime.initial_delay", &cfg.Realtime.InitialDelay, def.Realtime.InitialDelay)
	check("realtime.max_delay", &cfg.Realtime.MaxDelay, def.Realtime.MaxDelay)
	check("session.refresh_skew", &cfg.Session.RefreshSkew, def.Session.RefreshSkew)
	check("session.refresh_timeout", &cfg.Session.RefreshTimeout, def.Session.RefreshTimeout)

	if cfg.Realtime.MaxAttempts < 0 {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid realtime.max_attempts: %d (using %d)", cfg.Realtime.MaxAttempts, def.Realtime.MaxAttempts))
		cfg.Realtime.MaxAttempts = def.Realtime.MaxAttempts
	}

	switch cfg.Store.Backend {
	case domain.StoreJSON, domain.StoreSQLite:
	default:
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("unknown store backend: %q (using %s)", cfg.Store.Backend, domain.StoreJSON))
		cfg.Store.Backend = domain.StoreJSON
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
}

// convertRawToDomainConfig converts the raw map to domain config and collects warnings.
func convertRawToDomainConfig(raw map[string]any) *fileConfig {
	res := &domain.Config{}
	encryptSet := false
	var warnings []string

	for section, value := range raw {
		m, ok := value.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unknown section: %s", section))
			continue
		}
		switch section {
		case "api":
			for k, v := range m {
				switch k {
				case "base_url":
					res.API.BaseURL = asString(v)
				case "timeout":
					res.API.Timeout = asString(v)
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [api]: %s", k))
				}
			}
		case "realtime":
			for k, v := range m {
				switch k {
				case "url":
					res.Realtime.URL = asString(v)
				case "connect_timeout":
					res.Realtime.ConnectTimeout = asString(v)
				case "initial_delay":
					res.Realtime.InitialDelay = asString(v)
				case "max_delay":
					res.Realtime.MaxDelay = asString(v)
				case "max_attempts":
					if n, ok := v.(int64); ok {
						res.Realtime.MaxAttempts = int(n)
					}
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [realtime]: %s", k))
				}
			}
		case "session":
			for k, v := range m {
				switch k {
				case "refresh_skew":
					res.Session.RefreshSkew = asString(v)
				case "refresh_timeout":
					res.Session.RefreshTimeout = asString(v)
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [session]: %s", k))
				}
			}
		case "store":
			for k, v := range m {
				switch k {
				case "backend":
					res.Store.Backend = asString(v)
				case "dir":
					res.Store.Dir = asString(v)
				case "encrypt":
					if b, ok := v.(bool); ok {
						res.Store.Encrypt = b
						encryptSet = true
					}
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [store]: %s", k))
				}
			}
		case "log":
			for k, v := range m {
				switch k {
				case "level":
					res.Log.Level = asString(v)
				default:
					warnings = append(warnings, fmt.Sprintf("unknown key in [log]: %s", k))
				}
			}
		default:
			warnings = append(warnings, fmt.Sprintf("unknown section: %s", section))
		}
	}

	sort.Strings(warnings)
	res.Warnings = warnings
	return &fileConfig{cfg: res, encryptSet: encryptSet}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// mergeConfigs merges two configs, with override taking precedence.
func mergeConfigs(base *domain.Config, file *fileConfig) *domain.Config {
	override := file.cfg
	result := *base
	result.Warnings = append(append([]string{}, base.Warnings...), override.Warnings...)

	if override.API.BaseURL != "" {
		result.API.BaseURL = override.API.BaseURL
	}
	if override.API.Timeout != "" {
		result.API.Timeout = override.API.Timeout
	}
	if override.Realtime.URL != "" {
		result.Realtime.URL = override.Realtime.URL
	}
	if override.Realtime.ConnectTimeout != "" {
		result.Realtime.ConnectTimeout = override.Realtime.ConnectTimeout
	}
	if override.Realtime.InitialDelay != "" {
		result.Realtime.InitialDelay = override.Realtime.InitialDelay
	}
	if override.Realtime.MaxDelay != "" {
		result.Realtime.MaxDelay = override.Realtime.MaxDelay
	}
	if override.Realtime.MaxAttempts != 0 {
		result.Realtime.MaxAttempts = override.Realtime.MaxAttempts
	}
	if override.Session.RefreshSkew != "" {
		result.Session.RefreshSkew = override.Session.RefreshSkew
	}
	if override.Session.RefreshTimeout != "" {
		result.Session.RefreshTimeout = override.Session.RefreshTimeout
	}
	if override.Store.Backend != "" {
		result.Store.Backend = override.Store.Backend
	}
	if override.Store.Dir != "" {
		result.Store.Dir = override.Store.Dir
	}
	if file.encryptSet {
		result.Store.Encrypt = override.Store.Encrypt
	}
	if override.Log.Level != "" {
		result.Log.Level = override.Log.Level
	}

	return &result
}
