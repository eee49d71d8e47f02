// Package jsonstore keeps the tracksync key-value state in a single JSON file.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/runoshun/tracksync/internal/domain"
)

const fileVersion = 1

// ErrUnsupportedVersion is returned when the file was written by a newer build.
var ErrUnsupportedVersion = errors.New("state file written by a newer version")

type fileContent struct {
	Values  map[string][]byte `json:"values"`
	Version int               `json:"version"`
}

// Store implements domain.KeyValueStore on top of a JSON file.
// CLI invocations and the watch view share the file through flock on a sidecar.
type Store struct {
	path string
}

// New returns a Store for path. Nothing is touched until Initialize or the first access.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) lockPath() string { return s.path + ".lock" }

// Get returns a copy of the value under key, or nil.
func (s *Store) Get(key string) ([]byte, error) {
	var out []byte
	err := s.locked(false, func(c *fileContent) error {
		out = slices.Clone(c.Values[key])
		return nil
	})
	return out, err
}

// Set stores value under key.
func (s *Store) Set(key string, value []byte) error {
	return s.locked(true, func(c *fileContent) error {
		c.Values[key] = slices.Clone(value)
		return nil
	})
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	return s.locked(true, func(c *fileContent) error {
		delete(c.Values, key)
		return nil
	})
}

// Keys lists the stored keys, sorted.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.locked(false, func(c *fileContent) error {
		for k := range c.Values {
			keys = append(keys, k)
		}
		return nil
	})
	slices.Sort(keys)
	return keys, err
}

// IsInitialized reports whether the state file exists.
func (s *Store) IsInitialized() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Initialize creates the data directory and an empty state file.
// An existing file is left untouched.
func (s *Store) Initialize() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if s.IsInitialized() {
		return nil
	}
	return s.flush(&fileContent{Version: fileVersion, Values: map[string][]byte{}})
}

// locked runs fn under flock. Exclusive locks persist the content afterwards.
func (s *Store) locked(exclusive bool, fn func(*fileContent) error) error {
	mode := syscall.LOCK_SH
	if exclusive {
		mode = syscall.LOCK_EX
	}

	if err := os.MkdirAll(filepath.Dir(s.lockPath()), 0o700); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := syscall.Flock(int(f.Fd()), mode); err != nil {
		return fmt.Errorf("lock state file: %w", err)
	}
	defer func() { _ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN) }()

	c, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	if !exclusive {
		return nil
	}
	return s.flush(c)
}

func (s *Store) load() (*fileContent, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var c fileContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	if c.Version > fileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, c.Version)
	}
	if c.Values == nil {
		c.Values = map[string][]byte{}
	}
	c.Version = fileVersion
	return &c, nil
}

// flush replaces the state file through a synced temp file in the same directory.
func (s *Store) flush(c *fileContent) error {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	name := tmp.Name()
	_, werr := tmp.Write(raw)
	if werr == nil {
		werr = tmp.Sync()
	}
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Chmod(name, 0o600); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("chmod temp state file: %w", err)
	}
	if err := os.Rename(name, s.path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

var (
	_ domain.KeyValueStore    = (*Store)(nil)
	_ domain.StoreInitializer = (*Store)(nil)
)
