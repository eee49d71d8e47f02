// Package session owns the signed-in credential and its refresh lifecycle.
package session

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/runoshun/tracksync/internal/domain"
)

// CredentialStore persists the credential and serves reads from memory.
// The cached pointer is replaced on every write and never mutated in place.
// Fields are ordered to minimize memory padding.
type CredentialStore struct {
	kv     domain.KeyValueStore
	log    domain.Logger
	cached *domain.Credential
	mu     sync.RWMutex
	loaded bool
}

// Ensure CredentialStore implements domain.SessionStore.
var _ domain.SessionStore = (*CredentialStore)(nil)

// NewCredentialStore creates a CredentialStore backed by kv.
func NewCredentialStore(kv domain.KeyValueStore, log domain.Logger) *CredentialStore {
	return &CredentialStore{kv: kv, log: log}
}

// Load reads the credential from the backing store, replacing the cache.
func (s *CredentialStore) Load() (*domain.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s.cached.Clone(), nil
}

func (s *CredentialStore) loadLocked() error {
	data, err := s.kv.Get(domain.KeyCredential)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	s.loaded = true
	s.cached = nil
	if len(data) == 0 {
		return nil
	}
	var cred domain.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		// Unreadable credentials are treated as signed out.
		s.log.Warn("session", fmt.Sprintf("discarding unreadable credential: %v", err))
		return nil
	}
	s.cached = &cred
	return nil
}

func (s *CredentialStore) current() *domain.Credential {
	s.mu.RLock()
	if s.loaded {
		c := s.cached
		s.mu.RUnlock()
		return c
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(); err != nil {
			s.log.Error("session", err.Error())
		}
	}
	return s.cached
}

// Get returns a copy of the credential, or nil when signed out.
func (s *CredentialStore) Get() *domain.Credential {
	return s.current().Clone()
}

// AccessToken returns the current access token, or "".
func (s *CredentialStore) AccessToken() string {
	if c := s.current(); c != nil {
		return c.AccessToken
	}
	return ""
}

// RefreshToken returns the current refresh token, or "".
func (s *CredentialStore) RefreshToken() string {
	if c := s.current(); c != nil {
		return c.RefreshToken
	}
	return ""
}

// IsLoggedIn reports whether an access token is present.
func (s *CredentialStore) IsLoggedIn() bool {
	return s.current().IsLoggedIn()
}

// Save replaces the credential.
func (s *CredentialStore) Save(cred *domain.Credential) error {
	if cred == nil {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(cred.Clone())
}

// UpdateTokens applies a refresh result to the current credential.
// An empty refreshToken keeps the previous one.
// Returns ErrNotLoggedIn when the credential was cleared meanwhile.
func (s *CredentialStore) UpdateTokens(accessToken, refreshToken string, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.loadLocked(); err != nil {
			return err
		}
	}
	if s.cached == nil {
		return domain.ErrNotLoggedIn
	}

	next := s.cached.Clone()
	next.AccessToken = accessToken
	if refreshToken != "" {
		next.RefreshToken = refreshToken
	}
	next.ApplyProfile(profile)
	return s.writeLocked(next)
}

func (s *CredentialStore) writeLocked(cred *domain.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	if err := s.kv.Set(domain.KeyCredential, data); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	s.cached = cred
	s.loaded = true
	return nil
}

// Clear removes the credential.
func (s *CredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.loaded = true
	if err := s.kv.Delete(domain.KeyCredential); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// SaveLoginSession stores the token of an OTP login in progress.
func (s *CredentialStore) SaveLoginSession(token string) error {
	if err := s.kv.Set(domain.KeyLoginSession, []byte(token)); err != nil {
		return fmt.Errorf("save login session: %w", err)
	}
	return nil
}

// LoginSession returns the token of the OTP login in progress, or "".
func (s *CredentialStore) LoginSession() (string, error) {
	data, err := s.kv.Get(domain.KeyLoginSession)
	if err != nil {
		return "", fmt.Errorf("load login session: %w", err)
	}
	return string(data), nil
}

// ClearLoginSession forgets the OTP login in progress.
func (s *CredentialStore) ClearLoginSession() error {
	return s.kv.Delete(domain.KeyLoginSession)
}
