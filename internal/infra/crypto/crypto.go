// Package crypto seals sensitive store values with AES-256-GCM.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/runoshun/tracksync/internal/domain"
)

const (
	// NonceSize is the size of the nonce for AES-GCM (12 bytes).
	NonceSize = 12
	// KeySize is the size of the AES-256 key (32 bytes).
	KeySize = 32
)

// sealedPrefix marks values written by SealedStore.
var sealedPrefix = []byte("sealed:v1:")

var (
	// ErrInvalidKey is returned when the encryption key is invalid.
	ErrInvalidKey = errors.New("invalid encryption key: must be 32 bytes (64 hex characters)")
	// ErrDecryptionFailed is returned when decryption fails.
	ErrDecryptionFailed = errors.New("decryption failed: invalid ciphertext or key")
	// ErrCiphertextTooShort is returned when the ciphertext is too short.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// Encryptor handles AES-256-GCM encryption with a random nonce per message.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates a new Encryptor with the given hex-encoded key.
// The key must be 64 hex characters (32 bytes).
func NewEncryptor(hexKey string) (*Encryptor, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil || len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

// Encrypt encrypts plaintext using AES-256-GCM.
// Returns: nonce (12 bytes) + ciphertext + auth tag
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts ciphertext using AES-256-GCM.
// Expects: nonce (12 bytes) + ciphertext + auth tag
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce := ciphertext[:NonceSize]
	encrypted := ciphertext[NonceSize:]

	plaintext, err := e.gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// LoadOrCreateKey reads the hex key at path, generating a new one on first use.
func LoadOrCreateKey(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err == nil {
		return strings.TrimSpace(string(content)), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("read key file: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	hexKey := hex.EncodeToString(key)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("create key directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hexKey+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write key file: %w", err)
	}
	return hexKey, nil
}

// SealedStore encrypts selected keys before they reach the underlying store.
// Other keys pass through unchanged. Plaintext values written before
// encryption was enabled are still readable and get sealed on next write.
type SealedStore struct {
	inner  domain.KeyValueStore
	enc    *Encryptor
	sealed []string
}

// NewSealedStore wraps inner, sealing the values of the given keys.
func NewSealedStore(inner domain.KeyValueStore, enc *Encryptor, keys ...string) *SealedStore {
	return &SealedStore{inner: inner, enc: enc, sealed: keys}
}

// Get returns the plaintext value of key.
func (s *SealedStore) Get(key string) ([]byte, error) {
	value, err := s.inner.Get(key)
	if err != nil || value == nil || !s.isSealed(key) {
		return value, err
	}
	if !bytes.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	plaintext, err := s.enc.Decrypt(value[len(sealedPrefix):])
	if err != nil {
		return nil, fmt.Errorf("unseal %s: %w", key, err)
	}
	return plaintext, nil
}

// Set stores value, sealing it when key is sensitive.
func (s *SealedStore) Set(key string, value []byte) error {
	if !s.isSealed(key) {
		return s.inner.Set(key, value)
	}
	ciphertext, err := s.enc.Encrypt(value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.inner.Set(key, append(slices.Clone(sealedPrefix), ciphertext...))
}

// Delete removes key.
func (s *SealedStore) Delete(key string) error {
	return s.inner.Delete(key)
}

func (s *SealedStore) isSealed(key string) bool {
	return slices.Contains(s.sealed, key)
}

var _ domain.KeyValueStore = (*SealedStore)(nil)
