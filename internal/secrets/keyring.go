// Package secrets stores API keys in the OS keyring, falling back to a
// private JSON file where no keyring is available (containers, CI).
package secrets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name.
const DefaultService = "vision-guard"

// Gemini is the provider name the diagnosis key is stored under.
const Gemini = "gemini"

const partAPIKey = "apikey"

// ErrNotFound is returned when no key is stored for a provider.
var ErrNotFound = keyring.ErrNotFound

var errNoFallback = errors.New("secrets: fallback path not configured")

type backend interface {
	Set(service, user, password string) error
	Get(service, user string) (string, error)
	Delete(service, user string) error
}

type osKeyring struct{}

func (osKeyring) Set(service, user, password string) error {
	return keyring.Set(service, user, password)
}
func (osKeyring) Get(service, user string) (string, error) { return keyring.Get(service, user) }
func (osKeyring) Delete(service, user string) error        { return keyring.Delete(service, user) }

// Store reads and writes provider API keys.
type Store struct {
	service      string
	fallbackPath string
	ring         backend
	mu           sync.Mutex
}

// NewStore creates a keyring-backed store. fallbackPath may be empty, in
// which case a missing keyring is an error.
func NewStore(service, fallbackPath string) *Store {
	if strings.TrimSpace(service) == "" {
		service = DefaultService
	}
	return &Store{service: service, fallbackPath: fallbackPath, ring: osKeyring{}}
}

func (s *Store) user(provider string) string {
	return fmt.Sprintf("%s/%s", provider, partAPIKey)
}

// SetAPIKey stores the key for provider.
func (s *Store) SetAPIKey(provider, value string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return errors.New("secrets: provider is required")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secrets: key is empty")
	}

	err := s.ring.Set(s.service, s.user(provider), value)
	if err == nil {
		return nil
	}
	if !isKeyringUnavailable(err) {
		return fmt.Errorf("secrets: keyring set %s: %w", provider, err)
	}
	return s.setFallback(provider, value)
}

// APIKey returns the stored key for provider, or ErrNotFound.
func (s *Store) APIKey(provider string) (string, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "", errors.New("secrets: provider is required")
	}

	val, err := s.ring.Get(s.service, s.user(provider))
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("secrets: keyring get %s: %w", provider, err)
	}

	fallback, ferr := s.getFallback(provider)
	if ferr == nil {
		return fallback, nil
	}
	// Without a keyring or a fallback file nothing can have been stored.
	if errors.Is(err, keyring.ErrNotFound) || errors.Is(ferr, ErrNotFound) || errors.Is(ferr, errNoFallback) {
		return "", ErrNotFound
	}
	return "", ferr
}

// DeleteAPIKey removes the key for provider from the keyring and the
// fallback file. Deleting a missing key is not an error.
func (s *Store) DeleteAPIKey(provider string) error {
	err := s.ring.Delete(s.service, s.user(provider))
	ferr := s.deleteFallback(provider)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		return fmt.Errorf("secrets: keyring delete %s: %w", provider, err)
	}
	return ferr
}

// Resolver returns a lookup that prefers a configured key and falls back
// to the store. A missing key resolves to "" with no error.
func Resolver(configured string, store *Store, provider string) func() (string, error) {
	return func() (string, error) {
		if k := strings.TrimSpace(configured); k != "" {
			return k, nil
		}
		if store == nil {
			return "", nil
		}
		k, err := store.APIKey(provider)
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return k, err
	}
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackSecrets map[string]map[string]string

func (s *Store) setFallback(provider, value string) error {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return errors.New("secrets: keyring unavailable and no fallback path configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallbackUnlocked()
	if err != nil {
		return err
	}
	if _, ok := data[provider]; !ok {
		data[provider] = map[string]string{}
	}
	data[provider][partAPIKey] = value
	return s.writeFallbackUnlocked(data)
}

func (s *Store) getFallback(provider string) (string, error) {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return "", errNoFallback
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallbackUnlocked()
	if err != nil {
		return "", err
	}
	val, ok := data[provider][partAPIKey]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (s *Store) deleteFallback(provider string) error {
	if strings.TrimSpace(s.fallbackPath) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readFallbackUnlocked()
	if err != nil {
		return err
	}
	if _, ok := data[provider]; !ok {
		return nil
	}
	delete(data, provider)
	return s.writeFallbackUnlocked(data)
}

func (s *Store) readFallbackUnlocked() (fallbackSecrets, error) {
	out := fallbackSecrets{}
	raw, err := os.ReadFile(s.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("secrets: read fallback: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("secrets: decode fallback: %w", err)
	}
	return out, nil
}

func (s *Store) writeFallbackUnlocked(data fallbackSecrets) error {
	if err := os.MkdirAll(filepath.Dir(s.fallbackPath), 0o700); err != nil {
		return fmt.Errorf("secrets: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("secrets: encode fallback: %w", err)
	}
	if err := os.WriteFile(s.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("secrets: write fallback: %w", err)
	}
	return nil
}
