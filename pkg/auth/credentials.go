package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "twmediadl"

// Names of the OAuth1 credentials, shared with the environment variable names
const (
	KeyConsumerKey    = "CONSUMER_KEY"
	KeyConsumerSecret = "CONSUMER_SECRET"
	KeyAccessToken    = "ACCESS_TOKEN"
	KeyAccessSecret   = "ACCESS_SECRET"
)

// CredentialKeys lists every required credential in prompt order
var CredentialKeys = []string{KeyConsumerKey, KeyConsumerSecret, KeyAccessToken, KeyAccessSecret}

var (
	ErrCredentialNotFound = errors.New("credential not found")
	ErrInvalidKey         = errors.New("invalid credential key")
)

// Store reads and writes individual credential values
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// KeyringStore keeps credentials in the system keychain
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keychain-backed store
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: keyringService}
}

// Get returns the stored value for key
func (k *KeyringStore) Get(key string) (string, error) {
	if !isCredentialKey(key) {
		return "", ErrInvalidKey
	}

	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrCredentialNotFound
		}
		return "", fmt.Errorf("failed to read %s from keyring: %w", key, err)
	}
	return value, nil
}

// Set stores value under key
func (k *KeyringStore) Set(key, value string) error {
	if !isCredentialKey(key) {
		return ErrInvalidKey
	}
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}

	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing an absent key is not an error.
func (k *KeyringStore) Delete(key string) error {
	if !isCredentialKey(key) {
		return ErrInvalidKey
	}

	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete %s from keyring: %w", key, err)
	}
	return nil
}

// Lookup fills every empty entry of values from store. Store failures count
// as "absent" so an unavailable keychain never blocks env-only setups.
func Lookup(store Store, values map[string]*string) {
	for key, dst := range values {
		if dst == nil || *dst != "" {
			continue
		}
		if v, err := store.Get(key); err == nil {
			*dst = v
		}
	}
}

// Mask hides all but the last four characters of a secret
func Mask(value string) string {
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	return strings.Repeat("*", len(value)-4) + value[len(value)-4:]
}

func isCredentialKey(key string) bool {
	for _, k := range CredentialKeys {
		if k == key {
			return true
		}
	}
	return false
}
