package scorer

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

// KeyringStore keeps scoring-endpoint bearer tokens in the OS keychain,
// with an optional file fallback for environments without a system
// keyring (headless CI, containers).
type KeyringStore struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewKeyringStore creates a keyring wrapper for the given service name.
func NewKeyringStore(serviceName, fallbackPath string) *KeyringStore {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "tokenshap"
	}
	return &KeyringStore{
		service:      serviceName,
		fallbackPath: fallbackPath,
	}
}

// SetToken stores the bearer token for an account.
func (k *KeyringStore) SetToken(account, token string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return fmt.Errorf("scorer: keyring account is required")
	}
	if err := keyring.Set(k.service, account, token); err == nil {
		return nil
	} else if !isKeyringUnavailable(err) {
		return fmt.Errorf("scorer: keyring set: %w", err)
	}
	return k.setFallback(account, token)
}

// GetToken retrieves the bearer token for an account. Returns
// keyring.ErrNotFound when no token is stored anywhere.
func (k *KeyringStore) GetToken(account string) (string, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return "", fmt.Errorf("scorer: keyring account is required")
	}
	val, err := keyring.Get(k.service, account)
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("scorer: keyring get: %w", err)
	}
	fallback, ferr := k.getFallback(account)
	if ferr == nil {
		return fallback, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", keyring.ErrNotFound
	}
	return "", ferr
}

// DeleteToken removes the stored token for an account.
func (k *KeyringStore) DeleteToken(account string) error {
	if err := keyring.Delete(k.service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
		return fmt.Errorf("scorer: keyring delete: %w", err)
	}
	return k.deleteFallback(account)
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

type fallbackSecrets map[string]string

func (k *KeyringStore) loadFallback() (fallbackSecrets, error) {
	secrets := make(fallbackSecrets)
	if strings.TrimSpace(k.fallbackPath) == "" {
		return secrets, nil
	}
	data, err := os.ReadFile(k.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return secrets, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, err
	}
	return secrets, nil
}

func (k *KeyringStore) saveFallback(secrets fallbackSecrets) error {
	if err := os.MkdirAll(filepath.Dir(k.fallbackPath), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(secrets)
	if err != nil {
		return err
	}
	return os.WriteFile(k.fallbackPath, data, 0o600)
}

func (k *KeyringStore) setFallback(account, token string) error {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return fmt.Errorf("scorer: keyring unavailable and no fallback path configured")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	secrets, err := k.loadFallback()
	if err != nil {
		return err
	}
	secrets[account] = token
	return k.saveFallback(secrets)
}

func (k *KeyringStore) getFallback(account string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	secrets, err := k.loadFallback()
	if err != nil {
		return "", err
	}
	token, ok := secrets[account]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return token, nil
}

func (k *KeyringStore) deleteFallback(account string) error {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	secrets, err := k.loadFallback()
	if err != nil {
		return err
	}
	delete(secrets, account)
	return k.saveFallback(secrets)
}
