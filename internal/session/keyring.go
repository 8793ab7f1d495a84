package session

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringService is the credential-manager service name the CLI stores under.
const KeyringService = "agrisense-cli"

// KeyringStore persists the session in the OS keychain/credential manager,
// one token and one role entry per server.
type KeyringStore struct {
	service string
	server  string
}

// NewKeyringStore returns a store scoped to the given server.
func NewKeyringStore(server string) *KeyringStore {
	return &KeyringStore{service: KeyringService, server: server}
}

func (k *KeyringStore) key(name string) string {
	return fmt.Sprintf("%s@%s", name, k.server)
}

func (k *KeyringStore) get(name string) (string, error) {
	value, err := keyring.Get(k.service, k.key(name))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s from keyring: %w", name, err)
	}
	return value, nil
}

func (k *KeyringStore) delete(name string) error {
	if err := keyring.Delete(k.service, k.key(name)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", name, err)
	}
	return nil
}

func (k *KeyringStore) Load() (Session, error) {
	token, err := k.get(tokenKey)
	if err != nil {
		return Anonymous, err
	}
	if token == "" {
		return Anonymous, nil
	}

	role, err := k.get(roleKey)
	if err != nil {
		return Anonymous, err
	}

	return Session{Token: token, Role: ParseRole(role)}, nil
}

// Save writes the role before the token so a half-written session never
// carries a token with the previous user's role.
func (k *KeyringStore) Save(s Session) error {
	if s.Token == "" {
		return k.Clear()
	}

	if err := keyring.Set(k.service, k.key(roleKey), s.Role.String()); err != nil {
		return fmt.Errorf("failed to save role: %w", err)
	}
	if err := keyring.Set(k.service, k.key(tokenKey), s.Token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Clear removes the token first so the session reads as anonymous even if
// removing the role fails.
func (k *KeyringStore) Clear() error {
	if err := k.delete(tokenKey); err != nil {
		return err
	}
	return k.delete(roleKey)
}
