package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"
)

// keyringService is the service name passwords are filed under in the OS
// credential store.
const keyringService = "structsync"

// SecretStore keeps connection passwords out of the profile database.
type SecretStore interface {
	SetSecret(key, value string) error
	// GetSecret returns ErrNotFound when no secret is stored under key.
	GetSecret(key string) (string, error)
	DeleteSecret(key string) error
}

// KeyringSecrets is a SecretStore backed by a keyring.Keyring.
type KeyringSecrets struct {
	ring keyring.Keyring
}

// NewKeyringSecrets wraps an already opened keyring.
func NewKeyringSecrets(ring keyring.Keyring) *KeyringSecrets {
	return &KeyringSecrets{ring: ring}
}

// NewMemorySecrets returns a SecretStore that lives only in process memory.
func NewMemorySecrets() *KeyringSecrets {
	return NewKeyringSecrets(keyring.NewArrayKeyring(nil))
}

// KeyringOptions selects the credential backend.
type KeyringOptions struct {
	// Backend is one of "" (platform default), "file" or "memory".
	Backend string
	// Dir holds the encrypted file backend.
	Dir string
	// FilePassword unlocks the file backend.
	FilePassword string
}

// OpenKeyring opens the credential store described by opts.
func OpenKeyring(opts KeyringOptions) (*KeyringSecrets, error) {
	if opts.Backend == "memory" {
		return NewMemorySecrets(), nil
	}

	cfg := keyring.Config{
		ServiceName:      keyringService,
		FileDir:          filepath.Join(opts.Dir, "keyring"),
		FilePasswordFunc: keyring.FixedStringPrompt(opts.FilePassword),
	}
	switch opts.Backend {
	case "":
	case "file":
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	default:
		return nil, fmt.Errorf("unknown keyring backend %q", opts.Backend)
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return NewKeyringSecrets(ring), nil
}

func (k *KeyringSecrets) SetSecret(key, value string) error {
	if err := k.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: keyringService + " " + key}); err != nil {
		return fmt.Errorf("store secret %s: %w", key, err)
	}
	return nil
}

func (k *KeyringSecrets) GetSecret(key string) (string, error) {
	item, err := k.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read secret %s: %w", key, err)
	}
	return string(item.Data), nil
}

// DeleteSecret removes key. Missing keys are not an error.
func (k *KeyringSecrets) DeleteSecret(key string) error {
	if err := k.ring.Remove(key); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("delete secret %s: %w", key, err)
	}
	return nil
}

func sshPasswordKey(id string) string   { return id + "_ssh" }
func sshPassphraseKey(id string) string { return id + "_ssh_passphrase" }
