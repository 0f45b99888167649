package keystore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/99designs/keyring"
	"github.com/awnumar/memguard"

	"github.com/roach88/cryptovault/vaulterr"
)

// ErrKeyNotFound is returned by Backend.GetKey when no key exists under the
// alias.
var ErrKeyNotFound = errors.New("key not found")

// KeySpec describes the key a backend should generate.
type KeySpec struct {
	Algorithm  string
	Mode       string
	Padding    string
	Size       int // bits
	Exportable bool
}

// DefaultKeySpec is the only spec backends accept: a non-exportable AES-256
// key restricted to GCM without padding.
func DefaultKeySpec() KeySpec {
	return KeySpec{
		Algorithm:  "AES",
		Mode:       "GCM",
		Padding:    "NoPadding",
		Size:       KeySize * 8,
		Exportable: false,
	}
}

// validate rejects anything other than DefaultKeySpec.
func (s KeySpec) validate() error {
	if s != DefaultKeySpec() {
		return fmt.Errorf("unsupported key spec %s/%s/%s-%d (exportable=%t)",
			s.Algorithm, s.Mode, s.Padding, s.Size, s.Exportable)
	}
	return nil
}

// Backend is the platform key store capability.
// Implementations must be safe for concurrent use.
type Backend interface {
	// GetKey returns the key stored under alias, or ErrKeyNotFound.
	GetKey(ctx context.Context, alias string) (*Key, error)

	// GenerateKey creates a key matching spec, persists it under alias and
	// returns a handle to it.
	GenerateKey(ctx context.Context, alias string, spec KeySpec) (*Key, error)
}

// KeyringConfig selects and configures a keyring backend.
type KeyringConfig struct {
	// Backend is a keyring backend name ("keychain", "secret-service",
	// "kwallet", "wincred", "keyctl", "pass", "file") or "memory".
	// Empty lets keyring pick the platform default.
	Backend string

	// ServiceName scopes items in OS key stores.
	ServiceName string

	// FileDir is where the file backend keeps its encrypted items.
	FileDir string

	// Password protects items written by the file backend.
	Password string
}

// KeyringBackend stores the vault key in a 99designs/keyring key ring.
//
// On platforms with an OS key store the key never touches the filesystem.
// Elsewhere the file backend keeps it in a password-protected JWE file.
type KeyringBackend struct {
	ring   keyring.Keyring
	random io.Reader
}

// OpenKeyring opens the key ring described by cfg.
// Returns a KEY_STORE_UNAVAILABLE error if no backend can be opened.
func OpenKeyring(cfg KeyringConfig) (*KeyringBackend, error) {
	if strings.EqualFold(cfg.Backend, "memory") {
		return NewKeyringBackend(keyring.NewArrayKeyring(nil)), nil
	}

	kcfg := keyring.Config{
		ServiceName:              cfg.ServiceName,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  cfg.ServiceName,
		KWalletAppID:             cfg.ServiceName,
		KWalletFolder:            cfg.ServiceName,
		PassPrefix:               cfg.ServiceName,
		WinCredPrefix:            cfg.ServiceName,
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.Password),
	}
	if cfg.Backend != "" {
		kcfg.AllowedBackends = []keyring.BackendType{keyring.BackendType(cfg.Backend)}
	}

	ring, err := keyring.Open(kcfg)
	if err != nil {
		return nil, vaulterr.KeyStoreUnavailable("keystore.open", err)
	}
	return NewKeyringBackend(ring), nil
}

// NewKeyringBackend wraps an already opened key ring.
func NewKeyringBackend(ring keyring.Keyring) *KeyringBackend {
	return &KeyringBackend{ring: ring, random: rand.Reader}
}

// GetKey implements Backend.
func (b *KeyringBackend) GetKey(ctx context.Context, alias string) (*Key, error) {
	item, err := b.ring.Get(alias)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, vaulterr.KeyStoreUnavailable("keystore.get", err)
	}

	key, err := newKey(alias, item.Data)
	if err != nil {
		return nil, vaulterr.KeyStoreUnavailable("keystore.get", err)
	}
	return key, nil
}

// GenerateKey implements Backend.
func (b *KeyringBackend) GenerateKey(ctx context.Context, alias string, spec KeySpec) (*Key, error) {
	if err := spec.validate(); err != nil {
		return nil, vaulterr.KeyStoreUnavailable("keystore.generate", err)
	}

	material := make([]byte, KeySize)
	defer memguard.WipeBytes(material)
	if _, err := io.ReadFull(b.random, material); err != nil {
		return nil, vaulterr.KeyStoreUnavailable("keystore.generate", fmt.Errorf("read random: %w", err))
	}

	stored := make([]byte, KeySize)
	copy(stored, material)
	err := b.ring.Set(keyring.Item{
		Key:         alias,
		Data:        stored,
		Label:       "CryptoVault key",
		Description: "AES-256-GCM vault key",
	})
	if err != nil {
		return nil, vaulterr.KeyStoreUnavailable("keystore.generate", fmt.Errorf("persist key: %w", err))
	}

	key, err := newKey(alias, material)
	if err != nil {
		return nil, vaulterr.KeyStoreUnavailable("keystore.generate", err)
	}
	return key, nil
}
