package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/awnumar/memguard"
)

const (
	// DefaultAlias is the fixed alias the vault key lives under.
	DefaultAlias = "CryptoVault_KeyAlias_v1"

	// KeySize is the size of the vault key in bytes (AES-256).
	KeySize = 32
)

// Key is an opaque handle to the vault's symmetric key.
//
// Key material is sealed in a memguard enclave. It is only decrypted into a
// locked buffer for the duration of AEAD construction and is never returned
// to callers.
type Key struct {
	alias   string
	enclave *memguard.Enclave
}

// newKey seals a copy of material into a new Key. The caller's slice is left
// untouched; backends may share it with their own storage.
func newKey(alias string, material []byte) (*Key, error) {
	if len(material) != KeySize {
		return nil, fmt.Errorf("key %q: expected %d bytes, got %d", alias, KeySize, len(material))
	}
	buf := make([]byte, KeySize)
	copy(buf, material)
	// NewEnclave wipes buf after copying it in.
	return &Key{alias: alias, enclave: memguard.NewEnclave(buf)}, nil
}

// Alias returns the alias the key was loaded or generated under.
func (k *Key) Alias() string {
	return k.alias
}

// AEAD returns an AES-256-GCM instance (12-byte nonce, 16-byte tag) bound to
// the key.
func (k *Key) AEAD() (cipher.AEAD, error) {
	if k == nil || k.enclave == nil {
		return nil, fmt.Errorf("key is not initialized")
	}
	lb, err := k.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("open key enclave: %w", err)
	}
	defer lb.Destroy()

	block, err := aes.NewCipher(lb.Bytes())
	if err != nil {
		return nil, fmt.Errorf("block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	return aead, nil
}

// String never prints key material.
func (k *Key) String() string {
	return fmt.Sprintf("keystore.Key(%s)", k.alias)
}
