package codec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/roach88/cryptovault/keystore"
	"github.com/roach88/cryptovault/vaulterr"
)

const (
	// NonceSize is the GCM nonce length prepended to every blob.
	NonceSize = 12

	// TagSize is the GCM authentication tag length appended by Seal.
	TagSize = 16
)

// Option configures a Codec.
type Option func(*Codec)

// WithRandom sets the nonce source. Defaults to crypto/rand.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) {
		if r != nil {
			c.random = r
		}
	}
}

// Codec seals values into Base64 text blobs of nonce || ciphertext || tag.
// Safe for concurrent use.
type Codec struct {
	random io.Reader
}

// New creates a Codec.
func New(opts ...Option) *Codec {
	c := &Codec{random: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt seals plaintext under key with a fresh random nonce and returns the
// Base64 (standard alphabet, padded) encoding of nonce || ciphertext || tag.
func (c *Codec) Encrypt(key *keystore.Key, plaintext []byte) (string, error) {
	aead, err := key.AEAD()
	if err != nil {
		return "", vaulterr.EncryptionFailed("encrypt", err)
	}

	blob := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(c.random, blob); err != nil {
		return "", vaulterr.EncryptionFailed("encrypt", fmt.Errorf("nonce generation: %w", err))
	}

	blob = aead.Seal(blob, blob[:NonceSize], plaintext, nil)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt. Every failure, whether bad Base64, a blob shorter
// than the nonce, a wrong key or tampered bytes, is the same
// DECRYPTION_FAILED error.
func (c *Codec) Decrypt(key *keystore.Key, text string) ([]byte, error) {
	// StdEncoding skips '\r' and '\n', so line-wrapped blobs still decode.
	blob, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, vaulterr.DecryptionFailed("decrypt")
	}
	if len(blob) < NonceSize {
		return nil, vaulterr.DecryptionFailed("decrypt")
	}

	aead, err := key.AEAD()
	if err != nil {
		return nil, vaulterr.DecryptionFailed("decrypt")
	}

	nonce, sealed := blob[:NonceSize], blob[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, vaulterr.DecryptionFailed("decrypt")
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// EncryptString is Encrypt for UTF-8 text.
func (c *Codec) EncryptString(key *keystore.Key, plaintext string) (string, error) {
	return c.Encrypt(key, []byte(plaintext))
}

// DecryptString is Decrypt for UTF-8 text.
func (c *Codec) DecryptString(key *keystore.Key, text string) (string, error) {
	plaintext, err := c.Decrypt(key, text)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
