package vault

import (
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/cryptovault/codec"
)

// KeyNormalizer maps a caller-supplied key to the key stored in the document.
type KeyNormalizer func(string) string

// NFC normalizes keys to Unicode Normalization Form C, so that "café" typed
// precomposed or decomposed names the same entry.
func NFC(key string) string {
	return norm.NFC.String(key)
}

// Option configures a Vault.
type Option func(*Vault)

// WithLogger sets the vault's logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.log = l
		}
	}
}

// WithCodec replaces the default cipher codec.
func WithCodec(c *codec.Codec) Option {
	return func(v *Vault) {
		if c != nil {
			v.codec = c
		}
	}
}

// WithKeyNormalizer applies f to every key before it reaches the store.
// Keys are used verbatim by default.
func WithKeyNormalizer(f KeyNormalizer) Option {
	return func(v *Vault) { v.normalize = f }
}
