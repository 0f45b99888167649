package vaulterr

import (
	"errors"
	"fmt"
)

// Kind categorizes vault errors.
type Kind string

const (
	// KindKeyStoreUnavailable indicates the platform key store could not be
	// opened or the vault key could not be generated. Fatal: no operation
	// that needs the key can proceed.
	KindKeyStoreUnavailable Kind = "KEY_STORE_UNAVAILABLE"

	// KindDecryptionFailed covers every way a stored blob can fail to open:
	// bad Base64, a blob shorter than the nonce, a wrong key, or a tag
	// mismatch. Callers cannot tell these apart.
	KindDecryptionFailed Kind = "DECRYPTION_FAILED"

	// KindEncryptionFailed indicates the nonce source or the cipher failed
	// while sealing a value. Nothing is written to the store.
	KindEncryptionFailed Kind = "ENCRYPTION_FAILED"

	// KindStoreTransactionFailed indicates a document update could not be
	// committed after the store's retry policy was exhausted.
	KindStoreTransactionFailed Kind = "STORE_TRANSACTION_FAILED"
)

// decryptionMessage is the only text a decryption error ever carries.
const decryptionMessage = "decryption failed"

// Error is the error type returned by vault packages.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op names the operation that failed (e.g. "put", "keystore.open").
	Op string

	// Err is the underlying cause. Always nil for KindDecryptionFailed.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Kind == KindDecryptionFailed {
		return msg + ": " + decryptionMessage
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a vault error of the same kind, so sentinel
// comparisons like errors.Is(err, vaulterr.ErrDecryptionFailed) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrKeyStoreUnavailable    = &Error{Kind: KindKeyStoreUnavailable}
	ErrDecryptionFailed       = &Error{Kind: KindDecryptionFailed}
	ErrEncryptionFailed       = &Error{Kind: KindEncryptionFailed}
	ErrStoreTransactionFailed = &Error{Kind: KindStoreTransactionFailed}
)

// KeyStoreUnavailable wraps err as a key store failure for op.
func KeyStoreUnavailable(op string, err error) *Error {
	return &Error{Kind: KindKeyStoreUnavailable, Op: op, Err: err}
}

// DecryptionFailed returns an opaque decryption error for op. The cause is
// deliberately dropped.
func DecryptionFailed(op string) *Error {
	return &Error{Kind: KindDecryptionFailed, Op: op}
}

// EncryptionFailed wraps err as an encryption failure for op.
func EncryptionFailed(op string, err error) *Error {
	return &Error{Kind: KindEncryptionFailed, Op: op, Err: err}
}

// StoreTransactionFailed wraps err as a failed document commit for op.
func StoreTransactionFailed(op string, err error) *Error {
	return &Error{Kind: KindStoreTransactionFailed, Op: op, Err: err}
}

// KindOf returns the kind of the first vault error in err's chain, or "" if
// there is none.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

// IsKeyStoreUnavailable returns true if err is a key store failure.
// Uses errors.As to handle wrapped errors.
func IsKeyStoreUnavailable(err error) bool {
	return KindOf(err) == KindKeyStoreUnavailable
}

// IsDecryptionFailed returns true if err is a decryption failure.
func IsDecryptionFailed(err error) bool {
	return KindOf(err) == KindDecryptionFailed
}

// IsEncryptionFailed returns true if err is an encryption failure.
func IsEncryptionFailed(err error) bool {
	return KindOf(err) == KindEncryptionFailed
}

// IsStoreTransactionFailed returns true if err is a failed document commit.
func IsStoreTransactionFailed(err error) bool {
	return KindOf(err) == KindStoreTransactionFailed
}
