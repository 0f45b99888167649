// Package vaulterr defines the error taxonomy shared by the vault packages.
//
// Every failure surfaced by the keystore, codec, docstore and vault packages
// is either a *Error carrying one of four kinds or an error returned by a
// caller-supplied function:
//
//   - KEY_STORE_UNAVAILABLE: the key store could not be opened or the key
//     could not be generated
//   - DECRYPTION_FAILED: a stored blob could not be opened
//   - ENCRYPTION_FAILED: a value could not be sealed
//   - STORE_TRANSACTION_FAILED: a document update could not be committed
//
// DECRYPTION_FAILED never carries a cause. Malformed Base64, short blobs,
// wrong keys and tampered bytes all produce the same error value text, so the
// error cannot be used as a validity oracle.
//
// Match kinds with the Is helpers or errors.Is against the sentinels:
//
//	if errors.Is(err, vaulterr.ErrDecryptionFailed) {
//	    // stored value exists but cannot be recovered
//	}
package vaulterr
