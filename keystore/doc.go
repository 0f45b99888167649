// Package keystore obtains the vault's symmetric key.
//
// The key is a 256-bit AES key restricted to GCM, stored under a fixed alias
// (DefaultAlias) in a platform key store reached through 99designs/keyring:
// macOS Keychain, Secret Service, KWallet, Windows Credential Manager, keyctl
// or pass. Where none of those exist, the keyring file backend keeps the key
// in a password-protected file.
//
// Keys are exposed only as *Key handles. A handle can build an AEAD but never
// returns its bytes; the material lives in a memguard enclave while in
// process memory.
//
// Provider resolves the alias lazily. The first call fetches the key or
// generates it if absent; later calls return the cached handle.
package keystore
