// Package vault is an encrypted string key-value store.
//
// Values are sealed with AES-256-GCM under one vault key held by a
// keystore.Provider and kept as Base64 blobs in a docstore.Store document.
// Every write is a single atomic update of that document.
//
// # Calling Conventions
//
// Each operation has a blocking form and a non-blocking form that run the
// same code:
//
//	v.Put(ctx, "token", "abc123")                 // blocking
//	v.PutAsync(ctx, "token", "abc123", func(err error) { ... })
//	err := v.PutFuture(ctx, "token", "abc123").Wait(ctx)
//
// Non-blocking writes are not cancellable once started and report exactly
// one outcome. Watch streams the current value of one key, re-evaluated on
// every document change, until its context is cancelled.
//
// # Errors
//
// Failures carry a vaulterr kind: KEY_STORE_UNAVAILABLE, ENCRYPTION_FAILED,
// DECRYPTION_FAILED or STORE_TRANSACTION_FAILED. A failed Put leaves the
// previous value in place.
//
// # Shared Handles
//
// Open builds a vault from a config.Config and shares the key provider and
// document store with every other vault opened in the process for the same
// settings.
package vault
