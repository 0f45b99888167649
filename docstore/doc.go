// Package docstore provides durable storage for the vault's encrypted entries.
//
// The whole vault is one document: a map from vault key to sealed blob. The
// document is only ever replaced whole, by AtomicUpdate, which applies a pure
// function to the latest committed snapshot and commits the result. Every
// commit gets the next version number and a UUIDv7 commit id.
//
// # Backends
//
//   - MemoryStore: in-process only; for tests and ephemeral vaults
//   - FileStore: one binary document file, replaced atomically on commit
//   - SQLiteStore: one row in a SQLite database; safe for several processes
//
// # Document Format
//
// Documents are encoded in protobuf wire format (see encoding.go). The entries
// map is field 1, so files written by the Android CryptoVault DataStore can be
// read directly.
//
// # Change Notification
//
// Watch returns a per-subscriber channel of snapshots. Commits made through
// the same store wake subscribers immediately; a SQLiteStore opened with
// WithPollInterval also picks up commits from other processes. Subscribers
// may miss intermediate versions but never see a version go backwards.
package docstore
