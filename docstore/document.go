package docstore

import (
	"context"
	"maps"
	"slices"
)

// Entries is the logical document: vault key -> Base64 sealed blob.
//
// Entries held by a Snapshot are shared between readers and must not be
// modified. Use With and Without to derive new documents.
type Entries map[string]string

// Clone returns an independent copy. Never returns nil.
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	maps.Copy(out, e)
	return out
}

// With returns a copy of e with key set to value.
func (e Entries) With(key, value string) Entries {
	out := e.Clone()
	out[key] = value
	return out
}

// Without returns a copy of e with key removed.
func (e Entries) Without(key string) Entries {
	out := e.Clone()
	delete(out, key)
	return out
}

// Keys returns the document's keys in sorted order.
func (e Entries) Keys() []string {
	return slices.Sorted(maps.Keys(e))
}

// Snapshot is one committed version of the document.
type Snapshot struct {
	// Version increases by one with every commit. Zero means the document
	// has never been written.
	Version int64

	// CommitID identifies the commit that produced this version (UUIDv7).
	// Empty for version zero.
	CommitID string

	// Entries is the document content. Read-only.
	Entries Entries
}

// Lookup returns the blob stored under key.
func (s Snapshot) Lookup(key string) (string, bool) {
	v, ok := s.Entries[key]
	return v, ok
}

// UpdateFunc maps the latest committed document to its successor.
//
// It must be a pure function of its input: stores may call it more than once
// when a concurrent commit forces a retry. Returning a document equal to the
// input commits nothing. A returned error aborts the update and is passed
// back to the caller unchanged.
type UpdateFunc func(current Entries) (Entries, error)

// Store is a durable, transactional string-to-string document.
// Implementations must be safe for concurrent use.
type Store interface {
	// Read returns the latest committed snapshot.
	Read(ctx context.Context) (Snapshot, error)

	// Watch starts a new subscription. The first value is the current
	// snapshot; after that a value is sent whenever a newer version is
	// observed. Versions never go backwards for one subscription, though
	// intermediate versions may be skipped. The channel is closed when ctx
	// is done or the store is closed.
	Watch(ctx context.Context) <-chan Snapshot

	// AtomicUpdate applies fn to the latest snapshot and commits the result
	// atomically, retrying on conflicting commits. Failures to commit are
	// STORE_TRANSACTION_FAILED errors.
	AtomicUpdate(ctx context.Context, fn UpdateFunc) (Snapshot, error)

	// Close releases the store and ends all subscriptions.
	Close() error
}
