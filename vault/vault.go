package vault

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/cryptovault/codec"
	"github.com/roach88/cryptovault/docstore"
	"github.com/roach88/cryptovault/keystore"
)

// ErrClosed is returned by operations started after Close.
var ErrClosed = errors.New("vault is closed")

// Vault stores string values encrypted under a single vault key.
//
// Thread-safety model:
//   - every method is safe for concurrent use
//   - writes are serialized by the document store's atomic update, not by
//     the vault
//   - the blocking and asynchronous forms of an operation run the same code
type Vault struct {
	provider  keystore.Provider
	store     docstore.Store
	codec     *codec.Codec
	log       *slog.Logger
	normalize KeyNormalizer

	// release gives up the store when the vault closes.
	release func() error

	// stopWatches ends every subscription when the vault closes.
	watchCtx    context.Context
	stopWatches context.CancelFunc

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// New creates a vault over provider and store. The vault owns store and
// closes it on Close.
func New(provider keystore.Provider, store docstore.Store, opts ...Option) *Vault {
	v := &Vault{
		provider: provider,
		store:    store,
		codec:    codec.New(),
		log:      slog.Default(),
		release:  store.Close,
	}
	v.watchCtx, v.stopWatches = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Put encrypts value and stores it under key, replacing any previous value.
// Nothing is written if encryption fails.
func (v *Vault) Put(ctx context.Context, key, value string) error {
	leave, err := v.enter()
	if err != nil {
		return err
	}
	defer leave()
	return v.put(ctx, key, value)
}

// Get returns the decrypted value stored under key. The boolean is false if
// the key is absent.
func (v *Vault) Get(ctx context.Context, key string) (string, bool, error) {
	leave, err := v.enter()
	if err != nil {
		return "", false, err
	}
	defer leave()
	l, err := v.get(ctx, key)
	return l.Value, l.Present, err
}

// Delete removes key. Deleting an absent key succeeds and commits nothing.
func (v *Vault) Delete(ctx context.Context, key string) error {
	leave, err := v.enter()
	if err != nil {
		return err
	}
	defer leave()
	return v.delete(ctx, key)
}

// Contains reports whether key is present without decrypting its value.
func (v *Vault) Contains(ctx context.Context, key string) (bool, error) {
	leave, err := v.enter()
	if err != nil {
		return false, err
	}
	defer leave()
	snap, err := v.store.Read(ctx)
	if err != nil {
		return false, err
	}
	_, ok := snap.Lookup(v.key(key))
	return ok, nil
}

// Keys returns the stored keys in sorted order.
func (v *Vault) Keys(ctx context.Context) ([]string, error) {
	leave, err := v.enter()
	if err != nil {
		return nil, err
	}
	defer leave()
	snap, err := v.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Entries.Keys(), nil
}

// Close ends all subscriptions, waits for in-flight operations of every
// form, then releases the store. Safe to call more than once.
func (v *Vault) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	v.stopWatches()
	v.inflight.Wait()
	return v.release()
}

func (v *Vault) checkOpen() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return ErrClosed
	}
	return nil
}

// enter registers an operation that Close must wait for. The returned
// function ends it.
func (v *Vault) enter() (func(), error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return nil, ErrClosed
	}
	v.inflight.Add(1)
	return v.inflight.Done, nil
}

func (v *Vault) key(k string) string {
	if v.normalize == nil {
		return k
	}
	return v.normalize(k)
}

// Lookup is the result of reading one key.
type Lookup struct {
	Value   string
	Present bool
}

func (v *Vault) put(ctx context.Context, key, value string) error {
	key = v.key(key)

	k, err := v.provider.GetOrCreateKey(ctx)
	if err != nil {
		return err
	}

	// Sealed once, before the update: the update function may be replayed.
	blob, err := v.codec.EncryptString(k, value)
	if err != nil {
		return err
	}

	snap, err := v.store.AtomicUpdate(ctx, func(cur docstore.Entries) (docstore.Entries, error) {
		return cur.With(key, blob), nil
	})
	if err != nil {
		return err
	}
	v.log.Debug("vault put", "key", key, "version", snap.Version)
	return nil
}

func (v *Vault) get(ctx context.Context, key string) (Lookup, error) {
	key = v.key(key)

	k, err := v.provider.GetOrCreateKey(ctx)
	if err != nil {
		return Lookup{}, err
	}

	snap, err := v.store.Read(ctx)
	if err != nil {
		return Lookup{}, err
	}
	return v.open(k, snap, key)
}

func (v *Vault) delete(ctx context.Context, key string) error {
	key = v.key(key)

	if _, err := v.provider.GetOrCreateKey(ctx); err != nil {
		return err
	}

	snap, err := v.store.AtomicUpdate(ctx, func(cur docstore.Entries) (docstore.Entries, error) {
		return cur.Without(key), nil
	})
	if err != nil {
		return err
	}
	v.log.Debug("vault delete", "key", key, "version", snap.Version)
	return nil
}

// open decrypts the value of key in snap.
func (v *Vault) open(k *keystore.Key, snap docstore.Snapshot, key string) (Lookup, error) {
	blob, ok := snap.Lookup(key)
	if !ok {
		return Lookup{}, nil
	}
	value, err := v.codec.DecryptString(k, blob)
	if err != nil {
		return Lookup{}, err
	}
	return Lookup{Value: value, Present: true}, nil
}
