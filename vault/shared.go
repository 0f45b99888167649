package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/cryptovault/config"
	"github.com/roach88/cryptovault/docstore"
	"github.com/roach88/cryptovault/keystore"
)

// Open returns a vault for cfg backed by process-wide handles: every vault
// opened with the same keystore settings shares one key provider, and every
// vault opened with the same store settings shares one document store.
// Handles are reference counted and released when the last vault using them
// closes.
//
// A key store that cannot be opened does not fail Open. Every key operation
// on the returned vault fails with KEY_STORE_UNAVAILABLE instead, until all
// vaults sharing the failed handle are closed.
func Open(cfg config.Config, opts ...Option) (*Vault, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	probe := &Vault{log: slog.Default()}
	for _, opt := range opts {
		opt(probe)
	}
	log := probe.log

	pid := providerIDFor(cfg.Keystore)
	sid := storeIDFor(cfg.Store)

	provider := process.acquireProvider(pid, func() keystore.Provider {
		return openProvider(cfg.Keystore, log)
	})
	store, err := process.acquireStore(sid, func() (docstore.Store, error) {
		return openStore(cfg.Store, log)
	})
	if err != nil {
		process.releaseProvider(pid)
		return nil, err
	}

	if cfg.Keys.Normalize == "nfc" {
		opts = append([]Option{WithKeyNormalizer(NFC)}, opts...)
	}
	v := New(provider, store, opts...)
	v.release = func() error {
		process.releaseProvider(pid)
		return process.releaseStore(sid)
	}
	return v, nil
}

func openProvider(cfg config.KeystoreConfig, log *slog.Logger) keystore.Provider {
	backend, err := keystore.OpenKeyring(keystore.KeyringConfig{
		Backend:     cfg.Backend,
		ServiceName: cfg.Service,
		FileDir:     cfg.FileDir,
		Password:    cfg.Password,
	})
	if err != nil {
		log.Error("key store unavailable", "backend", cfg.Backend, "error", err)
		return keystore.NewFailedProvider(err)
	}
	return keystore.NewProvider(backend, cfg.Alias, keystore.WithLogger(log))
}

func openStore(cfg config.StoreConfig, log *slog.Logger) (docstore.Store, error) {
	retry := docstore.DefaultRetryPolicy()
	retry.MaxRetries = cfg.MaxRetries
	retry.MaxElapsed = cfg.RetryMaxElapsed

	opts := []docstore.Option{
		docstore.WithLogger(log),
		docstore.WithRetryPolicy(retry),
		docstore.WithPollInterval(cfg.PollInterval),
		docstore.WithDocumentName(cfg.Document),
	}

	switch cfg.Backend {
	case "memory":
		return docstore.NewMemoryStore(opts...), nil
	case "file":
		log.Warn("file store does not coordinate writers across processes", "path", cfg.Path)
		s, err := docstore.OpenFileStore(cfg.Path, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		s, err := docstore.OpenSQLite(cfg.Path, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("open store: unknown backend %q", cfg.Backend)
	}
}

type providerID struct {
	backend  string
	location string
	alias    string
}

func providerIDFor(cfg config.KeystoreConfig) providerID {
	location := cfg.Service
	if cfg.Backend == "file" {
		location = filepath.Clean(cfg.FileDir)
	}
	return providerID{backend: cfg.Backend, location: location, alias: cfg.Alias}
}

type storeID struct {
	backend  string
	path     string
	document string
}

func storeIDFor(cfg config.StoreConfig) storeID {
	id := storeID{backend: cfg.Backend, document: cfg.Document}
	if cfg.Backend != "memory" {
		if abs, err := filepath.Abs(cfg.Path); err == nil {
			id.path = abs
		} else {
			id.path = filepath.Clean(cfg.Path)
		}
	}
	return id
}

type sharedProvider struct {
	provider keystore.Provider
	refs     int
}

type sharedStore struct {
	store docstore.Store
	refs  int
}

// registry holds the process-wide key providers and document stores.
type registry struct {
	mu        sync.Mutex
	providers map[providerID]*sharedProvider
	stores    map[storeID]*sharedStore
}

var process = &registry{
	providers: make(map[providerID]*sharedProvider),
	stores:    make(map[storeID]*sharedStore),
}

func (r *registry) acquireProvider(id providerID, open func() keystore.Provider) keystore.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.providers[id]
	if !ok {
		sp = &sharedProvider{provider: open()}
		r.providers[id] = sp
	}
	sp.refs++
	return sp.provider
}

func (r *registry) releaseProvider(id providerID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sp, ok := r.providers[id]
	if !ok {
		return
	}
	if sp.refs--; sp.refs == 0 {
		delete(r.providers, id)
	}
}

func (r *registry) acquireStore(id storeID, open func() (docstore.Store, error)) (docstore.Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ss, ok := r.stores[id]
	if !ok {
		store, err := open()
		if err != nil {
			return nil, err
		}
		ss = &sharedStore{store: store}
		r.stores[id] = ss
	}
	ss.refs++
	return ss.store, nil
}

func (r *registry) releaseStore(id storeID) error {
	r.mu.Lock()
	ss, ok := r.stores[id]
	if !ok {
		r.mu.Unlock()
		return errors.New("release store: not registered")
	}
	ss.refs--
	if ss.refs > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.stores, id)
	r.mu.Unlock()

	return ss.store.Close()
}
