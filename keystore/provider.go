package keystore

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/cryptovault/vaulterr"
)

// Provider hands out the vault key, creating it on first use.
// Implementations must be safe for concurrent use.
type Provider interface {
	GetOrCreateKey(ctx context.Context) (*Key, error)
}

// ProviderOption configures a CachingProvider.
type ProviderOption func(*CachingProvider)

// WithLogger sets the provider's logger.
func WithLogger(l *slog.Logger) ProviderOption {
	return func(p *CachingProvider) {
		if l != nil {
			p.log = l
		}
	}
}

// CachingProvider resolves the key for one alias through a Backend and caches
// the handle for the life of the process.
//
// Concurrent first calls share a single backend lookup, so at most one key is
// generated per alias by this process. The backend stays the source of truth
// across restarts.
type CachingProvider struct {
	backend Backend
	alias   string
	log     *slog.Logger

	group singleflight.Group

	mu  sync.RWMutex
	key *Key
}

// NewProvider creates a provider for alias (DefaultAlias if empty).
func NewProvider(backend Backend, alias string, opts ...ProviderOption) *CachingProvider {
	if alias == "" {
		alias = DefaultAlias
	}
	p := &CachingProvider{
		backend: backend,
		alias:   alias,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Alias returns the alias the provider resolves.
func (p *CachingProvider) Alias() string {
	return p.alias
}

// GetOrCreateKey implements Provider.
func (p *CachingProvider) GetOrCreateKey(ctx context.Context) (*Key, error) {
	if key := p.cached(); key != nil {
		return key, nil
	}

	v, err, _ := p.group.Do(p.alias, func() (any, error) {
		if key := p.cached(); key != nil {
			return key, nil
		}

		key, err := p.backend.GetKey(ctx, p.alias)
		if errors.Is(err, ErrKeyNotFound) {
			p.log.Info("generating vault key", "alias", p.alias)
			key, err = p.backend.GenerateKey(ctx, p.alias, DefaultKeySpec())
		}
		if err != nil {
			if !vaulterr.IsKeyStoreUnavailable(err) {
				err = vaulterr.KeyStoreUnavailable("keystore.get_or_create", err)
			}
			return nil, err
		}

		p.mu.Lock()
		p.key = key
		p.mu.Unlock()
		p.log.Debug("vault key ready", "alias", p.alias)
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Key), nil
}

func (p *CachingProvider) cached() *Key {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.key
}

// failedProvider reports the same key store error on every call.
type failedProvider struct {
	err error
}

// NewFailedProvider returns a Provider that always fails with err, wrapped as
// KEY_STORE_UNAVAILABLE. Used when the key store could not be opened: the
// failure is fatal to every later operation.
func NewFailedProvider(err error) Provider {
	if !vaulterr.IsKeyStoreUnavailable(err) {
		err = vaulterr.KeyStoreUnavailable("keystore.open", err)
	}
	return failedProvider{err: err}
}

func (f failedProvider) GetOrCreateKey(context.Context) (*Key, error) {
	return nil, f.err
}
