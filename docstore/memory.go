package docstore

import (
	"context"
	"log/slog"
	"maps"
	"sync"
)

// MemoryStore keeps the document in process memory, optionally writing every
// commit through to a persister. Updates are serialized by a mutex, so they
// never conflict.
type MemoryStore struct {
	log     *slog.Logger
	retry   RetryPolicy
	hub     *hub
	persist func(Snapshot) error

	mu     sync.RWMutex
	snap   Snapshot
	closed bool
}

// NewMemoryStore creates an empty, non-durable store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return newMemoryStore(Snapshot{Entries: Entries{}}, nil, applyOptions(opts))
}

func newMemoryStore(initial Snapshot, persist func(Snapshot) error, o options) *MemoryStore {
	if initial.Entries == nil {
		initial.Entries = Entries{}
	}
	return &MemoryStore{
		log:     o.log,
		retry:   o.retry,
		hub:     newHub(),
		persist: persist,
		snap:    initial,
	}
}

// Read implements Store.
func (m *MemoryStore) Read(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	return m.snap, nil
}

// Watch implements Store.
func (m *MemoryStore) Watch(ctx context.Context) <-chan Snapshot {
	return watch(ctx, m.hub, m.log, m.Read)
}

// AtomicUpdate implements Store.
func (m *MemoryStore) AtomicUpdate(ctx context.Context, fn UpdateFunc) (Snapshot, error) {
	var result Snapshot
	var changed bool

	err := m.retry.commit(ctx, "docstore.update", func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return ErrClosed
		}

		next, err := fn(m.snap.Entries.Clone())
		if err != nil {
			return &updateFuncError{err: err}
		}
		if maps.Equal(m.snap.Entries, next) {
			result, changed = m.snap, false
			return nil
		}

		candidate := Snapshot{
			Version:  m.snap.Version + 1,
			CommitID: newCommitID(),
			Entries:  next.Clone(),
		}
		if m.persist != nil {
			if err := m.persist(candidate); err != nil {
				return err
			}
		}
		m.snap = candidate
		result, changed = candidate, true
		return nil
	}, neverRetry)
	if err != nil {
		return Snapshot{}, err
	}

	if changed {
		m.log.Debug("document committed", "version", result.Version, "commit_id", result.CommitID)
		m.hub.publish()
	}
	return result, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.hub.close()
	return nil
}

func neverRetry(error) bool { return false }
