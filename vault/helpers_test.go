package vault

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cryptovault/docstore"
	"github.com/roach88/cryptovault/keystore"
)

// newMemoryProvider returns a provider over a fresh in-memory key ring.
func newMemoryProvider() *keystore.CachingProvider {
	return keystore.NewProvider(keystore.NewKeyringBackend(keyring.NewArrayKeyring(nil)), "")
}

// createTestVault returns a vault over a fresh memory store and key ring.
// The vault is closed when the test ends.
func createTestVault(t *testing.T, opts ...Option) (*Vault, docstore.Store) {
	t.Helper()
	store := docstore.NewMemoryStore()
	v := New(newMemoryProvider(), store, opts...)
	t.Cleanup(func() { v.Close() })
	return v, store
}

func openTestSQLite(t *testing.T, path string) *docstore.SQLiteStore {
	t.Helper()
	s, err := docstore.OpenSQLite(path)
	require.NoError(t, err)
	return s
}

func tempDB(t *testing.T) string {
	return filepath.Join(t.TempDir(), "vault.db")
}

// recvResult reads one Result or fails after a timeout.
func recvResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "watch channel closed")
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
		return Result{}
	}
}

// recvUntil reads results until pred holds, failing after a timeout.
func recvUntil(t *testing.T, ch <-chan Result, pred func(Result) bool) Result {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			require.True(t, ok, "watch channel closed")
			if pred(r) {
				return r
			}
		case <-deadline:
			t.Fatal("timed out waiting for result")
			return Result{}
		}
	}
}

// requireClosed fails unless ch is closed promptly.
func requireClosed(t *testing.T, ch <-chan Result) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed")
		}
	}
}

func version(t *testing.T, s docstore.Store) int64 {
	t.Helper()
	snap, err := s.Read(context.Background())
	require.NoError(t, err)
	return snap.Version
}
