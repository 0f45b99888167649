package docstore

import (
	"path/filepath"
	"testing"
)

// createTestStore creates a SQLite store in a temporary directory.
// The store is closed automatically when the test ends.
func createTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(path, opts...)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
