package docstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore is a MemoryStore that writes every commit to a single binary
// document file. Writes go to a temporary file in the same directory which
// is synced and renamed over the target, so a crash leaves either the old or
// the new document on disk.
//
// A FileStore assumes it is the only writer of its file. Use a SQLite store
// when several processes share one document.
type FileStore struct {
	*MemoryStore
	path string
}

// OpenFileStore opens or creates the document file at path.
func OpenFileStore(path string, opts ...Option) (*FileStore, error) {
	o := applyOptions(opts)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}

	initial := Snapshot{Entries: Entries{}}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("open file store: %w", err)
	default:
		initial, err = UnmarshalDocument(data)
		if err != nil {
			return nil, fmt.Errorf("open file store %s: %w", path, err)
		}
	}

	fs := &FileStore{path: path}
	fs.MemoryStore = newMemoryStore(initial, fs.write, o)
	o.log.Debug("file store opened", "path", path, "version", initial.Version, "entries", len(initial.Entries))
	return fs, nil
}

// Path returns the document file path.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) write(s Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(MarshalDocument(s)); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}
