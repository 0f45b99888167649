package docstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/cryptovault/vaulterr"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - documents table
const currentSchemaVersion = 1

// ErrUnknownSchemaVersion is returned when the database was written by a
// newer release.
var ErrUnknownSchemaVersion = errors.New("unknown document schema version")

// SQLiteStore keeps the document as one row of a SQLite database.
//
// Commits are optimistic: a transaction reads the row, applies the update
// and writes it back only if the version is unchanged. A version mismatch or
// a busy database is retried under the store's RetryPolicy. Several
// processes may share one database file.
type SQLiteStore struct {
	db       *sql.DB
	document string
	log      *slog.Logger
	retry    RetryPolicy
	hub      *hub

	// seen is the highest version this store has published.
	seen atomic.Int64

	stop     chan struct{}
	wg       sync.WaitGroup
	closeMu  sync.Mutex
	isClosed bool
}

// OpenSQLite creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func OpenSQLite(path string, opts ...Option) (*SQLiteStore, error) {
	o := applyOptions(opts)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if _, err := db.Exec(`INSERT OR IGNORE INTO documents (name) VALUES (?)`, o.document); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create document %q: %w", o.document, err)
	}

	s := &SQLiteStore{
		db:       db,
		document: o.document,
		log:      o.log,
		retry:    o.retry,
		hub:      newHub(),
		stop:     make(chan struct{}),
	}

	if o.pollInterval > 0 {
		s.wg.Add(1)
		go s.poll(o.pollInterval)
	}

	o.log.Debug("sqlite store opened", "path", path, "document", o.document)
	return s, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and records the schema
// version. Refuses databases from a newer schema.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("%w: %d (supported: %d)", ErrUnknownSchemaVersion, version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) readFrom(ctx context.Context, q queryer) (Snapshot, error) {
	var (
		version  int64
		commitID string
		body     []byte
	)
	err := q.QueryRowContext(ctx, `
		SELECT version, commit_id, body FROM documents WHERE name = ?
	`, s.document).Scan(&version, &commitID, &body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read document: %w", err)
	}

	snap, err := UnmarshalDocument(body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read document: %w", err)
	}
	// The columns are authoritative for version and commit id.
	snap.Version = version
	snap.CommitID = commitID
	return snap, nil
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context) (Snapshot, error) {
	if s.closed() {
		return Snapshot{}, ErrClosed
	}
	return s.readFrom(ctx, s.db)
}

// Watch implements Store.
func (s *SQLiteStore) Watch(ctx context.Context) <-chan Snapshot {
	return watch(ctx, s.hub, s.log, s.Read)
}

// AtomicUpdate implements Store.
func (s *SQLiteStore) AtomicUpdate(ctx context.Context, fn UpdateFunc) (Snapshot, error) {
	if s.closed() {
		return Snapshot{}, vaulterr.StoreTransactionFailed("docstore.update", ErrClosed)
	}

	var result Snapshot
	var changed bool
	attempts := 0

	err := s.retry.commit(ctx, "docstore.update", func() error {
		attempts++
		snap, ok, err := s.tryUpdate(ctx, fn)
		if err != nil {
			if isRetryable(err) {
				s.log.Debug("document commit retry", "attempt", attempts, "error", err)
			}
			return err
		}
		result, changed = snap, ok
		return nil
	}, isRetryable)
	if err != nil {
		return Snapshot{}, err
	}

	if changed {
		s.log.Debug("document committed", "version", result.Version, "commit_id", result.CommitID)
		s.markSeen(result.Version)
		s.hub.publish()
	}
	return result, nil
}

// tryUpdate runs one read-modify-write transaction.
func (s *SQLiteStore) tryUpdate(ctx context.Context, fn UpdateFunc) (Snapshot, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	current, err := s.readFrom(ctx, tx)
	if err != nil {
		return Snapshot{}, false, err
	}

	next, err := fn(current.Entries.Clone())
	if err != nil {
		return Snapshot{}, false, &updateFuncError{err: err}
	}
	if maps.Equal(current.Entries, next) {
		return current, false, nil
	}

	candidate := Snapshot{
		Version:  current.Version + 1,
		CommitID: newCommitID(),
		Entries:  next.Clone(),
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET version = ?, commit_id = ?, body = ?,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE name = ? AND version = ?
	`,
		candidate.Version,
		candidate.CommitID,
		MarshalDocument(candidate),
		s.document,
		current.Version,
	)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("write document: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return Snapshot{}, false, errConflict
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, false, fmt.Errorf("commit: %w", err)
	}
	return candidate, true, nil
}

// isRetryable reports whether a failed commit may succeed if repeated.
func isRetryable(err error) bool {
	if errors.Is(err, errConflict) {
		return true
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// markSeen raises the published version high-water mark.
func (s *SQLiteStore) markSeen(version int64) {
	for {
		cur := s.seen.Load()
		if version <= cur || s.seen.CompareAndSwap(cur, version) {
			return
		}
	}
}

// poll publishes commits made by other connections to the same database.
func (s *SQLiteStore) poll(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		var version int64
		err := s.db.QueryRow(`SELECT version FROM documents WHERE name = ?`, s.document).Scan(&version)
		if err != nil {
			s.log.Warn("poll document version", "error", err)
			continue
		}
		if version > s.seen.Load() {
			s.markSeen(version)
			s.hub.publish()
		}
	}
}

func (s *SQLiteStore) closed() bool {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.isClosed
}

// Close implements Store. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.closeMu.Lock()
	if s.isClosed {
		s.closeMu.Unlock()
		return nil
	}
	s.isClosed = true
	s.closeMu.Unlock()

	close(s.stop)
	s.wg.Wait()
	s.hub.close()
	return s.db.Close()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLiteStore) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
