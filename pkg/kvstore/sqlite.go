package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/hashicorp/go-hclog"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/calvinalkan/txcache/pkg/txcache"
)

// schemaVersion is stored in SQLite's user_version pragma. 0 means a fresh
// database, which is initialized on open.
const schemaVersion = 1

// sqliteBusyTimeout is how long SQLite waits on a locked database before
// returning SQLITE_BUSY.
const sqliteBusyTimeout = 10000 // milliseconds

// SQLite is a versioned store in a single SQLite file.
//
// Commits from several processes are serialized by an exclusive flock on
// path+".lock" around the SQL transaction.
type SQLite struct {
	path string
	db   *sql.DB
	log  hclog.Logger

	mu     sync.RWMutex
	closed bool
}

// OpenSQLite opens or creates the store at path.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLite, error) {
	if ctx == nil {
		return nil, errors.New("open sqlite store: context is nil")
	}

	if path == "" {
		return nil, errors.New("open sqlite store: path is empty")
	}

	o := buildOptions("sqlite", opts)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("open sqlite store: ping: %w", err)
	}

	err = initSchema(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	o.logger.Debug("opened", "path", path)

	return &SQLite{path: path, db: db, log: o.logger}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		PRAGMA busy_timeout = %d;
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = FULL;
	`, sqliteBusyTimeout))
	if err != nil {
		return fmt.Errorf("apply pragmas: %w", err)
	}

	var version int

	err = db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	switch version {
	case schemaVersion:
		return nil
	case 0:
	default:
		return fmt.Errorf("%w: %d (want %d)", ErrSchemaVersion, version, schemaVersion)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key BLOB NOT NULL,
			version INTEGER NOT NULL,
			value BLOB,
			present INTEGER NOT NULL,
			PRIMARY KEY (key, version)
		) WITHOUT ROWID`,
		`CREATE TABLE IF NOT EXISTS commits (
			version INTEGER PRIMARY KEY,
			writes INTEGER NOT NULL
		)`,
		fmt.Sprintf("PRAGMA user_version = %d", schemaVersion),
	}

	for i, stmt := range statements {
		_, err = tx.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	return nil
}

// Close releases the database handle. Calling Close twice is a no-op.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("close sqlite store: %w", err)
	}

	return nil
}

// Latest returns the height of the last commit, 0 for an empty store.
func (s *SQLite) Latest(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	return latestVersion(ctx, s.db)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func latestVersion(ctx context.Context, q queryRower) (uint64, error) {
	var latest int64

	err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM commits").Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("read latest version: %w", err)
	}

	return uint64(latest), nil
}

// GetContext returns key as of version. See the package doc for witness
// handling.
func (s *SQLite) GetContext(ctx context.Context, key txcache.Key, version txcache.Version, w txcache.Witness) (txcache.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return txcache.Value{}, ErrClosed
	}

	height := int64(math.MaxInt64)
	if h, ok := version.Get(); ok && h < math.MaxInt64 {
		height = int64(h)
	}

	var (
		raw     []byte
		present bool
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT value, present FROM kv
		WHERE key = ? AND version <= ?
		ORDER BY version DESC LIMIT 1`,
		key.Bytes(), height,
	).Scan(&raw, &present)

	v := txcache.Absent

	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return txcache.Value{}, fmt.Errorf("get %s: %w", key, err)
	case present:
		v = txcache.SomeValue(raw)
	}

	err = recordHint(w, key, v)
	if err != nil {
		return txcache.Value{}, err
	}

	return v, nil
}

// Reader binds ctx so the store can serve as a [txcache.Reader].
func (s *SQLite) Reader(ctx context.Context) txcache.Reader {
	return txcache.ReaderFunc(func(key txcache.Key, version txcache.Version, w txcache.Witness) (txcache.Value, error) {
		return s.GetContext(ctx, key, version, w)
	})
}

// Commit applies the writes of a frozen scope as the next version in one
// transaction and returns it. Reads are ignored. Absent values delete.
func (s *SQLite) Commit(ctx context.Context, orw txcache.OrderedReadsAndWrites) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	lock, err := lockExclusive(s.path + ".lock")
	if err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	defer func() {
		closeErr := lock.Close()
		if closeErr != nil {
			s.log.Warn("releasing commit lock", "error", closeErr)
		}
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("commit: begin: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	latest, err := latestVersion(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	next := latest + 1

	_, err = tx.ExecContext(ctx, "INSERT INTO commits (version, writes) VALUES (?, ?)", int64(next), len(orw.Writes))
	if err != nil {
		return 0, fmt.Errorf("commit: record version: %w", err)
	}

	if len(orw.Writes) > 0 {
		stmt, prepErr := tx.PrepareContext(ctx, "INSERT INTO kv (key, version, value, present) VALUES (?, ?, ?, ?)")
		if prepErr != nil {
			return 0, fmt.Errorf("commit: prepare: %w", prepErr)
		}

		defer func() { _ = stmt.Close() }()

		for _, e := range orw.Writes {
			_, err = stmt.ExecContext(ctx, e.Key.StorageKey().Bytes(), int64(next), e.Value.Bytes(), e.Value.Exists())
			if err != nil {
				return 0, fmt.Errorf("commit: write %s: %w", e.Key, err)
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	s.log.Debug("committed", "version", next, "writes", len(orw.Writes))

	return next, nil
}
