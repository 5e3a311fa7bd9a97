package probecache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"transmirror/internal/classify"
	"transmirror/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes. Stale databases are recreated, not migrated; the cache only saves
// probe calls and can always be rebuilt from the trees.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store persists resolution classifications keyed by identity and source
// mtime, so repeat scans do not re-probe files that have not changed.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the classification cache database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "classify.db")
	return openPath(dbPath)
}

func openPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the cache database.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Get returns the cached classification for an identity if the cached source
// mtime matches. A changed mtime invalidates the entry.
func (s *Store) Get(ctx context.Context, identity string, sourceMtime int64) (classify.Classification, bool, error) {
	if s == nil {
		return classify.Unclassified, false, nil
	}
	var (
		cachedMtime int64
		value       string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT source_mtime, classification FROM classifications WHERE identity = ?`, identity,
	).Scan(&cachedMtime, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return classify.Unclassified, false, nil
	}
	if err != nil {
		return classify.Unclassified, false, fmt.Errorf("get classification: %w", err)
	}
	if cachedMtime != sourceMtime {
		return classify.Unclassified, false, nil
	}
	return classify.Classification(value), true, nil
}

// Put records a classification for an identity at a given source mtime,
// replacing any previous entry.
func (s *Store) Put(ctx context.Context, identity string, sourceMtime int64, value classify.Classification) error {
	if s == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO classifications (identity, source_mtime, classification, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(identity) DO UPDATE SET
             source_mtime = excluded.source_mtime,
             classification = excluded.classification,
             updated_at = excluded.updated_at`,
		identity, sourceMtime, string(value), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put classification: %w", err)
	}
	return nil
}

// Delete removes the cached entry for an identity. Missing entries are not an error.
func (s *Store) Delete(ctx context.Context, identity string) error {
	if s == nil {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM classifications WHERE identity = ?`, identity); err != nil {
		return fmt.Errorf("delete classification: %w", err)
	}
	return nil
}

// Count reports the number of cached classifications.
func (s *Store) Count(ctx context.Context) (int, error) {
	if s == nil {
		return 0, nil
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM classifications`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count classifications: %w", err)
	}
	return count, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
