package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"

	_ "github.com/tursodatabase/go-libsql"
)

// Kinds of cached bodies
const (
	KindReadme   = "readme"
	KindManifest = "manifest"
)

// Store keeps readme and manifest bodies of frozen catalog datasets.
// Frozen datasets never change their manifest, so entries do not expire;
// Purge drops everything, PurgeOlderThan drops stale readmes after edits upstream.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or initializes the cache database at path
func Open(path string) (*Store, error) {
	if path == "" {
		path = internal.DefaultCacheDBPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create cache directory: %w", err)
	}

	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Opened lookup cache", "path", path)
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS bodies (
		uri TEXT NOT NULL,
		kind TEXT NOT NULL,
		body BLOB,
		fetched_at INTEGER NOT NULL,
		PRIMARY KEY (uri, kind)
	)`)
	if err != nil {
		return fmt.Errorf("failed to create bodies table: %w", err)
	}
	return nil
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// Get returns the cached body for uri
func (s *Store) Get(ctx context.Context, uri, kind string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, "SELECT body FROM bodies WHERE uri = ? AND kind = ?", uri, kind).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return body, true, nil
}

// Put stores body for uri, replacing an older entry
func (s *Store) Put(ctx context.Context, uri, kind string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO bodies (uri, kind, body, fetched_at) VALUES (?, ?, ?, ?)",
		uri, kind, body, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Delete removes all entries of uri
func (s *Store) Delete(ctx context.Context, uri string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM bodies WHERE uri = ?", uri); err != nil {
		return fmt.Errorf("failed to delete cache entries: %w", err)
	}
	return nil
}

// PurgeOlderThan removes entries fetched before cutoff and returns how many were dropped
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bodies WHERE fetched_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Purge removes every entry
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM bodies"); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
