package raster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"go.ngs.io/rastercast/internal/domain"
)

// Entry is one row of the cache_entries table. Entries are never mutated,
// only superseded by upsert with identical deterministic content.
type Entry struct {
	Filename   string    `db:"filename" json:"filename"`
	Variable   string    `db:"variable" json:"variable"`
	Timestamp  time.Time `db:"ts" json:"timestamp"`
	RegionHash string    `db:"region_hash" json:"region_hash"`
	PreviewURL string    `db:"preview_url" json:"preview_url"`
	ExportURL  string    `db:"export_url" json:"export_url"`
}

// MetadataStore is the lookup/upsert contract of the cache entry table.
type MetadataStore interface {
	Lookup(ctx context.Context, key Key) (Entry, bool, error)
	Upsert(ctx context.Context, entry Entry) error
}

// PostgresStore implements MetadataStore on Postgres via sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects and ensures the cache_entries schema exists.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", domain.ErrPersistenceFailure, err)
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS cache_entries (
			filename    TEXT PRIMARY KEY,
			variable    TEXT NOT NULL,
			ts          TIMESTAMPTZ NOT NULL,
			region_hash TEXT NOT NULL,
			preview_url TEXT NOT NULL DEFAULT '',
			export_url  TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS cache_entries_key_idx
			ON cache_entries (region_hash, variable, ts)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// Lookup finds the entry for a key. A missing row is (zero, false, nil):
// callers treat it as a cache miss, not a failure.
func (s *PostgresStore) Lookup(ctx context.Context, key Key) (Entry, bool, error) {
	const query = `
		SELECT filename, variable, ts, region_hash, preview_url, export_url
		FROM cache_entries
		WHERE region_hash = $1 AND variable = $2 AND ts = $3`

	var entry Entry
	err := s.db.GetContext(ctx, &entry, query, key.RegionHash, key.Variable.String(), key.Time)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: lookup cache entry: %v", domain.ErrPersistenceFailure, err)
	}
	return entry, true, nil
}

// Upsert registers an entry. Concurrent upserts with the same filename are
// last-writer-wins, which is safe because artifact content is deterministic
// given the key.
func (s *PostgresStore) Upsert(ctx context.Context, entry Entry) error {
	const query = `
		INSERT INTO cache_entries (filename, variable, ts, region_hash, preview_url, export_url)
		VALUES (:filename, :variable, :ts, :region_hash, :preview_url, :export_url)
		ON CONFLICT (filename) DO UPDATE SET
			preview_url = EXCLUDED.preview_url,
			export_url  = EXCLUDED.export_url`
	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("%w: upsert cache entry: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error { return s.db.Close() }
