package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists documents in a single SQLite table.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("state: sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("state: create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open sqlite %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("state: apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: apply schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close releases the database. Further calls return ErrUnavailable.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, ref Ref) ([]byte, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, Meta{}, false, fmt.Errorf("%w: database closed", ErrUnavailable)
	}

	var (
		body, snapshotID, etag, extra, updatedAt string
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT body, snapshot_id, etag, extra, updated_at FROM documents WHERE id = ?`, key)
	if err := row.Scan(&body, &snapshotID, &etag, &extra, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Meta{}, false, nil
		}
		return nil, Meta{}, false, fmt.Errorf("state: load %q: %w", key, err)
	}

	meta := Meta{SnapshotID: snapshotID, ETag: etag}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		meta.UpdatedAt = ts
	}
	if extra != "" && extra != "{}" {
		_ = json.Unmarshal([]byte(extra), &meta.Extra)
	}
	return []byte(body), meta, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, ref Ref, doc []byte, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Meta{}, fmt.Errorf("%w: database closed", ErrUnavailable)
	}

	stored := stampMeta(meta, time.Now())
	extra := []byte("{}")
	if len(stored.Extra) > 0 {
		if extra, err = json.Marshal(stored.Extra); err != nil {
			return Meta{}, fmt.Errorf("state: encode extra for %q: %w", key, err)
		}
	}
	domain := strings.TrimSpace(ref.Domain)
	if domain == "" {
		domain = DefaultDomain
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, scope, domain, body, snapshot_id, etag, extra, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			snapshot_id = excluded.snapshot_id,
			etag = excluded.etag,
			extra = excluded.extra,
			updated_at = excluded.updated_at`,
		key, strings.TrimSpace(ref.Scope), domain, string(doc),
		stored.SnapshotID, stored.ETag, string(extra), stored.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %q: %w", key, err)
	}
	return cloneMeta(stored), nil
}

// Scopes lists the scopes that have a stored document, sorted.
func (s *SQLiteStore) Scopes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("%w: database closed", ErrUnavailable)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT scope FROM documents ORDER BY scope`)
	if err != nil {
		return nil, fmt.Errorf("state: list scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("state: scan scope: %w", err)
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}
