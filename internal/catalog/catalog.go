// Package catalog persists per-document index state in SQLite.
//
// The catalog is bookkeeping, not ground truth: the vector store holds the
// index itself. Rows record what was last done for each path so the engine
// can skip unchanged content, audit failures, and prune documents that
// disappeared while it was not running.
package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Status of a document in the index. A path with no row is unindexed.
type Status string

const (
	StatusIndexed Status = "indexed"
	StatusFailed  Status = "failed"
)

// Entry is the persisted index state of one document.
type Entry struct {
	Path        string
	PointID     string
	ContentHash string
	Status      Status
	LastError   string
	IndexedAt   time.Time
	UpdatedAt   time.Time
}

// Catalog stores index state in a SQLite database.
type Catalog struct {
	db   *sql.DB
	path string
}

// Open opens or creates the catalog database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Catalog{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		point_id TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		last_error TEXT NOT NULL DEFAULT '',
		indexed_at TIMESTAMP,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	`
	_, err := db.Exec(schema)
	return err
}

// Get returns the entry for path, or nil when the path has never been seen.
func (c *Catalog) Get(ctx context.Context, path string) (*Entry, error) {
	var e Entry
	var indexedAt sql.NullTime
	err := c.db.QueryRowContext(ctx,
		`SELECT path, point_id, content_hash, status, last_error, indexed_at, updated_at
		 FROM documents WHERE path = ?`, path,
	).Scan(&e.Path, &e.PointID, &e.ContentHash, &e.Status, &e.LastError, &indexedAt, &e.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if indexedAt.Valid {
		e.IndexedAt = indexedAt.Time
	}
	return &e, nil
}

// MarkIndexed records a successful index of path, clearing any prior failure.
func (c *Catalog) MarkIndexed(ctx context.Context, path, pointID, contentHash string) error {
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (path, point_id, content_hash, status, last_error, indexed_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			point_id = excluded.point_id,
			content_hash = excluded.content_hash,
			status = excluded.status,
			last_error = '',
			indexed_at = excluded.indexed_at,
			updated_at = excluded.updated_at`,
		path, pointID, contentHash, StatusIndexed, now, now,
	)
	return err
}

// MarkFailed records a failed index attempt for path. The last successful
// content hash and indexed_at are preserved so a later retry still sees what
// the store actually holds.
func (c *Catalog) MarkFailed(ctx context.Context, path, pointID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (path, point_id, content_hash, status, last_error, indexed_at, updated_at)
		 VALUES (?, ?, '', ?, ?, NULL, ?)
		 ON CONFLICT(path) DO UPDATE SET
			point_id = excluded.point_id,
			status = excluded.status,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		path, pointID, StatusFailed, msg, now,
	)
	return err
}

// Remove deletes the entry for path. Removing an absent path is not an error.
func (c *Catalog) Remove(ctx context.Context, path string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	return err
}

// Paths returns every known path in sorted order.
func (c *Catalog) Paths(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT path FROM documents ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// ListFailed returns entries whose last index attempt failed, sorted by path.
func (c *Catalog) ListFailed(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT path, point_id, content_hash, status, last_error, indexed_at, updated_at
		 FROM documents WHERE status = ? ORDER BY path`, StatusFailed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var indexedAt sql.NullTime
		if err := rows.Scan(&e.Path, &e.PointID, &e.ContentHash, &e.Status, &e.LastError, &indexedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if indexedAt.Valid {
			e.IndexedAt = indexedAt.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByStatus returns the number of entries per status.
func (c *Catalog) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var s Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

// SizeBytes returns the on-disk size of the catalog including WAL sidecars.
// Missing sidecar files contribute zero.
func (c *Catalog) SizeBytes() (int64, error) {
	var total int64
	for _, p := range []string{c.path, c.path + "-wal", c.path + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// ContentHash returns the hex SHA-256 of content, the hash stored in entries.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
