// Package ledger provides a SQLite-backed provenance record of ingested
// documents: which sources were ingested, how many chunks each produced,
// and whether the last ingestion attempt succeeded. The vector store
// remains the system of record for chunk content; the ledger exists so
// operators can answer "what is in the knowledge base" without scanning
// the index.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Status values recorded for an ingestion attempt.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one document's most recent ingestion record.
type Entry struct {
	Source     string    `json:"source"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Stats summarizes the ledger for the stats endpoint.
type Stats struct {
	Documents   int `json:"documents"`
	TotalChunks int `json:"total_chunks"`
	Failed      int `json:"failed"`
}

// Store persists ingestion provenance. One row per source; re-ingestion
// replaces the row.
type Store struct {
	db *sql.DB
}

// DefaultDBPath resolves to ~/.docqa/ledger.db, creating the directory if
// needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("ledger: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("ledger: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "ledger.db"), nil
}

// Open opens (or creates) a ledger at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
    source       TEXT    PRIMARY KEY,
    chunk_count  INTEGER NOT NULL,
    status       TEXT    NOT NULL CHECK(status IN ('ok','failed')),
    error        TEXT    NOT NULL DEFAULT '',
    updated_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("ledger: migrate: %w", err)
	}
	return nil
}

// Record upserts the outcome of a document's ingestion attempt. A nil
// ingestErr records success.
func (s *Store) Record(ctx context.Context, source string, chunkCount int, ingestErr error) error {
	status := StatusOK
	errMsg := ""
	if ingestErr != nil {
		status = StatusFailed
		errMsg = ingestErr.Error()
	}

	const q = `
INSERT INTO documents (source, chunk_count, status, error, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(source) DO UPDATE SET
    chunk_count = excluded.chunk_count,
    status      = excluded.status,
    error       = excluded.error,
    updated_at  = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, q, source, chunkCount, status, errMsg, time.Now().Unix()); err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

// Forget removes a source's record, e.g. after its chunks are deleted
// from the vector store.
func (s *Store) Forget(ctx context.Context, source string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE source = ?`, source); err != nil {
		return fmt.Errorf("ledger: forget: %w", err)
	}
	return nil
}

// Entries returns all records ordered by most recently updated first.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	const q = `
SELECT source, chunk_count, status, error, updated_at
FROM   documents
ORDER  BY updated_at DESC, source ASC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ledger: entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.Source, &e.ChunkCount, &e.Status, &e.Error, &ts); err != nil {
			return nil, fmt.Errorf("ledger: entries scan: %w", err)
		}
		e.UpdatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: entries rows: %w", err)
	}
	return entries, nil
}

// Summary aggregates the ledger into counts for the stats endpoint.
func (s *Store) Summary(ctx context.Context) (*Stats, error) {
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(CASE WHEN status = 'ok' THEN chunk_count ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
FROM   documents`

	var st Stats
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.Documents, &st.TotalChunks, &st.Failed); err != nil {
		return nil, fmt.Errorf("ledger: summary: %w", err)
	}
	return &st, nil
}

// Ping verifies the database file is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ledger: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("ledger: close: %w", err)
	}
	return nil
}
