// Package docstore keeps the SQLite chunk catalog. The vector index
// cannot enumerate its contents, so the catalog is the authoritative
// corpus snapshot used for lexical index rebuilds and for the
// management operations (stats, listing, deletion by source).
package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"knowledge-assistant/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	source     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	operator   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
`

// Store is the SQLite-backed chunk catalog.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the catalog database at path.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing catalog schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts chunks in one transaction.
func (s *Store) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, content, source, created_at, operator) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.Content, c.Source, c.CreatedAt.Format(models.TimeFormat), c.Operator); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// All returns every stored chunk in insertion order.
func (s *Store) All(ctx context.Context) ([]models.Chunk, error) {
	return s.query(ctx,
		`SELECT id, content, source, created_at, operator FROM chunks ORDER BY rowid`)
}

// BySource returns the chunks of one source document in insertion order.
func (s *Store) BySource(ctx context.Context, source string) ([]models.Chunk, error) {
	return s.query(ctx,
		`SELECT id, content, source, created_at, operator FROM chunks WHERE source = ? ORDER BY rowid`,
		source)
}

// Sources lists the distinct source names.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM chunks ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Delete removes one chunk by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id)
	return err
}

// DeleteBySource removes every chunk of a source document.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source)
	return err
}

// Clear removes all chunks.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return err
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var c models.Chunk
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Content, &c.Source, &createdAt, &c.Operator); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.ParseInLocation(models.TimeFormat, createdAt, time.Local)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
