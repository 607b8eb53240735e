package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by a single SQLite file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens (creating if needed) the database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, now: time.Now}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  source_text TEXT NOT NULL,
  complete INTEGER NOT NULL DEFAULT 0,
  version INTEGER NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_owner ON documents(owner_id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *SQLite) Create(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	prepare(doc)
	now := s.now().UTC()

	const stmt = `
INSERT INTO documents (id, owner_id, title, content, source_text, complete, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?);
`
	_, err := s.db.ExecContext(ctx, stmt,
		doc.ID.String(),
		doc.OwnerID,
		doc.Title,
		doc.Content,
		doc.SourceText,
		doc.IsComplete,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.Version = 1
	doc.CreatedAt = now
	doc.UpdatedAt = now
	return nil
}

func (s *SQLite) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	const query = `
SELECT owner_id, title, content, source_text, complete, version, created_at, updated_at
FROM documents WHERE id = ?;
`
	doc := &Document{ID: id}
	var created, updated string
	err := s.db.QueryRowContext(ctx, query, id.String()).Scan(
		&doc.OwnerID,
		&doc.Title,
		&doc.Content,
		&doc.SourceText,
		&doc.IsComplete,
		&doc.Version,
		&created,
		&updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return doc, nil
}

func (s *SQLite) Save(ctx context.Context, doc *Document, expectedVersion int64) error {
	prepare(doc)
	now := s.now().UTC()

	const stmt = `
UPDATE documents
SET title = ?, content = ?, source_text = ?, complete = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?;
`
	res, err := s.db.ExecContext(ctx, stmt,
		doc.Title,
		doc.Content,
		doc.SourceText,
		doc.IsComplete,
		now.Format(time.RFC3339Nano),
		doc.ID.String(),
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if n == 0 {
		current, err := s.Get(ctx, doc.ID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: expected %d, stored %d", ErrVersionConflict, expectedVersion, current.Version)
	}
	doc.Version = expectedVersion + 1
	doc.UpdatedAt = now
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLite)(nil)
