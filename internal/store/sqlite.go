// internal/store/sqlite.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notes (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);`

// SQLiteStore keeps notes in a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	log *zap.Logger
	now func() time.Time
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Named("store").Debug("SQLite notes store ready.", zap.String("path", path))
	return &SQLiteStore{db: db, log: logger.Named("store.sqlite"), now: time.Now}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, title, content string) (schemas.Note, error) {
	n := newNote(title, content, s.now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, created_at) VALUES (?, ?, ?, ?)`,
		n.ID, n.Title, n.Content, n.Timestamp.UnixMilli())
	if err != nil {
		return schemas.Note{}, fmt.Errorf("failed to insert note: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]schemas.Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, content, created_at FROM notes ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []schemas.Note
	for rows.Next() {
		var (
			n  schemas.Note
			ms int64
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		n.Timestamp = time.UnixMilli(ms).UTC()
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return notes, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
