// internal/store/postgres.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute pgxmock.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS agent_notes (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`

// PostgresStore keeps notes in a shared PostgreSQL table.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// OpenPostgres connects to dsn, verifies the connection and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := NewPostgresStore(pool, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing pool. The schema is not touched.
func NewPostgresStore(pool DBPool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: logger.Named("store.postgres"), now: time.Now}
}

// EnsureSchema creates the notes table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, title, content string) (schemas.Note, error) {
	n := newNote(title, content, s.now())
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_notes (id, title, content, created_at) VALUES ($1, $2, $3, $4)`,
		n.ID, n.Title, n.Content, n.Timestamp)
	if err != nil {
		return schemas.Note{}, fmt.Errorf("failed to insert note: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]schemas.Note, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, title, content, created_at FROM agent_notes ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []schemas.Note
	for rows.Next() {
		var n schemas.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		n.Timestamp = n.Timestamp.UTC()
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return notes, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agent_notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
