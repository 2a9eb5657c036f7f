// Package store persists the agent's notes. Every backend keeps notes in
// insertion order and supports only append, list and delete.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/config"
)

// ErrNoteNotFound is returned by Delete for an unknown id.
var ErrNoteNotFound = errors.New("note not found")

// New opens the notes store selected by cfg.Backend.
func New(ctx context.Context, cfg config.MemoryConfig, logger *zap.Logger) (schemas.NoteStore, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemoryStore(), nil
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath, logger)
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresURL, logger)
	default:
		return nil, fmt.Errorf("unsupported memory backend %q", cfg.Backend)
	}
}

// newNote stamps a fresh note. Timestamps are stored in UTC at millisecond
// precision so every backend round-trips them identically.
func newNote(title, content string, now time.Time) schemas.Note {
	return schemas.Note{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Timestamp: now.UTC().Truncate(time.Millisecond),
	}
}
