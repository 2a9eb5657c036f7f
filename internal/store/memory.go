// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/axpilot/api/schemas"
)

// MemoryStore keeps notes in process memory for the lifetime of the store.
type MemoryStore struct {
	mu    sync.RWMutex
	notes []schemas.Note
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Append(ctx context.Context, title, content string) (schemas.Note, error) {
	if err := ctx.Err(); err != nil {
		return schemas.Note{}, err
	}
	n := newNote(title, content, m.now())
	m.mu.Lock()
	m.notes = append(m.notes, n)
	m.mu.Unlock()
	return n, nil
}

func (m *MemoryStore) List(ctx context.Context) ([]schemas.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schemas.Note, len(m.notes))
	copy(out, m.notes)
	return out, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notes {
		if n.ID == id {
			m.notes = append(m.notes[:i], m.notes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNoteNotFound, id)
}

func (m *MemoryStore) Close() error { return nil }
