package transcript

import (
	"context"
	"sync"
)

// MemoryRepo keeps entries in process. Used with store.driver=memory and in tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[string][]Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{entries: make(map[string][]Entry)}
}

func (r *MemoryRepo) SaveEntry(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	r.entries[e.SessionID] = append(r.entries[e.SessionID], *e)
	return nil
}

func (r *MemoryRepo) ListEntries(_ context.Context, sessionID string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.entries[sessionID]...), nil
}
