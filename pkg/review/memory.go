package review

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-process ledger. It forgets everything on exit.
type MemoryStore struct {
	mu        sync.RWMutex
	decisions map[string]Decision
}

// NewMemoryStore returns an empty ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{decisions: make(map[string]Decision)}
}

func (m *MemoryStore) Record(_ context.Context, d Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.decisions[d.SuggestionID]; ok {
		return ErrAlreadyDecided
	}
	m.decisions[d.SuggestionID] = d
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decisions[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MemoryStore) List(_ context.Context, limit int) ([]Decision, error) {
	m.mu.RLock()
	out := make([]Decision, 0, len(m.decisions))
	for _, d := range m.decisions {
		out = append(out, d)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Decision) int {
		if c := b.DecidedAt.Compare(a.DecidedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.SuggestionID, b.SuggestionID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close(context.Context) error { return nil }

var _ Store = (*MemoryStore)(nil)
