package draftstore

import (
	"context"
	"sync"
	"time"

	"github.com/casegen/casegen-backend/internal/generation/domain"
)

// MemoryStore keeps encoded snapshots in a map. Values are stored as JSON so
// readers never share slices with the writer.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
}

type memoryItem struct {
	data  []byte
	saved time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*domain.DraftSnapshot, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrDraftNotFound
	}
	return decode(item.data)
}

func (s *MemoryStore) Set(_ context.Context, key string, snap *domain.DraftSnapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[key] = memoryItem{data: data, saved: snap.LastSaved}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, item := range s.items {
		if item.saved.Before(cutoff) {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
