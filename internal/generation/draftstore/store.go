// Package draftstore persists in-progress generation state keyed by project.
//
// Backends are interchangeable: an in-memory map for tests, JSON files for the
// CLI, Redis and PostgreSQL for the API server. None of them interprets the
// snapshot beyond JSON encoding.
package draftstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/casegen/casegen-backend/internal/generation/domain"
)

// Store is a keyed snapshot map. Get returns domain.ErrDraftNotFound when the
// key has no snapshot.
type Store interface {
	Get(ctx context.Context, key string) (*domain.DraftSnapshot, error)
	Set(ctx context.Context, key string, snap *domain.DraftSnapshot) error
	Remove(ctx context.Context, key string) error
}

// Expirer is implemented by backends that need explicit cleanup of abandoned
// drafts (Redis expires keys on its own).
type Expirer interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Watcher is implemented by backends that can push change notifications.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan struct{}, func())
}

func encode(snap *domain.DraftSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.DraftSnapshot, error) {
	var snap domain.DraftSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
