package draftstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxConn is the subset of *pgxpool.Pool used by PostgresStore.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps snapshots in the generation_drafts table as jsonb.
type PostgresStore struct {
	pool PgxConn
}

// NewPostgresStore creates a PostgresStore over a pgx pool.
func NewPostgresStore(pool PgxConn) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*domain.DraftSnapshot, error) {
	const q = `
SELECT snapshot
FROM generation_drafts
WHERE draft_key = $1;
`
	var data []byte
	err := s.pool.QueryRow(ctx, q, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return decode(data)
}

func (s *PostgresStore) Set(ctx context.Context, key string, snap *domain.DraftSnapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	saved := snap.LastSaved
	if saved.IsZero() {
		saved = time.Now()
	}

	const q = `
INSERT INTO generation_drafts (draft_key, snapshot, last_saved)
VALUES ($1, $2, $3)
ON CONFLICT (draft_key) DO UPDATE SET
	snapshot = EXCLUDED.snapshot,
	last_saved = EXCLUDED.last_saved;
`
	if _, err := s.pool.Exec(ctx, q, key, data, saved); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	const q = `DELETE FROM generation_drafts WHERE draft_key = $1;`
	if _, err := s.pool.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("failed to remove draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `DELETE FROM generation_drafts WHERE last_saved < $1;`
	tag, err := s.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale drafts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
