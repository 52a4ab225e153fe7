package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/redis/go-redis/v9"
)

const (
	draftKeyPrefix  = "casegen:draft:"  // snapshot JSON: casegen:draft:{key}
	draftIndexKey   = "casegen:drafts"  // sorted set of keys scored by last save (unix seconds)
	draftEventsKey  = "casegen:draft-events:"
	defaultDraftTTL = 7 * 24 * time.Hour
)

// RedisStore keeps snapshots in Redis with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl uses seven days.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*domain.DraftSnapshot, error) {
	data, err := s.client.Get(ctx, s.draftKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return decode(data)
}

func (s *RedisStore) Set(ctx context.Context, key string, snap *domain.DraftSnapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}

	saved := snap.LastSaved
	if saved.IsZero() {
		saved = time.Now()
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.draftKey(key), data, s.ttl)
	pipe.ZAdd(ctx, draftIndexKey, redis.Z{Score: float64(saved.Unix()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}

	// Subscribers only need to know something changed; they reload the snapshot.
	event, err := json.Marshal(map[string]any{"key": key, "lastSaved": saved})
	if err == nil {
		s.client.Publish(ctx, s.eventChannel(key), event)
	}
	return nil
}

// Watch subscribes to save events for key. The returned channel receives a
// value after each Set and is closed when ctx ends or stop is called.
func (s *RedisStore) Watch(ctx context.Context, key string) (<-chan struct{}, func()) {
	sub := s.client.Subscribe(ctx, s.eventChannel(key))
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, func() { sub.Close() }
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.draftKey(key))
	pipe.ZRem(ctx, draftIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove draft: %w", err)
	}
	return nil
}

// DeleteOlderThan drops index entries (and any surviving snapshots) last saved
// before cutoff. Snapshots themselves also expire through their TTL.
func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	keys, err := s.client.ZRangeByScore(ctx, draftIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list stale drafts: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, k := range keys {
		pipe.Del(ctx, s.draftKey(k))
		pipe.ZRem(ctx, draftIndexKey, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to delete stale drafts: %w", err)
	}
	return len(keys), nil
}

func (s *RedisStore) draftKey(key string) string {
	return draftKeyPrefix + key
}

func (s *RedisStore) eventChannel(key string) string {
	return draftEventsKey + key
}
