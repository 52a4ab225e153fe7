package bootstrap

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/casegen/casegen-backend/internal/generation/draftstore"
)

type DraftStoreOptions struct {
	Backend string
	Dir     string
	TTL     time.Duration
	DB      *pgxpool.Pool
	Redis   *redis.Client
}

// OpenDraftStore picks the draft backend named by opt.Backend.
func OpenDraftStore(opt DraftStoreOptions) (draftstore.Store, error) {
	switch opt.Backend {
	case "memory":
		return draftstore.NewMemoryStore(), nil
	case "file":
		return draftstore.NewFileStore(opt.Dir)
	case "redis":
		if opt.Redis == nil {
			return nil, fmt.Errorf("draft store redis: no redis client")
		}
		return draftstore.NewRedisStore(opt.Redis, opt.TTL), nil
	case "postgres", "":
		if opt.DB == nil {
			return nil, fmt.Errorf("draft store postgres: no database pool")
		}
		return draftstore.NewPostgresStore(opt.DB), nil
	default:
		return nil, fmt.Errorf("unknown draft store %q", opt.Backend)
	}
}
