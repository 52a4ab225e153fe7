package main

import (
	"context"
	"fmt"
	"time"

	"github.com/casegen/casegen-backend/internal/bootstrap"
	"github.com/casegen/casegen-backend/internal/generation/draftstore"
	"github.com/casegen/casegen-backend/internal/storage/postgres"
)

// RunSweep deletes abandoned drafts once, using the configured draft store.
func RunSweep(_ []string) error {
	e, err := loadEnv(false)
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	opts := bootstrap.DraftStoreOptions{
		Backend: e.cfg.Drafts.Store,
		Dir:     e.cfg.Drafts.Dir,
		TTL:     e.cfg.Drafts.TTL,
	}
	switch opts.Backend {
	case "postgres":
		pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: postgres.DSN(&e.cfg.Database), MaxConns: int32(e.cfg.Database.MaxConns)})
		if err != nil {
			return err
		}
		defer pool.Close()
		opts.DB = pool
	case "redis":
		rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
			Addr:     e.cfg.Redis.Addr,
			Password: e.cfg.Redis.Password,
			DB:       e.cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		if rdb != nil {
			defer rdb.Close()
		}
		opts.Redis = rdb
	}

	store, err := bootstrap.OpenDraftStore(opts)
	if err != nil {
		return err
	}
	exp, ok := store.(draftstore.Expirer)
	if !ok {
		return fmt.Errorf("draft store %q does not support sweeping", opts.Backend)
	}

	n, err := draftstore.NewSweeper(exp, e.cfg.Drafts.TTL, e.cfg.Drafts.SweepSchedule, e.logger).RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Println(styles.ok.Render(fmt.Sprintf("removed %d abandoned drafts", n)))
	return nil
}
