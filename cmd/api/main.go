package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/config"
	"github.com/casegen/casegen-backend/internal/bootstrap"
	"github.com/casegen/casegen-backend/internal/generation/completion"
	"github.com/casegen/casegen-backend/internal/generation/draftstore"
	genservice "github.com/casegen/casegen-backend/internal/generation/service"
	"github.com/casegen/casegen-backend/internal/logging"
	"github.com/casegen/casegen-backend/internal/projects/repository"
	projservice "github.com/casegen/casegen-backend/internal/projects/service"
	"github.com/casegen/casegen-backend/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	sqlDB, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("db_connect_failed", zap.Error(err))
	}
	defer sqlDB.Close()

	pool, err := bootstrap.OpenDB(ctx, bootstrap.DBOptions{DSN: postgres.DSN(&cfg.Database), MaxConns: int32(cfg.Database.MaxConns)})
	if err != nil {
		logger.Fatal("db_pool_failed", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := bootstrap.OpenRedis(ctx, bootstrap.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("redis_connect_failed", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	drafts, err := bootstrap.OpenDraftStore(bootstrap.DraftStoreOptions{
		Backend: cfg.Drafts.Store,
		Dir:     cfg.Drafts.Dir,
		TTL:     cfg.Drafts.TTL,
		DB:      pool,
		Redis:   rdb,
	})
	if err != nil {
		logger.Fatal("draft_store_failed", zap.Error(err))
	}
	logger.Info("draft_store_ready", zap.String("backend", cfg.Drafts.Store))

	var sweeper *draftstore.Sweeper
	if exp, ok := drafts.(draftstore.Expirer); ok {
		sweeper = draftstore.NewSweeper(exp, cfg.Drafts.TTL, cfg.Drafts.SweepSchedule, logger)
		if err := sweeper.Start(); err != nil {
			logger.Fatal("draft_sweeper_failed", zap.Error(err))
		}
	}

	completer, err := completion.New(
		completion.NewOpenAI(cfg.AI.APIKey, cfg.AI.BaseURL),
		completion.Config{
			Model:             cfg.AI.Model,
			Temperature:       cfg.AI.Temperature,
			MaxTokens:         cfg.AI.MaxTokens,
			Timeout:           cfg.AI.Timeout,
			RequestsPerMinute: cfg.AI.RequestsPerMinute,
		},
		logger,
	)
	if err != nil {
		logger.Fatal("completion_client_failed", zap.Error(err))
	}
	titles := genservice.NewTitleGenerator(completer, logger)
	details := genservice.NewDetailGenerator(completer, logger)

	projects := projservice.NewProjectService(repository.NewProjectRepository(sqlDB), logger)

	registry := genservice.NewRegistry(genservice.Deps{
		Store:     drafts,
		Titles:    titles,
		Details:   details,
		Gateway:   projects,
		Logger:    logger,
		SaveDelay: cfg.Drafts.SaveDelay,
	})

	watcher, _ := drafts.(draftstore.Watcher)

	r := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    cfg.App.ServiceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
		DB:             pool,
		Redis:          rdb,
		Projects:       projects,
		Workflows:      registry,
		Titles:         titles,
		Details:        details,
		Watcher:        watcher,
	})

	// No WriteTimeout: workflow event streams stay open.
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server_listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server_failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_forced_shutdown", zap.Error(err))
	}
	// running workflows checkpoint their drafts so they resume on the next start
	registry.Shutdown(shutdownCtx)
	if sweeper != nil {
		sweeper.Stop()
	}
	logger.Info("server_stopped")
}
