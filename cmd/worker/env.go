package main

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/config"
	"github.com/casegen/casegen-backend/internal/logging"
	"github.com/casegen/casegen-backend/internal/projects/repository"
	projservice "github.com/casegen/casegen-backend/internal/projects/service"
	"github.com/casegen/casegen-backend/internal/storage/postgres"
)

// env is what every worker command starts from.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnv(validate bool) (*env, error) {
	load := config.Read
	if validate {
		load = config.Load
	}
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	// console output keeps the CLI readable
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Encoding: "console"})
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) openDB() (*sql.DB, error) {
	db, err := postgres.NewConnection(&e.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return db, nil
}

func (e *env) projectService(db *sql.DB) *projservice.ProjectService {
	return projservice.NewProjectService(repository.NewProjectRepository(db), e.logger)
}
