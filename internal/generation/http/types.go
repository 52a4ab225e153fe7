package http

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/generation/draftstore"
	"github.com/casegen/casegen-backend/internal/generation/service"
)

// Workflows is the part of service.Registry the handlers call.
type Workflows interface {
	Start(ctx context.Context, req service.StartRequest) (*service.Orchestrator, error)
	Get(key string) (*service.Orchestrator, error)
	Abandon(ctx context.Context, key string) error
}

// Titles generates test case titles.
type Titles interface {
	GenerateTitles(ctx context.Context, documentation, projectName string) ([]string, error)
}

// Details generates the body of one test case.
type Details interface {
	GenerateDetails(ctx context.Context, in service.DetailInput) (domain.Details, error)
}

// Handler bundles the dependencies for generation HTTP endpoints.
type Handler struct {
	workflows Workflows
	titles    Titles
	details   Details
	// watcher wakes event streams early when the draft store pushes changes.
	watcher draftstore.Watcher
	logger  *zap.Logger

	pollInterval      time.Duration
	keepAliveInterval time.Duration
}

// New creates a new Handler. watcher may be nil.
func New(workflows Workflows, titles Titles, details Details, watcher draftstore.Watcher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		workflows:         workflows,
		titles:            titles,
		details:           details,
		watcher:           watcher,
		logger:            logger,
		pollInterval:      time.Second,
		keepAliveInterval: 15 * time.Second,
	}
}
