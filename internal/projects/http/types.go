package http

import (
	"context"

	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/internal/projects/domain"
	"github.com/casegen/casegen-backend/internal/projects/service"
)

// Service is the part of service.ProjectService the handlers call.
type Service interface {
	CreateProject(ctx context.Context, name string) (*domain.Project, error)
	CreateProjectWithTestCases(ctx context.Context, name string, items []domain.NewTestCase) (*domain.ProjectWithTestCases, error)
	GetProjectWithTestCases(ctx context.Context, id string) (*domain.ProjectWithTestCases, error)
	ListProjects(ctx context.Context, params domain.ListParams) (*domain.ProjectPage, error)
	RenameProject(ctx context.Context, id, name string) (*domain.Project, error)
	DeleteProject(ctx context.Context, id string) error
	BulkUpdateTestCases(ctx context.Context, projectID string, updates []domain.TestCaseUpdate) (*domain.BulkUpdateResult, error)
	CreateTestCase(ctx context.Context, projectID string, in domain.NewTestCase) (*domain.TestCase, error)
	UpdateTestCase(ctx context.Context, projectID string, upd domain.TestCaseUpdate) (*domain.TestCase, error)
	DeleteTestCase(ctx context.Context, projectID, id string) error
	ExportProject(ctx context.Context, id string) (*service.Export, error)
}

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

func New(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}
