package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/internal/apperrors"
	gendomain "github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/logging"
	"github.com/casegen/casegen-backend/internal/metrics"
	"github.com/casegen/casegen-backend/internal/projects/domain"
	"github.com/casegen/casegen-backend/internal/validation"
)

// Repository is the store-of-record contract ProjectService relies on.
type Repository interface {
	Create(ctx context.Context, name string) (*domain.Project, error)
	CreateWithTestCases(ctx context.Context, name string, items []domain.NewTestCase) (*domain.ProjectWithTestCases, error)
	GetWithTestCases(ctx context.Context, id string) (*domain.ProjectWithTestCases, error)
	List(ctx context.Context, params domain.ListParams) ([]domain.Project, int, error)
	Rename(ctx context.Context, id, newName string) (*domain.Project, error)
	SoftDelete(ctx context.Context, id string) (bool, error)
	CreateTestCase(ctx context.Context, projectID string, in domain.NewTestCase) (*domain.TestCase, error)
	UpdateTestCase(ctx context.Context, projectID string, upd domain.TestCaseUpdate) (*domain.TestCase, error)
	SoftDeleteTestCase(ctx context.Context, projectID, id string) (bool, error)
	BulkUpdateTestCases(ctx context.Context, projectID string, updates []domain.TestCaseUpdate) (*domain.BulkUpdateResult, error)
}

// ProjectService is the persistence gateway between generated drafts and the
// store of record.
type ProjectService struct {
	repo   Repository
	logger *zap.Logger
}

// NewProjectService creates a new project service
func NewProjectService(repo Repository, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{repo: repo, logger: logger}
}

type createProjectInput struct {
	Name      string               `json:"name" validate:"required,max=100"`
	TestCases []domain.NewTestCase `json:"testCases" validate:"max=20,dive"`
}

// CreateProject creates an empty project.
func (s *ProjectService) CreateProject(ctx context.Context, name string) (*domain.Project, error) {
	const op = "projects.create"
	in := createProjectInput{Name: strings.TrimSpace(name)}
	if err := validation.Struct(op, in); err != nil {
		return nil, err
	}
	p, err := s.repo.Create(ctx, in.Name)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return p, nil
}

// CreateProjectWithTestCases creates the project and all its test cases atomically.
func (s *ProjectService) CreateProjectWithTestCases(ctx context.Context, name string, items []domain.NewTestCase) (*domain.ProjectWithTestCases, error) {
	const op = "projects.create_with_test_cases"
	in := createProjectInput{Name: strings.TrimSpace(name), TestCases: items}
	if err := validation.Struct(op, in); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.New(apperrors.KindValidation, op, "at least one test case is required")
	}

	p, err := s.repo.CreateWithTestCases(ctx, in.Name, items)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	logging.WithContext(ctx, s.logger).Info("project_created",
		zap.String("project_id", p.ID),
		zap.Int("test_case_count", len(p.TestCases)))
	return p, nil
}

// CreateProjectFromDrafts persists a finished generation run as a new project.
// Drafts without both steps and an expected result (failed generations that
// were never filled in by hand) are left out; the rest are renumbered 0..n-1.
func (s *ProjectService) CreateProjectFromDrafts(ctx context.Context, name string, drafts []gendomain.TestCaseDraft) (*domain.ProjectWithTestCases, error) {
	ordered := slices.Clone(drafts)
	slices.SortStableFunc(ordered, func(a, b gendomain.TestCaseDraft) int { return a.OrderIndex - b.OrderIndex })

	items := make([]domain.NewTestCase, 0, len(ordered))
	skipped := 0
	for _, d := range ordered {
		if !d.HasBody() {
			skipped++
			continue
		}
		items = append(items, domain.NewTestCase{
			Title:          strings.TrimSpace(d.Title),
			Preconditions:  d.Preconditions,
			Steps:          d.Steps,
			ExpectedResult: d.ExpectedResult,
			OrderIndex:     len(items),
		})
	}
	if skipped > 0 {
		logging.WithContext(ctx, s.logger).Warn("drafts_excluded_from_project",
			zap.Int("excluded", skipped),
			zap.Int("included", len(items)))
	}
	return s.CreateProjectWithTestCases(ctx, name, items)
}

// BulkUpdateTestCases updates many test cases in one transaction and reports a
// per-item tally. Items that fail validation are reported without being sent.
// A shortfall is logged as PARTIAL_FAILURE and is not returned as an error.
func (s *ProjectService) BulkUpdateTestCases(ctx context.Context, projectID string, updates []domain.TestCaseUpdate) (*domain.BulkUpdateResult, error) {
	const op = "projects.bulk_update"
	if err := checkProjectID(op, projectID); err != nil {
		return nil, err
	}
	if len(updates) > domain.MaxTestCasesPerProject {
		return nil, apperrors.Newf(apperrors.KindValidation, op, "at most %d test cases can be updated at once", domain.MaxTestCasesPerProject)
	}

	valid := make([]domain.TestCaseUpdate, 0, len(updates))
	rejected := make([]domain.BulkItemResult, 0)
	for _, u := range updates {
		if err := validation.Struct(op, u); err != nil {
			rejected = append(rejected, domain.BulkItemResult{ID: u.ID, Error: apperrors.Message(err)})
			continue
		}
		if u.Empty() {
			rejected = append(rejected, domain.BulkItemResult{ID: u.ID, Error: "no fields to update"})
			continue
		}
		valid = append(valid, u)
	}

	res := &domain.BulkUpdateResult{Results: []domain.BulkItemResult{}}
	if len(valid) > 0 {
		var err error
		res, err = s.repo.BulkUpdateTestCases(ctx, projectID, valid)
		if err != nil {
			metrics.RecordBulkUpdate(0, len(updates))
			return nil, persistenceError(op, err)
		}
	}
	res.FailCount += len(rejected)
	res.Results = append(res.Results, rejected...)

	metrics.RecordBulkUpdate(res.SuccessCount, res.FailCount)
	log := logging.WithContext(ctx, s.logger).With(
		zap.String("project_id", projectID),
		zap.Int("total", len(updates)),
		zap.Int("success_count", res.SuccessCount),
		zap.Int("fail_count", res.FailCount))
	if res.Partial() {
		log.Warn("bulk_update_partial_failure", zap.String("error_kind", string(apperrors.KindPartialFailure)))
	} else {
		log.Info("bulk_update_complete")
	}
	return res, nil
}

// BulkUpdateFromDrafts sends only dirty drafts to BulkUpdateTestCases: ones a
// user edited and ones whose body was generated in this run. Untouched drafts
// are never transmitted.
func (s *ProjectService) BulkUpdateFromDrafts(ctx context.Context, projectID string, drafts []gendomain.TestCaseDraft) (*domain.BulkUpdateResult, error) {
	updates := make([]domain.TestCaseUpdate, 0, len(drafts))
	for _, d := range drafts {
		if !d.IsDirty {
			continue
		}
		u := domain.TestCaseUpdate{ID: d.ID, OrderIndex: ptr(d.OrderIndex)}
		if t := strings.TrimSpace(d.Title); t != "" {
			u.Title = ptr(t)
		}
		u.Preconditions = ptr(d.Preconditions)
		if d.Steps != "" {
			u.Steps = ptr(d.Steps)
		}
		if d.ExpectedResult != "" {
			u.ExpectedResult = ptr(d.ExpectedResult)
		}
		updates = append(updates, u)
	}
	return s.BulkUpdateTestCases(ctx, projectID, updates)
}

// GetProjectWithTestCases returns a project and its ordered test cases.
func (s *ProjectService) GetProjectWithTestCases(ctx context.Context, id string) (*domain.ProjectWithTestCases, error) {
	const op = "projects.get"
	if err := checkProjectID(op, id); err != nil {
		return nil, err
	}
	p, err := s.repo.GetWithTestCases(ctx, id)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return p, nil
}

// ListProjects returns one page of projects.
func (s *ProjectService) ListProjects(ctx context.Context, params domain.ListParams) (*domain.ProjectPage, error) {
	const op = "projects.list"
	params = params.Normalize()
	items, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return &domain.ProjectPage{Projects: items, Page: params.Page, Limit: params.Limit, Total: total}, nil
}

// RenameProject updates a project's name
func (s *ProjectService) RenameProject(ctx context.Context, id, name string) (*domain.Project, error) {
	const op = "projects.rename"
	if err := checkProjectID(op, id); err != nil {
		return nil, err
	}
	in := createProjectInput{Name: strings.TrimSpace(name)}
	if err := validation.Struct(op, in); err != nil {
		return nil, err
	}
	p, err := s.repo.Rename(ctx, id, in.Name)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return p, nil
}

// DeleteProject soft-deletes a project
func (s *ProjectService) DeleteProject(ctx context.Context, id string) error {
	const op = "projects.delete"
	if err := checkProjectID(op, id); err != nil {
		return err
	}
	ok, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return persistenceError(op, err)
	}
	if !ok {
		return apperrors.Wrap(apperrors.KindNotFound, op, domain.ErrNotFound)
	}
	return nil
}

// CreateTestCase adds one test case to a project.
func (s *ProjectService) CreateTestCase(ctx context.Context, projectID string, in domain.NewTestCase) (*domain.TestCase, error) {
	const op = "projects.create_test_case"
	if err := checkProjectID(op, projectID); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(op, in); err != nil {
		return nil, err
	}
	tc, err := s.repo.CreateTestCase(ctx, projectID, in)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return tc, nil
}

// UpdateTestCase changes the given fields of one test case.
func (s *ProjectService) UpdateTestCase(ctx context.Context, projectID string, upd domain.TestCaseUpdate) (*domain.TestCase, error) {
	const op = "projects.update_test_case"
	if err := checkProjectID(op, projectID); err != nil {
		return nil, err
	}
	if err := validation.Struct(op, upd); err != nil {
		return nil, err
	}
	if upd.Empty() {
		return nil, apperrors.New(apperrors.KindValidation, op, "no fields to update")
	}
	tc, err := s.repo.UpdateTestCase(ctx, projectID, upd)
	if err != nil {
		return nil, persistenceError(op, err)
	}
	return tc, nil
}

// DeleteTestCase soft-deletes one test case.
func (s *ProjectService) DeleteTestCase(ctx context.Context, projectID, id string) error {
	const op = "projects.delete_test_case"
	if err := checkProjectID(op, projectID); err != nil {
		return err
	}
	ok, err := s.repo.SoftDeleteTestCase(ctx, projectID, id)
	if err != nil {
		return persistenceError(op, err)
	}
	if !ok {
		return apperrors.Wrap(apperrors.KindNotFound, op, domain.ErrTestCaseNotFound)
	}
	return nil
}

// checkProjectID treats malformed ids as missing projects; the column is a uuid.
func checkProjectID(op, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.Wrap(apperrors.KindNotFound, op, domain.ErrNotFound)
	}
	return nil
}

func persistenceError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrTestCaseNotFound):
		return apperrors.Wrap(apperrors.KindNotFound, op, err)
	case errors.Is(err, domain.ErrTooManyTestCases):
		return apperrors.Wrap(apperrors.KindValidation, op, err)
	default:
		return apperrors.Wrap(apperrors.KindPersistence, op, err)
	}
}

func ptr[T any](v T) *T { return &v }
