package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/casegen/casegen-backend/internal/projects/domain"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ProjectRepository provides persistence operations for projects and their test cases
type ProjectRepository struct {
	db *sql.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a project without test cases.
func (r *ProjectRepository) Create(ctx context.Context, name string) (*domain.Project, error) {
	return createProject(ctx, r.db, name)
}

// CreateWithTestCases inserts the project row and all test cases in one
// transaction; either both land or neither does.
func (r *ProjectRepository) CreateWithTestCases(ctx context.Context, name string, items []domain.NewTestCase) (*domain.ProjectWithTestCases, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := createProject(ctx, tx, name)
	if err != nil {
		return nil, err
	}

	tcs, err := insertTestCases(ctx, tx, p.ID, items)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit project: %w", err)
	}

	p.TestCaseCount = len(tcs)
	return &domain.ProjectWithTestCases{Project: *p, TestCases: tcs}, nil
}

// Get returns a project with its live test case count.
func (r *ProjectRepository) Get(ctx context.Context, id string) (*domain.Project, error) {
	const q = `
SELECT p.id, p.name, p.final_score, p.created_at, p.updated_at,
       (SELECT count(*) FROM test_cases tc WHERE tc.project_id = p.id AND tc.deleted_at IS NULL)
FROM projects p
WHERE p.id = $1 AND p.deleted_at IS NULL;
`
	p, err := scanProject(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// GetWithTestCases returns a project and its test cases ordered by order_index.
func (r *ProjectRepository) GetWithTestCases(ctx context.Context, id string) (*domain.ProjectWithTestCases, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	const q = `
SELECT id, project_id, title, preconditions, steps, expected_result, order_index, created_at, updated_at
FROM test_cases
WHERE project_id = $1 AND deleted_at IS NULL
ORDER BY order_index ASC, created_at ASC;
`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list test cases: %w", err)
	}
	defer rows.Close()

	tcs, err := scanTestCases(rows)
	if err != nil {
		return nil, err
	}
	return &domain.ProjectWithTestCases{Project: *p, TestCases: tcs}, nil
}

// List returns one page of non-deleted projects, newest first, and the total count.
func (r *ProjectRepository) List(ctx context.Context, params domain.ListParams) ([]domain.Project, int, error) {
	params = params.Normalize()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM projects WHERE deleted_at IS NULL;`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	const q = `
SELECT p.id, p.name, p.final_score, p.created_at, p.updated_at,
       (SELECT count(*) FROM test_cases tc WHERE tc.project_id = p.id AND tc.deleted_at IS NULL)
FROM projects p
WHERE p.deleted_at IS NULL
ORDER BY p.created_at DESC
LIMIT $1 OFFSET $2;
`
	rows, err := r.db.QueryContext(ctx, q, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Project, 0, params.Limit)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Rename updates the project's name.
func (r *ProjectRepository) Rename(ctx context.Context, id, newName string) (*domain.Project, error) {
	const q = `
UPDATE projects
SET name = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL
RETURNING id, name, final_score, created_at, updated_at,
          (SELECT count(*) FROM test_cases tc WHERE tc.project_id = projects.id AND tc.deleted_at IS NULL);
`
	p, err := scanProject(r.db.QueryRowContext(ctx, q, id, newName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to rename project: %w", err)
	}
	return p, nil
}

// SoftDelete marks a project as deleted (soft delete).
func (r *ProjectRepository) SoftDelete(ctx context.Context, id string) (bool, error) {
	const q = `
UPDATE projects
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND deleted_at IS NULL;
`
	result, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func createProject(ctx context.Context, q queryer, name string) (*domain.Project, error) {
	if name == "" {
		return nil, fmt.Errorf("name required")
	}

	const stmt = `
INSERT INTO projects (id, name)
VALUES ($1, $2)
RETURNING id, name, final_score, created_at, updated_at, 0;
`
	p, err := scanProject(q.QueryRowContext(ctx, stmt, uuid.NewString(), name))
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// insertTestCases writes items with a single INSERT ... SELECT FROM unnest.
func insertTestCases(ctx context.Context, q queryer, projectID string, items []domain.NewTestCase) ([]domain.TestCase, error) {
	if len(items) == 0 {
		return []domain.TestCase{}, nil
	}

	var (
		ids     = make([]string, len(items))
		titles  = make([]string, len(items))
		pre     = make([]string, len(items))
		steps   = make([]string, len(items))
		results = make([]string, len(items))
		orders  = make([]int64, len(items))
	)
	for i, it := range items {
		ids[i] = uuid.NewString()
		titles[i] = it.Title
		pre[i] = it.Preconditions
		steps[i] = it.Steps
		results[i] = it.ExpectedResult
		orders[i] = int64(it.OrderIndex)
	}

	const stmt = `
INSERT INTO test_cases (id, project_id, title, preconditions, steps, expected_result, order_index)
SELECT u.id, $1, u.title, u.preconditions, u.steps, u.expected_result, u.order_index
FROM unnest($2::uuid[], $3::text[], $4::text[], $5::text[], $6::text[], $7::int[])
     AS u(id, title, preconditions, steps, expected_result, order_index)
RETURNING id, project_id, title, preconditions, steps, expected_result, order_index, created_at, updated_at;
`
	rows, err := q.QueryContext(ctx, stmt, projectID,
		pq.Array(ids), pq.Array(titles), pq.Array(pre), pq.Array(steps), pq.Array(results), pq.Array(orders))
	if err != nil {
		return nil, fmt.Errorf("failed to insert test cases: %w", err)
	}
	defer rows.Close()

	tcs, err := scanTestCases(rows)
	if err != nil {
		return nil, err
	}
	if len(tcs) != len(items) {
		return nil, fmt.Errorf("inserted %d of %d test cases", len(tcs), len(items))
	}
	sortByOrder(tcs)
	return tcs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p     domain.Project
		score sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.Name, &score, &p.CreatedAt, &p.UpdatedAt, &p.TestCaseCount); err != nil {
		return nil, err
	}
	if score.Valid {
		v := score.Float64
		p.Rating = &v
	}
	return &p, nil
}

func scanTestCase(row rowScanner) (*domain.TestCase, error) {
	var tc domain.TestCase
	var pre sql.NullString
	if err := row.Scan(&tc.ID, &tc.ProjectID, &tc.Title, &pre, &tc.Steps, &tc.ExpectedResult,
		&tc.OrderIndex, &tc.CreatedAt, &tc.UpdatedAt); err != nil {
		return nil, err
	}
	tc.Preconditions = pre.String
	return &tc, nil
}

func scanTestCases(rows *sql.Rows) ([]domain.TestCase, error) {
	out := make([]domain.TestCase, 0, 8)
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
