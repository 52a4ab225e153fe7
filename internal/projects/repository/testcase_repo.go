package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"

	"github.com/casegen/casegen-backend/internal/projects/domain"
)

const savepointBulkItem = "bulk_item"

// CreateTestCase appends a single test case, refusing once the project holds
// the maximum number of live test cases.
func (r *ProjectRepository) CreateTestCase(ctx context.Context, projectID string, in domain.NewTestCase) (*domain.TestCase, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockProject(ctx, tx, projectID); err != nil {
		return nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, `
SELECT count(*) FROM test_cases WHERE project_id = $1 AND deleted_at IS NULL;
`, projectID).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count test cases: %w", err)
	}
	if count >= domain.MaxTestCasesPerProject {
		return nil, domain.ErrTooManyTestCases
	}

	tcs, err := insertTestCases(ctx, tx, projectID, []domain.NewTestCase{in})
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit test case: %w", err)
	}
	return &tcs[0], nil
}

// UpdateTestCase applies the non-nil fields of upd.
func (r *ProjectRepository) UpdateTestCase(ctx context.Context, projectID string, upd domain.TestCaseUpdate) (*domain.TestCase, error) {
	return updateTestCase(ctx, r.db, projectID, upd)
}

// SoftDeleteTestCase hides a test case from its project.
func (r *ProjectRepository) SoftDeleteTestCase(ctx context.Context, projectID, id string) (bool, error) {
	const q = `
UPDATE test_cases
SET deleted_at = now(), updated_at = now()
WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL;
`
	result, err := r.db.ExecContext(ctx, q, id, projectID)
	if err != nil {
		return false, fmt.Errorf("failed to delete test case: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BulkUpdateTestCases applies every update inside one transaction. Each item
// runs under its own savepoint so a failing item is rolled back alone and
// reported in the result instead of aborting the batch.
func (r *ProjectRepository) BulkUpdateTestCases(ctx context.Context, projectID string, updates []domain.TestCaseUpdate) (*domain.BulkUpdateResult, error) {
	res := &domain.BulkUpdateResult{Results: make([]domain.BulkItemResult, 0, len(updates))}
	if len(updates) == 0 {
		return res, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := lockProject(ctx, tx, projectID); err != nil {
		return nil, err
	}

	for _, upd := range updates {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+savepointBulkItem); err != nil {
			return nil, fmt.Errorf("failed to create savepoint: %w", err)
		}

		tc, err := updateTestCase(ctx, tx, projectID, upd)
		if err != nil {
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepointBulkItem); rbErr != nil {
				return nil, fmt.Errorf("failed to roll back item %s: %w", upd.ID, rbErr)
			}
			res.FailCount++
			res.Results = append(res.Results, domain.BulkItemResult{ID: upd.ID, Error: itemError(err)})
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+savepointBulkItem); err != nil {
			return nil, fmt.Errorf("failed to release savepoint: %w", err)
		}
		res.SuccessCount++
		res.Results = append(res.Results, domain.BulkItemResult{ID: upd.ID, Success: true, Data: tc})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit bulk update: %w", err)
	}
	return res, nil
}

func lockProject(ctx context.Context, q queryer, projectID string) error {
	var ok string
	err := q.QueryRowContext(ctx, `
SELECT id FROM projects WHERE id = $1 AND deleted_at IS NULL FOR UPDATE;
`, projectID).Scan(&ok)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to lock project: %w", err)
	}
	return nil
}

func updateTestCase(ctx context.Context, q queryer, projectID string, upd domain.TestCaseUpdate) (*domain.TestCase, error) {
	const stmt = `
UPDATE test_cases
SET title = COALESCE($3, title),
    preconditions = COALESCE($4, preconditions),
    steps = COALESCE($5, steps),
    expected_result = COALESCE($6, expected_result),
    order_index = COALESCE($7, order_index),
    updated_at = now()
WHERE id = $1 AND project_id = $2 AND deleted_at IS NULL
RETURNING id, project_id, title, preconditions, steps, expected_result, order_index, created_at, updated_at;
`
	var order sql.NullInt64
	if upd.OrderIndex != nil {
		order = sql.NullInt64{Int64: int64(*upd.OrderIndex), Valid: true}
	}
	tc, err := scanTestCase(q.QueryRowContext(ctx, stmt, upd.ID, projectID,
		nullString(upd.Title), nullString(upd.Preconditions), nullString(upd.Steps), nullString(upd.ExpectedResult), order))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTestCaseNotFound
		}
		return nil, fmt.Errorf("failed to update test case: %w", err)
	}
	return tc, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// itemError renders a per-item failure without leaking driver internals.
func itemError(err error) string {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		return fmt.Sprintf("database error %s: %s", pgErr.Code, pgErr.Message)
	}
	if errors.Is(err, domain.ErrTestCaseNotFound) {
		return domain.ErrTestCaseNotFound.Error()
	}
	return err.Error()
}

func sortByOrder(tcs []domain.TestCase) {
	slices.SortStableFunc(tcs, func(a, b domain.TestCase) int {
		return a.OrderIndex - b.OrderIndex
	})
}
