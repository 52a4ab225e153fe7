package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casegen/casegen-backend/internal/projects/domain"
)

var (
	projectCols  = []string{"id", "name", "final_score", "created_at", "updated_at", "count"}
	testCaseCols = []string{"id", "project_id", "title", "preconditions", "steps", "expected_result", "order_index", "created_at", "updated_at"}
)

func setupProjectRepo(t *testing.T) (*ProjectRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewProjectRepository(db), mock
}

func strPtr(s string) *string { return &s }

func TestProjectRepository_CreateWithTestCases(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	items := []domain.NewTestCase{
		{Title: "Login works", Steps: "1. Log in", ExpectedResult: "Dashboard shown", OrderIndex: 0},
		{Title: "Logout works", Preconditions: "Logged in", Steps: "1. Log out", ExpectedResult: "Login page shown", OrderIndex: 1},
	}

	t.Run("inserts project and test cases in one transaction", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO projects`).
			WithArgs(sqlmock.AnyArg(), "Auth").
			WillReturnRows(sqlmock.NewRows(projectCols).AddRow("p-1", "Auth", nil, now, now, 0))
		mock.ExpectQuery(`INSERT INTO test_cases`).
			WithArgs("p-1",
				sqlmock.AnyArg(), // ids
				sqlmock.AnyArg(), // titles
				sqlmock.AnyArg(), // preconditions
				sqlmock.AnyArg(), // steps
				sqlmock.AnyArg(), // expected results
				sqlmock.AnyArg(), // order indexes
			).
			WillReturnRows(sqlmock.NewRows(testCaseCols).
				AddRow("tc-2", "p-1", "Logout works", "Logged in", "1. Log out", "Login page shown", 1, now, now).
				AddRow("tc-1", "p-1", "Login works", "", "1. Log in", "Dashboard shown", 0, now, now))
		mock.ExpectCommit()

		got, err := repo.CreateWithTestCases(ctx, "Auth", items)
		require.NoError(t, err)
		assert.Equal(t, "p-1", got.ID)
		assert.Equal(t, 2, got.TestCaseCount)
		assert.Nil(t, got.Rating)
		require.Len(t, got.TestCases, 2)
		assert.Equal(t, "tc-1", got.TestCases[0].ID, "sorted by order_index")
		assert.Equal(t, "Logged in", got.TestCases[1].Preconditions)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back the project when test cases fail", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO projects`).
			WillReturnRows(sqlmock.NewRows(projectCols).AddRow("p-1", "Auth", nil, now, now, 0))
		mock.ExpectQuery(`INSERT INTO test_cases`).
			WillReturnError(&pq.Error{Code: "23514", Message: "check constraint"})
		mock.ExpectRollback()

		_, err := repo.CreateWithTestCases(ctx, "Auth", items)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to insert test cases")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("short insert is an error", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO projects`).
			WillReturnRows(sqlmock.NewRows(projectCols).AddRow("p-1", "Auth", nil, now, now, 0))
		mock.ExpectQuery(`INSERT INTO test_cases`).
			WillReturnRows(sqlmock.NewRows(testCaseCols).
				AddRow("tc-1", "p-1", "Login works", "", "1. Log in", "Dashboard shown", 0, now, now))
		mock.ExpectRollback()

		_, err := repo.CreateWithTestCases(ctx, "Auth", items)
		assert.Error(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_GetWithTestCases(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("not found", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		mock.ExpectQuery(`FROM projects p`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(projectCols))

		_, err := repo.GetWithTestCases(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns project with ordered test cases", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		mock.ExpectQuery(`FROM projects p`).
			WithArgs("p-1").
			WillReturnRows(sqlmock.NewRows(projectCols).AddRow("p-1", "Auth", 8.5, now, now, 2))
		mock.ExpectQuery(`FROM test_cases`).
			WithArgs("p-1").
			WillReturnRows(sqlmock.NewRows(testCaseCols).
				AddRow("tc-1", "p-1", "Login works", nil, "1. Log in", "Dashboard shown", 0, now, now).
				AddRow("tc-2", "p-1", "Logout works", "Logged in", "1. Log out", "Login page shown", 1, now, now))

		got, err := repo.GetWithTestCases(ctx, "p-1")
		require.NoError(t, err)
		require.NotNil(t, got.Rating)
		assert.InDelta(t, 8.5, *got.Rating, 0.001)
		assert.Equal(t, 2, got.TestCaseCount)
		require.Len(t, got.TestCases, 2)
		assert.Equal(t, "", got.TestCases[0].Preconditions)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_List(t *testing.T) {
	repo, mock := setupProjectRepo(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT count\(\*\) FROM projects`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`ORDER BY p.created_at DESC`).
		WithArgs(5, 5).
		WillReturnRows(sqlmock.NewRows(projectCols).
			AddRow("p-6", "Six", nil, now, now, 3).
			AddRow("p-7", "Seven", 7.0, now, now, 0))

	items, total, err := repo.List(context.Background(), domain.ListParams{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, items, 2)
	assert.Equal(t, 3, items[0].TestCaseCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectRepository_RenameAndDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("rename", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		mock.ExpectQuery(`UPDATE projects`).
			WithArgs("p-1", "New name").
			WillReturnRows(sqlmock.NewRows(projectCols).AddRow("p-1", "New name", nil, now, now, 4))

		p, err := repo.Rename(ctx, "p-1", "New name")
		require.NoError(t, err)
		assert.Equal(t, "New name", p.Name)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rename missing", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		mock.ExpectQuery(`UPDATE projects`).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Rename(ctx, "p-x", "New name")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("soft delete", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		mock.ExpectExec(`UPDATE projects\s+SET deleted_at`).
			WithArgs("p-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.SoftDelete(ctx, "p-1")
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_BulkUpdateTestCases(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("tallies per-item results", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)

		updates := []domain.TestCaseUpdate{
			{ID: "tc-1", Steps: strPtr("1. Open\n2. Click")},
			{ID: "tc-2", Title: strPtr("Renamed")},
			{ID: "tc-3", ExpectedResult: strPtr("Shown")},
		}

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM projects`).
			WithArgs("p-1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))

		mock.ExpectExec(`^SAVEPOINT bulk_item`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`UPDATE test_cases`).
			WithArgs("tc-1", "p-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(testCaseCols).
				AddRow("tc-1", "p-1", "Login", "", "1. Open\n2. Click", "Ok", 0, now, now))
		mock.ExpectExec(`^RELEASE SAVEPOINT bulk_item`).WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectExec(`^SAVEPOINT bulk_item`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`UPDATE test_cases`).
			WithArgs("tc-2", "p-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnError(&pq.Error{Code: "22001", Message: "value too long"})
		mock.ExpectExec(`^ROLLBACK TO SAVEPOINT bulk_item`).WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectExec(`^SAVEPOINT bulk_item`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`UPDATE test_cases`).
			WithArgs("tc-3", "p-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(testCaseCols))
		mock.ExpectExec(`^ROLLBACK TO SAVEPOINT bulk_item`).WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectCommit()

		res, err := repo.BulkUpdateTestCases(ctx, "p-1", updates)
		require.NoError(t, err)
		assert.Equal(t, 1, res.SuccessCount)
		assert.Equal(t, 2, res.FailCount)
		assert.True(t, res.Partial())
		require.Len(t, res.Results, 3)
		assert.True(t, res.Results[0].Success)
		assert.Equal(t, "1. Open\n2. Click", res.Results[0].Data.Steps)
		assert.Equal(t, "database error 22001: value too long", res.Results[1].Error)
		assert.Equal(t, domain.ErrTestCaseNotFound.Error(), res.Results[2].Error)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing project aborts", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM projects`).
			WithArgs("p-x").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := repo.BulkUpdateTestCases(ctx, "p-x", []domain.TestCaseUpdate{{ID: "tc-1", Title: strPtr("x")}})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty input skips the database", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		res, err := repo.BulkUpdateTestCases(ctx, "p-1", nil)
		require.NoError(t, err)
		assert.Zero(t, res.SuccessCount)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure is returned", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM projects`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
		mock.ExpectExec(`^SAVEPOINT bulk_item`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`UPDATE test_cases`).
			WillReturnRows(sqlmock.NewRows(testCaseCols).
				AddRow("tc-1", "p-1", "Login", "", "s", "r", 0, now, now))
		mock.ExpectExec(`^RELEASE SAVEPOINT bulk_item`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit().WillReturnError(errors.New("connection lost"))

		_, err := repo.BulkUpdateTestCases(ctx, "p-1", []domain.TestCaseUpdate{{ID: "tc-1", Title: strPtr("x")}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection lost")
	})
}

func TestProjectRepository_CreateTestCase(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	in := domain.NewTestCase{Title: "Edge case", Steps: "1. Do", ExpectedResult: "Done", OrderIndex: 3}

	t.Run("respects the per-project limit", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM projects`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
		mock.ExpectQuery(`SELECT count\(\*\) FROM test_cases`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(domain.MaxTestCasesPerProject))
		mock.ExpectRollback()

		_, err := repo.CreateTestCase(ctx, "p-1", in)
		assert.ErrorIs(t, err, domain.ErrTooManyTestCases)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("inserts", func(t *testing.T) {
		repo, mock := setupProjectRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT id FROM projects`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
		mock.ExpectQuery(`SELECT count\(\*\) FROM test_cases`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectQuery(`INSERT INTO test_cases`).
			WillReturnRows(sqlmock.NewRows(testCaseCols).
				AddRow("tc-9", "p-1", "Edge case", "", "1. Do", "Done", 3, now, now))
		mock.ExpectCommit()

		tc, err := repo.CreateTestCase(ctx, "p-1", in)
		require.NoError(t, err)
		assert.Equal(t, "tc-9", tc.ID)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProjectRepository_SoftDeleteTestCase(t *testing.T) {
	repo, mock := setupProjectRepo(t)
	mock.ExpectExec(`UPDATE test_cases\s+SET deleted_at`).
		WithArgs("tc-1", "p-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SoftDeleteTestCase(context.Background(), "p-1", "tc-1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
