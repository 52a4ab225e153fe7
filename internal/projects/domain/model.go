package domain

import "time"

// Limits enforced by the store of record.
const (
	MaxProjectNameLength   = 100
	MaxTestCasesPerProject = 20
	MaxTitleLength         = 255
	MaxPreconditionsLength = 1000
	MaxBodyLength          = 5000

	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Project is a stored suite of test cases. Rating maps to final_score and
// stays nil until the project is scored.
type Project struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Rating        *float64  `json:"rating"`
	TestCaseCount int       `json:"testCaseCount"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TestCase is a persisted test case.
type TestCase struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Title          string    `json:"title"`
	Preconditions  string    `json:"preconditions"`
	Steps          string    `json:"steps"`
	ExpectedResult string    `json:"expected_result"`
	OrderIndex     int       `json:"order_index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProjectWithTestCases is a project plus its live test cases in order_index order.
type ProjectWithTestCases struct {
	Project
	TestCases []TestCase `json:"testCases"`
}

// NewTestCase is the input for inserting a test case.
type NewTestCase struct {
	Title          string `json:"title" validate:"required,max=255"`
	Preconditions  string `json:"preconditions" validate:"max=1000"`
	Steps          string `json:"steps" validate:"required,max=5000"`
	ExpectedResult string `json:"expected_result" validate:"required,max=5000"`
	OrderIndex     int    `json:"order_index" validate:"min=0"`
}

// TestCaseUpdate changes the non-nil fields of one test case.
type TestCaseUpdate struct {
	ID             string  `json:"id" validate:"required,uuid"`
	Title          *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Preconditions  *string `json:"preconditions,omitempty" validate:"omitempty,max=1000"`
	Steps          *string `json:"steps,omitempty" validate:"omitempty,min=1,max=5000"`
	ExpectedResult *string `json:"expected_result,omitempty" validate:"omitempty,min=1,max=5000"`
	OrderIndex     *int    `json:"order_index,omitempty" validate:"omitempty,min=0"`
}

// Empty reports whether the update changes nothing.
func (u TestCaseUpdate) Empty() bool {
	return u.Title == nil && u.Preconditions == nil && u.Steps == nil && u.ExpectedResult == nil && u.OrderIndex == nil
}

// BulkItemResult reports the outcome for one item of a bulk update.
type BulkItemResult struct {
	ID      string    `json:"id"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
	Data    *TestCase `json:"data,omitempty"`
}

// BulkUpdateResult tallies a bulk update. SuccessCount may be lower than the
// number of items sent; callers log the shortfall and carry on.
type BulkUpdateResult struct {
	SuccessCount int              `json:"successCount"`
	FailCount    int              `json:"failCount"`
	Results      []BulkItemResult `json:"results"`
}

// Partial reports whether some, but not all, items failed.
func (r *BulkUpdateResult) Partial() bool {
	return r != nil && r.FailCount > 0
}

// ListParams selects one page of projects. Page is 1-based.
type ListParams struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit to valid values.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the page.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ProjectPage is one page of the project list.
type ProjectPage struct {
	Projects []Project `json:"projects"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Total    int       `json:"total"`
}
