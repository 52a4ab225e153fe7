package domain

import "time"

// Input limits shared by the generators and the orchestrator.
const (
	MinDocumentationLength = 100
	MaxDocumentationLength = 5000
	MaxProjectNameLength   = 100

	MinTitles      = 1
	MaxTitles      = 20
	MaxTitleLength = 200

	MinDetailTitleLength = 10
	MaxContextTitles     = 50
)

// Status is the per-draft generation state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusLoading   Status = "loading"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusLoading, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Terminal reports whether generation is finished for a draft in status s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition reports whether from → to is allowed by the draft state machine:
// pending → loading → completed, loading → error, and error → loading on retry.
// loading → pending is only used when resuming a snapshot written mid-call.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusLoading
	case StatusLoading:
		return to == StatusCompleted || to == StatusError || to == StatusPending
	case StatusError:
		return to == StatusLoading
	}
	return false
}

// Details is the generated body of a test case.
type Details struct {
	Preconditions  string `json:"preconditions"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
}

// TestCaseDraft is one in-progress test case managed by the orchestrator.
type TestCaseDraft struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Status         Status `json:"status"`
	Preconditions  string `json:"preconditions"`
	Steps          string `json:"steps"`
	ExpectedResult string `json:"expected_result"`
	OrderIndex     int    `json:"order_index"`
	IsDirty        bool   `json:"isDirty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
}

// HasBody reports whether both steps and expected result are filled in.
func (d TestCaseDraft) HasBody() bool {
	return d.Steps != "" && d.ExpectedResult != ""
}

// DraftPatch is a partial user edit. Nil fields are left untouched.
type DraftPatch struct {
	Title          *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Preconditions  *string `json:"preconditions,omitempty" validate:"omitempty,max=1000"`
	Steps          *string `json:"steps,omitempty" validate:"omitempty,max=5000"`
	ExpectedResult *string `json:"expected_result,omitempty" validate:"omitempty,max=5000"`
}

// Empty reports whether the patch changes nothing.
func (p DraftPatch) Empty() bool {
	return p.Title == nil && p.Preconditions == nil && p.Steps == nil && p.ExpectedResult == nil
}

// Apply merges the patch into d and marks it dirty. Status is never changed.
func (p DraftPatch) Apply(d *TestCaseDraft) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Preconditions != nil {
		d.Preconditions = *p.Preconditions
	}
	if p.Steps != nil {
		d.Steps = *p.Steps
	}
	if p.ExpectedResult != nil {
		d.ExpectedResult = *p.ExpectedResult
	}
	d.IsDirty = true
}

// DraftSnapshot is the durable unit written to the draft store.
type DraftSnapshot struct {
	ProjectID          string          `json:"projectId"`
	PersistedProjectID string          `json:"persistedProjectId,omitempty"`
	ProjectName        string          `json:"projectName,omitempty"`
	Documentation      string          `json:"documentation,omitempty"`
	CurrentIndex       int             `json:"currentIndex"`
	TestCases          []TestCaseDraft `json:"testCases"`
	LastSaved          time.Time       `json:"lastSaved"`
}

// AllCompleted reports whether every draft finished successfully.
func (s *DraftSnapshot) AllCompleted() bool {
	if s == nil || len(s.TestCases) == 0 {
		return false
	}
	for _, tc := range s.TestCases {
		if tc.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Progress summarises draft statuses.
type Progress struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Loading   int `json:"loading"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Done reports whether no draft is pending or loading.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Pending == 0 && p.Loading == 0
}

// ProgressOf counts statuses over drafts.
func ProgressOf(drafts []TestCaseDraft) Progress {
	p := Progress{Total: len(drafts)}
	for _, d := range drafts {
		switch d.Status {
		case StatusPending:
			p.Pending++
		case StatusLoading:
			p.Loading++
		case StatusCompleted:
			p.Completed++
		case StatusError:
			p.Failed++
		}
	}
	return p
}
