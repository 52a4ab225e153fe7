package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casegen/casegen-backend/internal/apperrors"
	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/generation/draftstore"
	projdomain "github.com/casegen/casegen-backend/internal/projects/domain"
	projsvc "github.com/casegen/casegen-backend/internal/projects/service"
)

// scriptedDetails fails for the titles in fail and blocks while block is set.
type scriptedDetails struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
	block chan struct{}
	count atomic.Int32
}

func (s *scriptedDetails) GenerateDetails(ctx context.Context, in DetailInput) (domain.Details, error) {
	s.count.Add(1)
	s.mu.Lock()
	s.calls = append(s.calls, in.Title)
	err := s.fail[in.Title]
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.Details{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.Details{}, err
	}
	return domain.Details{
		Preconditions:  "User is on " + in.Title,
		Steps:          "1. Open " + in.Title + "\n2. Submit",
		ExpectedResult: in.Title + " works",
	}, nil
}

func (s *scriptedDetails) setFail(title string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, title)
		return
	}
	if s.fail == nil {
		s.fail = map[string]error{}
	}
	s.fail[title] = err
}

type fakeGateway struct {
	mu          sync.Mutex
	creates     int
	createdWith []domain.TestCaseDraft
	createErr   error
	bulkCalls   int
	bulkDrafts  []domain.TestCaseDraft
	bulkResult  *projdomain.BulkUpdateResult
	project     *projdomain.ProjectWithTestCases
}

func (g *fakeGateway) CreateProjectFromDrafts(_ context.Context, name string, drafts []domain.TestCaseDraft) (*projdomain.ProjectWithTestCases, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.creates++
	g.createdWith = drafts
	out := &projdomain.ProjectWithTestCases{Project: projdomain.Project{ID: uuid.NewString(), Name: name}}
	for _, d := range drafts {
		if d.HasBody() {
			out.TestCases = append(out.TestCases, projdomain.TestCase{ID: uuid.NewString(), Title: d.Title, OrderIndex: len(out.TestCases)})
		}
	}
	return out, nil
}

func (g *fakeGateway) BulkUpdateFromDrafts(_ context.Context, _ string, drafts []domain.TestCaseDraft) (*projdomain.BulkUpdateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bulkCalls++
	g.bulkDrafts = drafts
	if g.bulkResult != nil {
		return g.bulkResult, nil
	}
	return &projdomain.BulkUpdateResult{}, nil
}

func (g *fakeGateway) GetProjectWithTestCases(_ context.Context, id string) (*projdomain.ProjectWithTestCases, error) {
	if g.project == nil || g.project.ID != id {
		return nil, apperrors.Wrap(apperrors.KindNotFound, "projects.get", projdomain.ErrNotFound)
	}
	return g.project, nil
}

// orderCheckingStore fails the test if a snapshot ever shows a later draft
// finished while an earlier one is still pending.
type orderCheckingStore struct {
	*draftstore.MemoryStore
	t      *testing.T
	writes atomic.Int32
	setErr error
}

func (s *orderCheckingStore) Set(ctx context.Context, key string, snap *domain.DraftSnapshot) error {
	s.writes.Add(1)
	seenPending := false
	for _, d := range snap.TestCases {
		if d.Status == domain.StatusPending {
			seenPending = true
		} else if d.Status == domain.StatusCompleted && seenPending {
			s.t.Errorf("draft %d completed while an earlier draft is pending", d.OrderIndex)
		}
	}
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(ctx, key, snap)
}

func newStore(t *testing.T) *orderCheckingStore {
	return &orderCheckingStore{MemoryStore: draftstore.NewMemoryStore(), t: t}
}

func newTestOrchestrator(store draftstore.Store, details DetailSource, gw Gateway) *Orchestrator {
	return NewOrchestrator("key-1", Deps{
		Store:     store,
		Details:   details,
		Gateway:   gw,
		SaveDelay: 10 * time.Millisecond,
	})
}

func statuses(drafts []domain.TestCaseDraft) []domain.Status {
	out := make([]domain.Status, len(drafts))
	for i, d := range drafts {
		out[i] = d.Status
	}
	return out
}

func TestOrchestrator_FailedDraftDoesNotStopTheRun(t *testing.T) {
	store := newStore(t)
	details := &scriptedDetails{}
	details.setFail("B", apperrors.New(apperrors.KindAPI, "completion.details", "status 500"))
	gw := &fakeGateway{}
	o := newTestOrchestrator(store, details, gw)

	origin, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: []string{"A", "B", "C"}})
	require.NoError(t, err)
	assert.Equal(t, OriginTitles, origin)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{"A", "B", "C"}, details.calls)
	st := o.State()
	assert.Equal(t, []domain.Status{domain.StatusCompleted, domain.StatusError, domain.StatusCompleted}, statuses(st.Snapshot.TestCases))
	assert.Contains(t, st.Snapshot.TestCases[1].ErrorMessage, "API_ERROR")
	assert.True(t, st.Progress.Done())

	stored, err := store.Get(context.Background(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, st.Snapshot.TestCases, stored.TestCases)

	res, err := o.Finish(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 2, res.TestCaseCount)
	assert.Equal(t, 1, res.Excluded)
	require.Len(t, gw.createdWith, 3)
	assert.Equal(t, domain.StatusError, gw.createdWith[1].Status)
}

func TestOrchestrator_FinishIsIdempotent(t *testing.T) {
	store := newStore(t)
	gw := &fakeGateway{}
	o := newTestOrchestrator(store, &scriptedDetails{}, gw)

	_, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: []string{"A", "B"}})
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	first, err := o.Finish(context.Background())
	require.NoError(t, err)
	second, err := o.Finish(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, gw.creates)
	assert.Equal(t, first.ProjectID, second.ProjectID)
	assert.Zero(t, store.Len(), "snapshot removed after finish")

	_, err = o.Update(0, domain.DraftPatch{Title: ptr("late edit")})
	assert.ErrorIs(t, err, domain.ErrWorkflowFinished)
}

func TestOrchestrator_FinishFailureKeepsDrafts(t *testing.T) {
	store := newStore(t)
	gw := &fakeGateway{createErr: apperrors.New(apperrors.KindPersistence, "projects.create", "db down")}
	o := newTestOrchestrator(store, &scriptedDetails{}, gw)

	_, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: []string{"A"}})
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	_, err = o.Finish(context.Background())
	assert.Equal(t, apperrors.KindPersistence, apperrors.KindOf(err))
	assert.Equal(t, 1, store.Len())

	gw.createErr = nil
	res, err := o.Finish(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 1, gw.creates)
}

func TestOrchestrator_FinishWaitsForGeneration(t *testing.T) {
	o := newTestOrchestrator(newStore(t), &scriptedDetails{}, &fakeGateway{})
	_, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: []string{"A"}})
	require.NoError(t, err)

	_, err = o.Finish(context.Background())
	assert.ErrorIs(t, err, domain.ErrGenerationInProgress)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
}

func TestOrchestrator_CompletedSnapshotShortCircuits(t *testing.T) {
	store := newStore(t)
	snap := &domain.DraftSnapshot{
		ProjectID:   "key-1",
		ProjectName: "Suite",
		TestCases: []domain.TestCaseDraft{
			{ID: "tmp-1", Title: "A", Status: domain.StatusCompleted, Steps: "s", ExpectedResult: "r", OrderIndex: 0},
			{ID: "tmp-2", Title: "B", Status: domain.StatusCompleted, Steps: "s", ExpectedResult: "r", OrderIndex: 1},
		},
	}
	require.NoError(t, store.MemoryStore.Set(context.Background(), "key-1", snap))

	details := &scriptedDetails{}
	o := newTestOrchestrator(store, details, &fakeGateway{})
	origin, err := o.Start(context.Background(), StartInput{Titles: []string{"X", "Y", "Z"}})
	require.NoError(t, err)
	assert.Equal(t, OriginSnapshotComplete, origin)
	require.NoError(t, o.Run(context.Background()))

	assert.Zero(t, details.count.Load())
	assert.Equal(t, snap.TestCases, o.State().Snapshot.TestCases)
}

func TestOrchestrator_ResumeRedoesInterruptedDraft(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.MemoryStore.Set(context.Background(), "key-1", &domain.DraftSnapshot{
		ProjectID: "key-1",
		TestCases: []domain.TestCaseDraft{
			{ID: "tmp-3", Title: "C", Status: domain.StatusError, ErrorMessage: "API_ERROR: boom", OrderIndex: 2},
			{ID: "tmp-1", Title: "A", Status: domain.StatusCompleted, Steps: "s", ExpectedResult: "r", OrderIndex: 0},
			{ID: "tmp-2", Title: "B", Status: domain.StatusLoading, OrderIndex: 1},
		},
	}))

	details := &scriptedDetails{}
	o := newTestOrchestrator(store, details, &fakeGateway{})
	origin, err := o.Start(context.Background(), StartInput{})
	require.NoError(t, err)
	assert.Equal(t, OriginSnapshot, origin)
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{"B"}, details.calls)
	assert.Equal(t, []domain.Status{domain.StatusCompleted, domain.StatusCompleted, domain.StatusError},
		statuses(o.State().Snapshot.TestCases))
}

func TestOrchestrator_ExistingProjectSendsDrafts(t *testing.T) {
	projectID := uuid.NewString()
	gw := &fakeGateway{
		project: &projdomain.ProjectWithTestCases{
			Project: projdomain.Project{ID: projectID, Name: "Stored"},
			TestCases: []projdomain.TestCase{
				{ID: "tc-2", Title: "Second", OrderIndex: 1},
				{ID: "tc-1", Title: "First", Steps: "s", ExpectedResult: "r", OrderIndex: 0},
			},
		},
		bulkResult: &projdomain.BulkUpdateResult{SuccessCount: 1, FailCount: 1},
	}
	details := &scriptedDetails{}
	o := newTestOrchestrator(newStore(t), details, gw)

	origin, err := o.Start(context.Background(), StartInput{ProjectID: projectID})
	require.NoError(t, err)
	assert.Equal(t, OriginProject, origin)
	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, []string{"Second"}, details.calls)

	_, err = o.Update(0, domain.DraftPatch{Steps: ptr("1. edited")})
	require.NoError(t, err)

	res, err := o.Finish(context.Background())
	require.NoError(t, err, "a partial tally still finishes")
	assert.False(t, res.Created)
	assert.Equal(t, projectID, res.ProjectID)
	assert.Zero(t, gw.creates)
	require.Len(t, gw.bulkDrafts, 2)
	assert.Equal(t, "tc-1", gw.bulkDrafts[0].ID)
	assert.True(t, gw.bulkDrafts[0].IsDirty)
	assert.Equal(t, "tc-2", gw.bulkDrafts[1].ID)
	assert.True(t, gw.bulkDrafts[1].IsDirty, "generated body of a stored test case is written back")
	assert.Equal(t, 1, res.BulkUpdate.FailCount)
}

// recordingRepo serves one stored project and records bulk updates.
type recordingRepo struct {
	projsvc.Repository
	project *projdomain.ProjectWithTestCases
	updates []projdomain.TestCaseUpdate
}

func (r *recordingRepo) GetWithTestCases(_ context.Context, id string) (*projdomain.ProjectWithTestCases, error) {
	if r.project == nil || r.project.ID != id {
		return nil, projdomain.ErrNotFound
	}
	return r.project, nil
}

func (r *recordingRepo) BulkUpdateTestCases(_ context.Context, _ string, updates []projdomain.TestCaseUpdate) (*projdomain.BulkUpdateResult, error) {
	r.updates = append(r.updates, updates...)
	res := &projdomain.BulkUpdateResult{Results: []projdomain.BulkItemResult{}}
	for _, u := range updates {
		res.SuccessCount++
		res.Results = append(res.Results, projdomain.BulkItemResult{ID: u.ID, Success: true})
	}
	return res, nil
}

func TestOrchestrator_ExistingProjectPersistsGeneratedBodies(t *testing.T) {
	projectID := uuid.NewString()
	complete, empty := uuid.NewString(), uuid.NewString()
	repo := &recordingRepo{project: &projdomain.ProjectWithTestCases{
		Project: projdomain.Project{ID: projectID, Name: "Checkout"},
		TestCases: []projdomain.TestCase{
			{ID: complete, Title: "Checkout with card", Steps: "1. Pay", ExpectedResult: "Paid", OrderIndex: 0},
			{ID: empty, Title: "Checkout empty basket", OrderIndex: 1},
		},
	}}
	gw := projsvc.NewProjectService(repo, nil)
	details := &scriptedDetails{}
	o := newTestOrchestrator(newStore(t), details, gw)

	_, err := o.Start(context.Background(), StartInput{ProjectID: projectID})
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, []string{"Checkout empty basket"}, details.calls)

	res, err := o.Finish(context.Background())
	require.NoError(t, err)
	require.Len(t, repo.updates, 1, "only the generated draft is sent")
	u := repo.updates[0]
	assert.Equal(t, empty, u.ID)
	require.NotNil(t, u.Steps)
	assert.Equal(t, "1. Open Checkout empty basket\n2. Submit", *u.Steps)
	require.NotNil(t, u.ExpectedResult)
	assert.Equal(t, 1, res.BulkUpdate.SuccessCount)
}

func TestOrchestrator_StartRejectsSuppliedTitles(t *testing.T) {
	tooMany := make([]string, domain.MaxTitles+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("Scenario %d", i+1)
	}
	tests := []struct {
		name   string
		titles []string
	}{
		{"none", []string{}},
		{"too many", tooMany},
		{"blank", []string{"Valid title", "  "}},
		{"too long", []string{strings.Repeat("x", domain.MaxTitleLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := &scriptedDetails{}
			o := newTestOrchestrator(newStore(t), details, &fakeGateway{})
			_, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: tt.titles})
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
			assert.Empty(t, o.State().Snapshot.TestCases)
			assert.Zero(t, details.count.Load())
		})
	}
}

func TestOrchestrator_UpdateValidatesPatch(t *testing.T) {
	o := newTestOrchestrator(newStore(t), &scriptedDetails{}, &fakeGateway{})
	_, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: []string{"A"}})
	require.NoError(t, err)

	tests := []struct {
		name  string
		patch domain.DraftPatch
	}{
		{"blank title", domain.DraftPatch{Title: ptr("   ")}},
		{"empty title", domain.DraftPatch{Title: ptr("")}},
		{"long title", domain.DraftPatch{Title: ptr(strings.Repeat("t", 256))}},
		{"long preconditions", domain.DraftPatch{Preconditions: ptr(strings.Repeat("p", 1001))}},
		{"long steps", domain.DraftPatch{Steps: ptr(strings.Repeat("s", 5001))}},
		{"long expected result", domain.DraftPatch{ExpectedResult: ptr(strings.Repeat("r", 5001))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Update(0, tt.patch)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		})
	}

	d := o.State().Snapshot.TestCases[0]
	assert.Equal(t, "A", d.Title)
	assert.False(t, d.IsDirty, "rejected edits leave the draft untouched")

	d, err = o.Update(0, domain.DraftPatch{Steps: ptr(strings.Repeat("s", 5000))})
	require.NoError(t, err)
	assert.True(t, d.IsDirty)
}

func TestOrchestrator_Navigation(t *testing.T) {
	details := &scriptedDetails{}
	details.setFail("B", apperrors.New(apperrors.KindParse, "completion.details", "bad json"))
	o := newTestOrchestrator(newStore(t), details, &fakeGateway{})
	_, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: []string{"A", "B", "C"}})
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	_, err = o.Previous()
	assert.ErrorIs(t, err, domain.ErrAtFirstDraft)

	idx, err := o.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = o.Next()
	assert.ErrorIs(t, err, domain.ErrCurrentDraftFailed)

	// a hand edit does not clear the error; only a retry does
	d, err := o.Update(1, domain.DraftPatch{Steps: ptr("1. manual"), ExpectedResult: ptr("ok")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusError, d.Status)
	assert.True(t, d.IsDirty)

	details.setFail("B", nil)
	d, err = o.Retry(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, d.Status)

	idx, err = o.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	_, err = o.Next()
	assert.ErrorIs(t, err, domain.ErrAtLastDraft)

	_, err = o.Retry(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = o.Update(7, domain.DraftPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, domain.ErrIndexOutOfRange)
	_, err = o.Update(0, domain.DraftPatch{})
	assert.ErrorIs(t, err, domain.ErrEmptyPatch)
}

func TestOrchestrator_EditsAreSavedAfterDelay(t *testing.T) {
	store := newStore(t)
	o := NewOrchestrator("key-1", Deps{Store: store, Details: &scriptedDetails{}, Gateway: &fakeGateway{}, SaveDelay: 100 * time.Millisecond})
	_, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: []string{"A"}})
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))

	before := store.writes.Load()
	for _, title := range []string{"A1", "A2", "A3"} {
		_, err := o.Update(0, domain.DraftPatch{Title: ptr(title)})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		snap, err := store.Get(context.Background(), "key-1")
		return err == nil && snap.TestCases[0].Title == "A3"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, before+1, store.writes.Load(), "bursts of edits are written once")
}

func TestOrchestrator_CancelLeavesResumableSnapshot(t *testing.T) {
	store := newStore(t)
	details := &scriptedDetails{block: make(chan struct{})}
	o := newTestOrchestrator(store, details, &fakeGateway{})
	_, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: []string{"A", "B"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return details.count.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, domain.StatusPending, o.State().Snapshot.TestCases[0].Status)

	resumed := newTestOrchestrator(store, &scriptedDetails{}, &fakeGateway{})
	origin, err := resumed.Start(context.Background(), StartInput{})
	require.NoError(t, err)
	assert.Equal(t, OriginSnapshot, origin)
	require.NoError(t, resumed.Run(context.Background()))
	assert.True(t, resumed.State().Progress.Done())
}

func TestOrchestrator_StoreFailuresAreNotFatal(t *testing.T) {
	store := newStore(t)
	store.setErr = errors.New("disk full")
	o := newTestOrchestrator(store, &scriptedDetails{}, &fakeGateway{})

	_, err := o.Start(context.Background(), StartInput{ProjectName: "Suite", Titles: []string{"A", "B"}})
	require.NoError(t, err)
	require.NoError(t, o.Run(context.Background()))
	assert.Equal(t, 2, o.State().Progress.Completed)
	assert.Zero(t, store.Len())
}

func TestOrchestrator_TitleGenerationFailureStopsStart(t *testing.T) {
	titles := NewTitleGenerator(&fakeCompleter{titles: []string{}}, nil)
	o := NewOrchestrator("key-1", Deps{Store: newStore(t), Titles: titles, Details: &scriptedDetails{}})

	_, err := o.Start(context.Background(), StartInput{Documentation: validDocumentation})
	assert.Equal(t, apperrors.KindInvalidFormat, apperrors.KindOf(err))
}

func ptr[T any](v T) *T { return &v }
