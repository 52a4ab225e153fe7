package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/internal/apperrors"
	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/generation/draftstore"
	"github.com/casegen/casegen-backend/internal/logging"
	"github.com/casegen/casegen-backend/internal/metrics"
	"github.com/casegen/casegen-backend/internal/validation"
	projdomain "github.com/casegen/casegen-backend/internal/projects/domain"
)

const (
	// DefaultSaveDelay debounces snapshot writes caused by edits and navigation.
	DefaultSaveDelay = 500 * time.Millisecond

	storeWriteTimeout = 5 * time.Second
	tempIDPrefix      = "tmp-"
)

// TitleSource produces the title list for a fresh run.
type TitleSource interface {
	GenerateTitles(ctx context.Context, documentation, projectName string) ([]string, error)
}

// DetailSource produces the body of one draft.
type DetailSource interface {
	GenerateDetails(ctx context.Context, in DetailInput) (domain.Details, error)
}

// Gateway hands finished drafts to the store of record.
type Gateway interface {
	CreateProjectFromDrafts(ctx context.Context, name string, drafts []domain.TestCaseDraft) (*projdomain.ProjectWithTestCases, error)
	BulkUpdateFromDrafts(ctx context.Context, projectID string, drafts []domain.TestCaseDraft) (*projdomain.BulkUpdateResult, error)
	GetProjectWithTestCases(ctx context.Context, id string) (*projdomain.ProjectWithTestCases, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store   draftstore.Store
	Titles  TitleSource
	Details DetailSource
	Gateway Gateway
	Logger  *zap.Logger
	// SaveDelay overrides DefaultSaveDelay.
	SaveDelay time.Duration
}

// Origin says where the working draft list came from.
type Origin string

const (
	OriginSnapshotComplete Origin = "snapshot_complete"
	OriginSnapshot         Origin = "snapshot"
	OriginProject          Origin = "project"
	OriginTitles           Origin = "titles"
)

// StartInput seeds a run. ProjectID selects an already persisted project;
// Titles skips title generation for a new one.
type StartInput struct {
	ProjectID     string
	ProjectName   string
	Documentation string
	Titles        []string
}

// FinishResult is what a successful Finish handed to the store of record.
type FinishResult struct {
	ProjectID     string                       `json:"projectId"`
	Created       bool                         `json:"created"`
	TestCaseCount int                          `json:"testCaseCount"`
	Excluded      int                          `json:"excluded"`
	BulkUpdate    *projdomain.BulkUpdateResult `json:"bulkUpdate,omitempty"`
}

// State is a point-in-time copy of a workflow.
type State struct {
	Key      string               `json:"key"`
	Origin   Origin               `json:"origin"`
	Snapshot domain.DraftSnapshot `json:"snapshot"`
	Progress domain.Progress      `json:"progress"`
	Running  bool                 `json:"running"`
	Finished *FinishResult        `json:"finished,omitempty"`
	Version  uint64               `json:"version"`
}

// Orchestrator drives detail generation over one draft set and owns its
// snapshot in the draft store. Drafts are kept sorted by OrderIndex, so slice
// positions and indexes are the same thing.
type Orchestrator struct {
	key       string
	store     draftstore.Store
	titles    TitleSource
	details   DetailSource
	gateway   Gateway
	logger    *zap.Logger
	saveDelay time.Duration

	mu        sync.Mutex
	snap      domain.DraftSnapshot
	origin    Origin
	version   uint64
	running   bool
	finished  *FinishResult
	saveTimer *time.Timer

	// writeMu orders snapshot writes; finishMu serialises Finish calls.
	writeMu  sync.Mutex
	finishMu sync.Mutex
}

// NewOrchestrator creates an orchestrator for the snapshot stored under key.
func NewOrchestrator(key string, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	delay := deps.SaveDelay
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &Orchestrator{
		key:       key,
		store:     deps.Store,
		titles:    deps.Titles,
		details:   deps.Details,
		gateway:   deps.Gateway,
		logger:    logger.With(zap.String("workflow_key", key)),
		saveDelay: delay,
		snap:      domain.DraftSnapshot{ProjectID: key},
	}
}

// Key returns the draft store key.
func (o *Orchestrator) Key() string { return o.key }

// Start builds the working draft list. In order of preference: the stored
// snapshot (an all-completed one means nothing is left to generate), the
// persisted project's test cases, the given titles, freshly generated titles.
// A title generation failure is returned as is; there is nothing to resume.
func (o *Orchestrator) Start(ctx context.Context, in StartInput) (Origin, error) {
	const op = "generation.start"
	log := logging.WithContext(ctx, o.logger)

	snap, err := o.store.Get(ctx, o.key)
	switch {
	case err == nil:
		origin := o.resume(snap)
		log.Info("draft_restored",
			zap.String("origin", string(origin)),
			zap.Int("count", len(snap.TestCases)),
			zap.Time("last_saved", snap.LastSaved))
		if origin == OriginSnapshot {
			o.checkpoint(ctx)
		}
		return origin, nil
	case errors.Is(err, domain.ErrDraftNotFound):
	default:
		metrics.RecordDraftWriteFailure()
		log.Warn("draft_load_error", zap.Error(err))
	}

	base := domain.DraftSnapshot{
		ProjectID:     o.key,
		ProjectName:   strings.TrimSpace(in.ProjectName),
		Documentation: in.Documentation,
	}
	origin := OriginTitles

	if in.ProjectID != "" {
		project, err := o.gateway.GetProjectWithTestCases(ctx, in.ProjectID)
		if err != nil {
			return "", err
		}
		base.PersistedProjectID = project.ID
		if base.ProjectName == "" {
			base.ProjectName = project.Name
		}
		if len(project.TestCases) > 0 {
			base.TestCases = draftsFromProject(project.TestCases)
			origin = OriginProject
		}
	}

	if base.TestCases == nil {
		var titles []string
		if in.Titles != nil {
			titles, err = checkTitles(op, in.Titles)
			if err != nil {
				return "", apperrors.New(apperrors.KindValidation, op, apperrors.Message(err))
			}
		} else {
			if o.titles == nil {
				return "", apperrors.Wrap(apperrors.KindValidation, op, domain.ErrNoDrafts)
			}
			titles, err = o.titles.GenerateTitles(ctx, in.Documentation, base.ProjectName)
			if err != nil {
				return "", err
			}
		}
		base.TestCases = draftsFromTitles(titles)
		if len(base.TestCases) == 0 {
			return "", apperrors.Wrap(apperrors.KindValidation, op, domain.ErrNoDrafts)
		}
	}

	o.mu.Lock()
	o.snap = base
	o.origin = origin
	o.version++
	o.mu.Unlock()

	log.Info("generation_started",
		zap.String("origin", string(origin)),
		zap.Int("count", len(base.TestCases)),
		zap.String("persisted_project_id", base.PersistedProjectID))
	o.checkpoint(ctx)
	return origin, nil
}

func (o *Orchestrator) resume(snap *domain.DraftSnapshot) Origin {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := cloneSnapshot(*snap)
	s.ProjectID = o.key
	sortDrafts(s.TestCases)
	origin := OriginSnapshotComplete
	if !s.AllCompleted() {
		origin = OriginSnapshot
		for i := range s.TestCases {
			// a call that was in flight when the snapshot was written is redone
			if s.TestCases[i].Status == domain.StatusLoading {
				s.TestCases[i].Status = domain.StatusPending
			}
		}
	}
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.TestCases) {
		s.CurrentIndex = 0
	}
	o.snap = s
	o.origin = origin
	o.version++
	return origin
}

// Run generates details for every pending draft in order. A failed draft is
// marked error and the loop moves on. Cancelling ctx stops the loop; the last
// written snapshot is the resumption point.
func (o *Orchestrator) Run(ctx context.Context) error {
	const op = "generation.run"
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return apperrors.Wrap(apperrors.KindConflict, op, domain.ErrGenerationInProgress)
	}
	if o.finished != nil {
		o.mu.Unlock()
		return nil
	}
	o.running = true
	o.version++
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.version++
		o.mu.Unlock()
	}()

	log := logging.WithContext(ctx, o.logger)
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			log.Info("generation_cancelled", zap.Error(err))
			return err
		}
		idx, in, ok := o.claimNext(ctx)
		if !ok {
			break
		}
		details, err := o.details.GenerateDetails(ctx, in)
		if err != nil && ctx.Err() != nil {
			o.release(idx)
			log.Info("generation_cancelled", zap.Int("index", idx), zap.Error(ctx.Err()))
			return ctx.Err()
		}
		o.settle(ctx, idx, details, err)
	}

	p := o.progress()
	log.Info("generation_completed",
		zap.Int("total", p.Total),
		zap.Int("completed", p.Completed),
		zap.Int("failed", p.Failed),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// claimNext marks the first pending draft loading and checkpoints it.
func (o *Orchestrator) claimNext(ctx context.Context) (int, DetailInput, bool) {
	o.mu.Lock()
	idx := slices.IndexFunc(o.snap.TestCases, func(d domain.TestCaseDraft) bool {
		return d.Status == domain.StatusPending
	})
	if idx < 0 {
		o.mu.Unlock()
		return -1, DetailInput{}, false
	}
	o.snap.TestCases[idx].Status = domain.StatusLoading
	o.snap.TestCases[idx].ErrorMessage = ""
	in := o.detailInputLocked(idx)
	o.version++
	o.mu.Unlock()

	o.checkpoint(ctx)
	return idx, in, true
}

// release puts an interrupted draft back to pending.
func (o *Orchestrator) release(idx int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if idx < len(o.snap.TestCases) && o.snap.TestCases[idx].Status == domain.StatusLoading {
		o.snap.TestCases[idx].Status = domain.StatusPending
		o.version++
	}
}

// settle records the outcome of a detail call and checkpoints it.
func (o *Orchestrator) settle(ctx context.Context, idx int, details domain.Details, genErr error) {
	o.mu.Lock()
	if idx >= len(o.snap.TestCases) {
		o.mu.Unlock()
		return
	}
	d := &o.snap.TestCases[idx]
	if genErr != nil {
		d.Status = domain.StatusError
		d.ErrorMessage = string(apperrors.KindOf(genErr)) + ": " + apperrors.Message(genErr)
	} else {
		d.Status = domain.StatusCompleted
		d.Preconditions = details.Preconditions
		d.Steps = details.Steps
		d.ExpectedResult = details.ExpectedResult
		d.ErrorMessage = ""
		// a generated body for a stored test case has to be written back
		if o.snap.PersistedProjectID != "" {
			d.IsDirty = true
		}
	}
	status := d.Status
	o.version++
	o.mu.Unlock()

	metrics.RecordGenerationItem(string(status))
	o.checkpoint(ctx)
}

func (o *Orchestrator) detailInputLocked(idx int) DetailInput {
	titles := make([]string, len(o.snap.TestCases))
	for i, d := range o.snap.TestCases {
		titles[i] = d.Title
	}
	return DetailInput{
		Title:         o.snap.TestCases[idx].Title,
		OrderIndex:    idx,
		Titles:        titles,
		Documentation: o.snap.Documentation,
		ProjectName:   o.snap.ProjectName,
	}
}

// Next moves to the following draft unless the current one failed.
func (o *Orchestrator) Next() (int, error) {
	const op = "generation.next"
	o.mu.Lock()
	if err := o.editableLocked(op); err != nil {
		o.mu.Unlock()
		return 0, err
	}
	cur := o.snap.CurrentIndex
	switch {
	case o.snap.TestCases[cur].Status == domain.StatusError:
		o.mu.Unlock()
		return cur, apperrors.Wrap(apperrors.KindConflict, op, domain.ErrCurrentDraftFailed)
	case cur >= len(o.snap.TestCases)-1:
		o.mu.Unlock()
		return cur, apperrors.Wrap(apperrors.KindConflict, op, domain.ErrAtLastDraft)
	}
	o.snap.CurrentIndex++
	cur = o.snap.CurrentIndex
	o.version++
	o.mu.Unlock()

	o.scheduleSave()
	return cur, nil
}

// Previous moves back one draft.
func (o *Orchestrator) Previous() (int, error) {
	const op = "generation.previous"
	o.mu.Lock()
	if err := o.editableLocked(op); err != nil {
		o.mu.Unlock()
		return 0, err
	}
	if o.snap.CurrentIndex == 0 {
		o.mu.Unlock()
		return 0, apperrors.Wrap(apperrors.KindConflict, op, domain.ErrAtFirstDraft)
	}
	o.snap.CurrentIndex--
	cur := o.snap.CurrentIndex
	o.version++
	o.mu.Unlock()

	o.scheduleSave()
	return cur, nil
}

// Update merges a user edit into the draft at index and marks it dirty. The
// draft's status is left as it is.
func (o *Orchestrator) Update(index int, patch domain.DraftPatch) (domain.TestCaseDraft, error) {
	const op = "generation.update"
	if patch.Empty() {
		return domain.TestCaseDraft{}, apperrors.Wrap(apperrors.KindValidation, op, domain.ErrEmptyPatch)
	}
	if err := validation.Struct(op, patch); err != nil {
		return domain.TestCaseDraft{}, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.TestCaseDraft{}, apperrors.New(apperrors.KindValidation, op, "title is required")
	}
	o.mu.Lock()
	if err := o.editableLocked(op); err != nil {
		o.mu.Unlock()
		return domain.TestCaseDraft{}, err
	}
	if index < 0 || index >= len(o.snap.TestCases) {
		o.mu.Unlock()
		return domain.TestCaseDraft{}, apperrors.Wrap(apperrors.KindValidation, op, domain.ErrIndexOutOfRange)
	}
	patch.Apply(&o.snap.TestCases[index])
	d := o.snap.TestCases[index]
	o.version++
	o.mu.Unlock()

	o.scheduleSave()
	return d, nil
}

// Retry regenerates a failed draft. It is refused while the main loop runs.
func (o *Orchestrator) Retry(ctx context.Context, index int) (domain.TestCaseDraft, error) {
	const op = "generation.retry"
	o.mu.Lock()
	if err := o.editableLocked(op); err != nil {
		o.mu.Unlock()
		return domain.TestCaseDraft{}, err
	}
	if index < 0 || index >= len(o.snap.TestCases) {
		o.mu.Unlock()
		return domain.TestCaseDraft{}, apperrors.Wrap(apperrors.KindValidation, op, domain.ErrIndexOutOfRange)
	}
	if o.running {
		o.mu.Unlock()
		return domain.TestCaseDraft{}, apperrors.Wrap(apperrors.KindConflict, op, domain.ErrGenerationInProgress)
	}
	d := &o.snap.TestCases[index]
	if d.Status != domain.StatusError || !domain.CanTransition(d.Status, domain.StatusLoading) {
		o.mu.Unlock()
		return domain.TestCaseDraft{}, apperrors.Wrap(apperrors.KindConflict, op, domain.ErrInvalidTransition)
	}
	d.Status = domain.StatusLoading
	d.ErrorMessage = ""
	in := o.detailInputLocked(index)
	o.running = true
	o.version++
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.version++
		o.mu.Unlock()
	}()

	o.checkpoint(ctx)
	details, err := o.details.GenerateDetails(ctx, in)
	o.settle(ctx, index, details, err)
	logging.WithContext(ctx, o.logger).Info("draft_retried", zap.Int("index", index), zap.Bool("ok", err == nil))

	o.mu.Lock()
	out := o.snap.TestCases[index]
	o.mu.Unlock()
	return out, err
}

// Finish hands the drafts to the store of record once generation is done.
// A new project is created from every draft that has steps and an expected
// result; for an existing project only dirty drafts are sent. On success the
// snapshot is removed and later calls return the same result; on failure the
// drafts are kept so Finish can be retried.
func (o *Orchestrator) Finish(ctx context.Context) (*FinishResult, error) {
	const op = "generation.finish"
	o.finishMu.Lock()
	defer o.finishMu.Unlock()

	o.mu.Lock()
	if o.finished != nil {
		res := *o.finished
		o.mu.Unlock()
		return &res, nil
	}
	p := domain.ProgressOf(o.snap.TestCases)
	if o.running || !p.Done() {
		o.mu.Unlock()
		return nil, apperrors.Wrap(apperrors.KindConflict, op, domain.ErrGenerationInProgress)
	}
	snap := cloneSnapshot(o.snap)
	o.mu.Unlock()

	o.flush(ctx)
	log := logging.WithContext(ctx, o.logger)

	res := &FinishResult{ProjectID: snap.PersistedProjectID}
	if snap.PersistedProjectID == "" {
		created, err := o.gateway.CreateProjectFromDrafts(ctx, snap.ProjectName, snap.TestCases)
		if err != nil {
			log.Error("finish_failed", zap.Error(err), zap.String("error_kind", string(apperrors.KindOf(err))))
			return nil, err
		}
		res.ProjectID = created.ID
		res.Created = true
		res.TestCaseCount = len(created.TestCases)
		res.Excluded = len(snap.TestCases) - len(created.TestCases)
		o.adoptPersisted(created)
	} else {
		bulk, err := o.gateway.BulkUpdateFromDrafts(ctx, snap.PersistedProjectID, snap.TestCases)
		if err != nil {
			log.Error("finish_failed", zap.Error(err), zap.String("error_kind", string(apperrors.KindOf(err))))
			return nil, err
		}
		res.BulkUpdate = bulk
		res.TestCaseCount = len(snap.TestCases)
		if bulk.Partial() {
			log.Warn("finish_partial_failure",
				zap.Int("success_count", bulk.SuccessCount),
				zap.Int("fail_count", bulk.FailCount))
		}
	}

	o.mu.Lock()
	o.finished = res
	o.stopTimerLocked()
	o.version++
	o.mu.Unlock()

	if err := o.store.Remove(ctx, o.key); err != nil {
		metrics.RecordDraftWriteFailure()
		log.Warn("draft_remove_error", zap.Error(err))
		// keep a snapshot that points at the persisted project so a later run
		// updates it instead of creating another one
		o.write(ctx, o.snapshotCopy())
	}
	log.Info("generation_finished",
		zap.String("project_id", res.ProjectID),
		zap.Bool("created", res.Created),
		zap.Int("test_case_count", res.TestCaseCount),
		zap.Int("excluded", res.Excluded))

	out := *res
	return &out, nil
}

// adoptPersisted switches drafts over to the ids the store of record assigned,
// matching them in order the same way the gateway selected them.
func (o *Orchestrator) adoptPersisted(created *projdomain.ProjectWithTestCases) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snap.PersistedProjectID = created.ID
	j := 0
	for i := range o.snap.TestCases {
		d := &o.snap.TestCases[i]
		if !d.HasBody() || j >= len(created.TestCases) {
			continue
		}
		d.ID = created.TestCases[j].ID
		d.IsDirty = false
		j++
	}
}

// State returns a copy of the workflow.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := State{
		Key:      o.key,
		Origin:   o.origin,
		Snapshot: cloneSnapshot(o.snap),
		Progress: domain.ProgressOf(o.snap.TestCases),
		Running:  o.running,
		Version:  o.version,
	}
	if o.finished != nil {
		f := *o.finished
		st.Finished = &f
	}
	return st
}

// Version changes whenever the workflow does.
func (o *Orchestrator) Version() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.version
}

// Close writes any pending edit.
func (o *Orchestrator) Close(ctx context.Context) {
	o.flush(ctx)
}

func (o *Orchestrator) progress() domain.Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return domain.ProgressOf(o.snap.TestCases)
}

func (o *Orchestrator) editableLocked(op string) error {
	if o.finished != nil {
		return apperrors.Wrap(apperrors.KindConflict, op, domain.ErrWorkflowFinished)
	}
	if len(o.snap.TestCases) == 0 {
		return apperrors.Wrap(apperrors.KindValidation, op, domain.ErrNoDrafts)
	}
	return nil
}

func (o *Orchestrator) scheduleSave() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished != nil {
		return
	}
	if o.saveTimer != nil {
		o.saveTimer.Reset(o.saveDelay)
		return
	}
	o.saveTimer = time.AfterFunc(o.saveDelay, func() {
		o.mu.Lock()
		o.saveTimer = nil
		o.mu.Unlock()
		o.checkpoint(context.Background())
	})
}

// flush writes a pending debounced save now.
func (o *Orchestrator) flush(ctx context.Context) {
	o.mu.Lock()
	pending := o.saveTimer != nil
	o.stopTimerLocked()
	o.mu.Unlock()
	if pending {
		o.checkpoint(ctx)
	}
}

func (o *Orchestrator) stopTimerLocked() {
	if o.saveTimer != nil {
		o.saveTimer.Stop()
		o.saveTimer = nil
	}
}

// checkpoint writes the current state. Writes are applied in the order the
// state was copied, and never after a successful Finish.
func (o *Orchestrator) checkpoint(ctx context.Context) {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	o.mu.Lock()
	if o.finished != nil {
		o.mu.Unlock()
		return
	}
	snap := cloneSnapshot(o.snap)
	o.mu.Unlock()

	o.writeLocked(ctx, snap)
}

func (o *Orchestrator) write(ctx context.Context, snap domain.DraftSnapshot) {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()
	o.writeLocked(ctx, snap)
}

// writeLocked is best effort: the in-memory state stays authoritative.
func (o *Orchestrator) writeLocked(ctx context.Context, snap domain.DraftSnapshot) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()

	snap.LastSaved = time.Now().UTC()
	if err := o.store.Set(wctx, o.key, &snap); err != nil {
		metrics.RecordDraftWriteFailure()
		logging.WithContext(ctx, o.logger).Warn("autosave_error", zap.Error(err))
		return
	}
	o.mu.Lock()
	o.snap.LastSaved = snap.LastSaved
	o.mu.Unlock()
}

func (o *Orchestrator) snapshotCopy() domain.DraftSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return cloneSnapshot(o.snap)
}

func cloneSnapshot(s domain.DraftSnapshot) domain.DraftSnapshot {
	s.TestCases = slices.Clone(s.TestCases)
	return s
}

func sortDrafts(drafts []domain.TestCaseDraft) {
	slices.SortStableFunc(drafts, func(a, b domain.TestCaseDraft) int { return a.OrderIndex - b.OrderIndex })
}

func draftsFromTitles(titles []string) []domain.TestCaseDraft {
	drafts := make([]domain.TestCaseDraft, 0, len(titles))
	for _, t := range titles {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		drafts = append(drafts, domain.TestCaseDraft{
			ID:         tempIDPrefix + uuid.NewString(),
			Title:      t,
			Status:     domain.StatusPending,
			OrderIndex: len(drafts),
		})
	}
	return drafts
}

func draftsFromProject(tcs []projdomain.TestCase) []domain.TestCaseDraft {
	drafts := make([]domain.TestCaseDraft, len(tcs))
	for i, tc := range tcs {
		status := domain.StatusPending
		if tc.Steps != "" && tc.ExpectedResult != "" {
			status = domain.StatusCompleted
		}
		drafts[i] = domain.TestCaseDraft{
			ID:             tc.ID,
			Title:          tc.Title,
			Status:         status,
			Preconditions:  tc.Preconditions,
			Steps:          tc.Steps,
			ExpectedResult: tc.ExpectedResult,
			OrderIndex:     tc.OrderIndex,
		}
	}
	sortDrafts(drafts)
	for i := range drafts {
		drafts[i].OrderIndex = i
	}
	return drafts
}
