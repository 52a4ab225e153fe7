package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/casegen/casegen-backend/internal/apperrors"
	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/logging"
)

// StartRequest opens a workflow. Key resumes an earlier new-project workflow;
// ProjectID works on a persisted project and doubles as the key.
type StartRequest struct {
	Key           string   `json:"key,omitempty"`
	ProjectID     string   `json:"projectId,omitempty"`
	ProjectName   string   `json:"projectName,omitempty"`
	Documentation string   `json:"documentation,omitempty"`
	Titles        []string `json:"titles,omitempty"`
}

type workflow struct {
	orch   *Orchestrator
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry keeps at most one orchestrator per key and runs its generation
// loop in the background.
type Registry struct {
	deps   Deps
	logger *zap.Logger

	mu        sync.Mutex
	workflows map[string]*workflow
}

// NewRegistry creates a registry whose orchestrators share deps.
func NewRegistry(deps Deps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Logger = logger
	return &Registry{deps: deps, logger: logger, workflows: make(map[string]*workflow)}
}

// Start loads or creates the draft set for the request and starts generating
// in the background. A key whose workflow is still open is refused; a
// finished one is replaced.
func (r *Registry) Start(ctx context.Context, req StartRequest) (*Orchestrator, error) {
	const op = "generation.workflow_start"
	key := req.Key
	if key == "" {
		key = req.ProjectID
	}
	if key == "" {
		key = uuid.NewString()
	}

	r.mu.Lock()
	if wf, ok := r.workflows[key]; ok {
		if wf.orch.State().Finished == nil {
			r.mu.Unlock()
			return nil, apperrors.Wrap(apperrors.KindConflict, op, domain.ErrWorkflowActive)
		}
		delete(r.workflows, key)
	}
	// reserve the key while Start talks to the store and the model
	orch := NewOrchestrator(key, r.deps)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	wf := &workflow{orch: orch, cancel: cancel, done: make(chan struct{})}
	r.workflows[key] = wf
	r.mu.Unlock()

	if _, err := orch.Start(ctx, StartInput{
		ProjectID:     req.ProjectID,
		ProjectName:   req.ProjectName,
		Documentation: req.Documentation,
		Titles:        req.Titles,
	}); err != nil {
		cancel()
		r.mu.Lock()
		if r.workflows[key] == wf {
			delete(r.workflows, key)
		}
		r.mu.Unlock()
		close(wf.done)
		return nil, err
	}

	go func() {
		defer close(wf.done)
		if err := orch.Run(runCtx); err != nil && runCtx.Err() == nil {
			logging.WithContext(runCtx, r.logger).Error("generation_run_failed", zap.String("workflow_key", key), zap.Error(err))
		}
	}()
	return orch, nil
}

// Get returns the open workflow for key.
func (r *Registry) Get(key string) (*Orchestrator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.workflows[key]
	if !ok {
		return nil, apperrors.Wrap(apperrors.KindNotFound, "generation.workflow_get", domain.ErrWorkflowNotFound)
	}
	return wf.orch, nil
}

// Abandon stops generation for key and deletes its snapshot. It also works
// for a snapshot left behind by an earlier process.
func (r *Registry) Abandon(ctx context.Context, key string) error {
	const op = "generation.workflow_abandon"
	r.mu.Lock()
	wf, ok := r.workflows[key]
	delete(r.workflows, key)
	r.mu.Unlock()

	if ok {
		r.stop(ctx, wf)
	}
	if err := r.deps.Store.Remove(ctx, key); err != nil {
		return apperrors.Wrap(apperrors.KindPersistence, op, err)
	}
	logging.WithContext(ctx, r.logger).Info("draft_cleared", zap.String("workflow_key", key), zap.Bool("was_open", ok))
	return nil
}

// Wait blocks until the generation loop for key has returned.
func (r *Registry) Wait(ctx context.Context, key string) error {
	r.mu.Lock()
	wf, ok := r.workflows[key]
	r.mu.Unlock()
	if !ok {
		return apperrors.Wrap(apperrors.KindNotFound, "generation.workflow_wait", domain.ErrWorkflowNotFound)
	}
	select {
	case <-wf.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every running loop and flushes pending edits. Snapshots
// stay in the store so the workflows can be resumed.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	wfs := make([]*workflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		wfs = append(wfs, wf)
	}
	r.workflows = make(map[string]*workflow)
	r.mu.Unlock()

	for _, wf := range wfs {
		r.stop(ctx, wf)
	}
}

func (r *Registry) stop(ctx context.Context, wf *workflow) {
	wf.cancel()
	select {
	case <-wf.done:
	case <-ctx.Done():
	}
	wf.orch.Close(ctx)
}
