package domain

import "errors"

var (
	ErrDraftNotFound        = errors.New("draft snapshot not found")
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrWorkflowActive       = errors.New("a workflow is already active for this project")
	ErrWorkflowFinished     = errors.New("workflow is already finished")
	ErrIndexOutOfRange      = errors.New("draft index out of range")
	ErrGenerationInProgress = errors.New("generation is still in progress")
	ErrInvalidTransition    = errors.New("invalid draft status transition")
	ErrNoDrafts             = errors.New("no drafts to work on")
	ErrEmptyPatch           = errors.New("no fields to update")
	ErrCurrentDraftFailed   = errors.New("current draft failed; retry or edit it before moving on")
	ErrAtFirstDraft         = errors.New("already at the first draft")
	ErrAtLastDraft          = errors.New("already at the last draft")
)
