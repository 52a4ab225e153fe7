package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/casegen/casegen-backend/internal/api/http/respond"
	"github.com/casegen/casegen-backend/internal/generation/domain"
	"github.com/casegen/casegen-backend/internal/generation/service"
)

type titlesReq struct {
	Documentation string `json:"documentation"`
	ProjectName   string `json:"projectName"`
}

// GenerateTitles returns test case titles for a piece of documentation
func (h *Handler) GenerateTitles(c *gin.Context) {
	var req titlesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}

	titles, err := h.titles.GenerateTitles(c.Request.Context(), req.Documentation, req.ProjectName)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"titles": titles})
}

type detailsReq struct {
	Title         string   `json:"title"`
	Titles        []string `json:"titles"`
	Index         int      `json:"testCaseIndex"`
	Documentation string   `json:"documentation"`
	ProjectName   string   `json:"projectName"`
}

// GenerateDetails returns the body of one test case
func (h *Handler) GenerateDetails(c *gin.Context) {
	var req detailsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}

	details, err := h.details.GenerateDetails(c.Request.Context(), service.DetailInput{
		Title:         req.Title,
		OrderIndex:    req.Index,
		Titles:        req.Titles,
		Documentation: req.Documentation,
		ProjectName:   req.ProjectName,
	})
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"testCase": details})
}

// StartWorkflow opens or resumes a workflow and starts generating
func (h *Handler) StartWorkflow(c *gin.Context) {
	var req service.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}

	orch, err := h.workflows.Start(c.Request.Context(), req)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"workflow": orch.State()})
}

// GetWorkflow returns the current drafts and progress
func (h *Handler) GetWorkflow(c *gin.Context) {
	orch, ok := h.lookup(c)
	if !ok {
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"workflow": orch.State()})
}

// Next moves to the following draft
func (h *Handler) Next(c *gin.Context) {
	orch, ok := h.lookup(c)
	if !ok {
		return
	}
	idx, err := orch.Next()
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"currentIndex": idx})
}

// Previous moves back one draft
func (h *Handler) Previous(c *gin.Context) {
	orch, ok := h.lookup(c)
	if !ok {
		return
	}
	idx, err := orch.Previous()
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"currentIndex": idx})
}

// UpdateDraft applies a user edit to one draft
func (h *Handler) UpdateDraft(c *gin.Context) {
	orch, ok := h.lookup(c)
	if !ok {
		return
	}
	idx, ok := draftIndex(c)
	if !ok {
		return
	}
	var patch domain.DraftPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.BadRequest(c, "invalid request body")
		return
	}

	d, err := orch.Update(idx, patch)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"draft": d})
}

// RetryDraft regenerates a failed draft. A generation failure is reported on
// the returned draft, like any other per-draft error.
func (h *Handler) RetryDraft(c *gin.Context) {
	orch, ok := h.lookup(c)
	if !ok {
		return
	}
	idx, ok := draftIndex(c)
	if !ok {
		return
	}

	d, err := orch.Retry(c.Request.Context(), idx)
	if err != nil && d.Status != domain.StatusError {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"draft": d})
}

// Finish saves the drafts to the store of record
func (h *Handler) Finish(c *gin.Context) {
	orch, ok := h.lookup(c)
	if !ok {
		return
	}
	res, err := orch.Finish(c.Request.Context())
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"result": res})
}

// Abandon stops a workflow and deletes its drafts
func (h *Handler) Abandon(c *gin.Context) {
	if err := h.workflows.Abandon(c.Request.Context(), c.Param("key")); err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, nil)
}

func (h *Handler) lookup(c *gin.Context) (*service.Orchestrator, bool) {
	orch, err := h.workflows.Get(c.Param("key"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return nil, false
	}
	return orch, true
}

func draftIndex(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		respond.BadRequest(c, "draft index must be a non-negative integer")
		return 0, false
	}
	return idx, true
}
