package http

import "github.com/gin-gonic/gin"

// RegisterAI attaches the single-shot generation endpoints.
func (h *Handler) RegisterAI(rg *gin.RouterGroup) {
	rg.POST("/titles", h.GenerateTitles)
	rg.POST("/details", h.GenerateDetails)
}

// RegisterWorkflows attaches the orchestrated generation endpoints.
func (h *Handler) RegisterWorkflows(rg *gin.RouterGroup) {
	rg.POST("", h.StartWorkflow)
	rg.GET("/:key", h.GetWorkflow)
	rg.GET("/:key/events", h.StreamWorkflowEvents)
	rg.POST("/:key/next", h.Next)
	rg.POST("/:key/previous", h.Previous)
	rg.PATCH("/:key/drafts/:index", h.UpdateDraft)
	rg.POST("/:key/drafts/:index/retry", h.RetryDraft)
	rg.POST("/:key/finish", h.Finish)
	rg.DELETE("/:key", h.Abandon)
}
