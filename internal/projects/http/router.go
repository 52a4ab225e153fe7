package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/:id", h.get)
	rg.PATCH("/:id", h.rename)
	rg.DELETE("/:id", h.delete)

	rg.PUT("/:id/testcases", h.bulkUpdate)
	rg.POST("/:id/testcases", h.createTestCase)
	rg.PUT("/:id/testcases/:tcid", h.updateTestCase)
	rg.DELETE("/:id/testcases/:tcid", h.deleteTestCase)

	rg.GET("/:id/export", h.export)
}
