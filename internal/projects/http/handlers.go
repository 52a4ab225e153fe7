package http

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/casegen/casegen-backend/internal/api/http/respond"
	"github.com/casegen/casegen-backend/internal/export/csv"
	"github.com/casegen/casegen-backend/internal/projects/domain"
)

type createReq struct {
	Name      string               `json:"name"`
	TestCases []domain.NewTestCase `json:"testCases"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	if len(req.TestCases) == 0 {
		p, err := h.svc.CreateProject(c.Request.Context(), req.Name)
		if err != nil {
			respond.Error(c, h.logger, err)
			return
		}
		respond.OK(c, http.StatusCreated, gin.H{"project": p})
		return
	}

	p, err := h.svc.CreateProjectWithTestCases(c.Request.Context(), req.Name, req.TestCases)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"project": p})
}

func (h *Handler) list(c *gin.Context) {
	params := domain.ListParams{
		Page:  queryInt(c, "page"),
		Limit: queryInt(c, "limit"),
	}
	page, err := h.svc.ListProjects(c.Request.Context(), params)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{
		"projects": page.Projects,
		"page":     page.Page,
		"limit":    page.Limit,
		"total":    page.Total,
	})
}

func (h *Handler) get(c *gin.Context) {
	p, err := h.svc.GetProjectWithTestCases(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"project": p})
}

type renameReq struct {
	Name string `json:"name"`
}

func (h *Handler) rename(c *gin.Context) {
	var req renameReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	p, err := h.svc.RenameProject(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"project": p})
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, nil)
}

type bulkUpdateReq struct {
	TestCases []domain.TestCaseUpdate `json:"testCases"`
}

// bulkUpdate answers 207 when only some items were updated; the body carries
// the per-item tally either way.
func (h *Handler) bulkUpdate(c *gin.Context) {
	var req bulkUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	if len(req.TestCases) == 0 {
		respond.BadRequest(c, "testCases must not be empty")
		return
	}

	res, err := h.svc.BulkUpdateTestCases(c.Request.Context(), c.Param("id"), req.TestCases)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if res.Partial() {
		status = http.StatusMultiStatus
	}
	respond.OK(c, status, gin.H{"result": res})
}

func (h *Handler) createTestCase(c *gin.Context) {
	var req domain.NewTestCase
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}

	tc, err := h.svc.CreateTestCase(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"testCase": tc})
}

func (h *Handler) updateTestCase(c *gin.Context) {
	var req domain.TestCaseUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "invalid body")
		return
	}
	req.ID = c.Param("tcid")

	tc, err := h.svc.UpdateTestCase(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"testCase": tc})
}

func (h *Handler) deleteTestCase(c *gin.Context) {
	if err := h.svc.DeleteTestCase(c.Request.Context(), c.Param("id"), c.Param("tcid")); err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, nil)
}

func (h *Handler) export(c *gin.Context) {
	out, err := h.svc.ExportProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, csv.ContentType, []byte(out.Content))
}

// queryInt returns 0 for a missing or malformed value; ListParams fills in
// defaults.
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}
