package audit

import (
	"net/http"
	"time"

	response "backend/api/handlers/common"
	auditpkg "backend/internal/audit"
	"backend/internal/common"

	"github.com/gin-gonic/gin"
)

// Handler 审计日志 API 处理器
type Handler struct {
	trail *auditpkg.Trail
}

// NewHandler 创建处理器
func NewHandler(trail *auditpkg.Trail) *Handler {
	return &Handler{trail: trail}
}

// Query 查询审计日志
// @Summary 查询审计日志
// @Tags Audit
// @Security BearerAuth
// @Produce json
// @Param actor_id query string false "操作者ID"
// @Param action query string false "操作类型"
// @Param resource query string false "资源类型"
// @Param from query string false "起始时间 RFC3339"
// @Param to query string false "截止时间 RFC3339"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Router /api/audit/entries [get]
func (h *Handler) Query(c *gin.Context) {
	page := common.DefaultPagination()
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	filter := auditpkg.Filter{
		ActorID:  c.Query("actor_id"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}
	if raw := c.Query("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "from 时间格式无效")
			return
		}
		filter.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "to 时间格式无效")
			return
		}
		filter.To = &ts
	}

	entries, total, err := h.trail.Query(c.Request.Context(), filter, page)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.List(c, entries, page.Page, page.PageSize, total)
}
