package dmca

import (
	"errors"
	"net/http"

	response "backend/api/handlers/common"
	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/dmca"

	"github.com/gin-gonic/gin"
)

// Handler DMCA 投诉 API 处理器
type Handler struct {
	service *dmca.Service
}

// NewHandler 创建处理器
func NewHandler(service *dmca.Service) *Handler {
	return &Handler{service: service}
}

// Submit 提交 DMCA 下架投诉（公开入口）
// @Summary 提交 DMCA 投诉
// @Tags DMCA
// @Accept json
// @Produce json
// @Param request body dmca.SubmitRequest true "投诉内容"
// @Success 201 {object} response.APIResponse{data=dmca.DMCATakedown}
// @Router /api/dmca/takedowns [post]
func (h *Handler) Submit(c *gin.Context) {
	var req dmca.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	takedown, err := h.service.Submit(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, dmca.ErrValidation) {
			response.Error(c, http.StatusBadRequest, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Created(c, takedown)
}

// List 查询投诉列表
// @Summary 查询 DMCA 投诉列表
// @Tags DMCA
// @Security BearerAuth
// @Produce json
// @Param status query string false "状态 PENDING/APPROVED/REJECTED"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Router /api/dmca/takedowns [get]
func (h *Handler) List(c *gin.Context) {
	page := common.DefaultPagination()
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.service.List(c.Request.Context(), c.Query("status"), page)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.List(c, items, page.Page, page.PageSize, total)
}

// Get 查询投诉详情
// @Summary 查询 DMCA 投诉详情
// @Tags DMCA
// @Security BearerAuth
// @Produce json
// @Param id path string true "投诉ID"
// @Success 200 {object} response.APIResponse{data=dmca.DMCATakedown}
// @Router /api/dmca/takedowns/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	takedown, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, dmca.ErrTakedownNotFound) {
			response.Error(c, http.StatusNotFound, "投诉不存在")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, takedown)
}

// Review 审查投诉（仅 DMCA 代理人）
// @Summary 审查 DMCA 投诉
// @Tags DMCA
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "投诉ID"
// @Param request body dmca.ReviewRequest true "审查决定"
// @Success 200 {object} response.APIResponse{data=dmca.DMCATakedown}
// @Router /api/dmca/takedowns/{id}/review [post]
func (h *Handler) Review(c *gin.Context) {
	var req dmca.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	actorID := auth.MustGetUserID(c)
	takedown, err := h.service.Review(c.Request.Context(), c.Param("id"), &req, actorID)
	if err != nil {
		switch {
		case errors.Is(err, dmca.ErrNotAgent):
			response.ErrorWithCode(c, http.StatusForbidden, "NOT_DMCA_AGENT", "需要 DMCA 代理资格")
		case errors.Is(err, dmca.ErrTakedownNotFound):
			response.Error(c, http.StatusNotFound, "投诉不存在")
		case errors.Is(err, dmca.ErrInvalidTransition):
			response.ErrorWithCode(c, http.StatusConflict, "ALREADY_REVIEWED", "投诉已有终态")
		case errors.Is(err, dmca.ErrUnresolvableLocator):
			response.ErrorWithCode(c, http.StatusUnprocessableEntity, "UNRESOLVABLE_LOCATOR", err.Error())
		case errors.Is(err, dmca.ErrValidation):
			response.Error(c, http.StatusBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.Success(c, takedown)
}

// GrantAgent 授予 DMCA 代理资格（仅管理员）
// @Summary 授予 DMCA 代理资格
// @Tags DMCA
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dmca.GrantAgentRequest true "代理授予"
// @Success 200 {object} response.APIResponse{data=dmca.DMCAAgent}
// @Router /api/dmca/agents [post]
func (h *Handler) GrantAgent(c *gin.Context) {
	var req dmca.GrantAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	actorID := auth.MustGetUserID(c)
	agent, err := h.service.GrantAgent(c.Request.Context(), &req, actorID)
	if err != nil {
		if errors.Is(err, dmca.ErrNotAgent) || errors.Is(err, dmca.ErrValidation) {
			response.ErrorWithCode(c, http.StatusForbidden, "INSUFFICIENT_AUTHORITY", err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, agent)
}
