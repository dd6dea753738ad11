package review

import (
	"errors"
	"net/http"

	response "backend/api/handlers/common"
	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/review"

	"github.com/gin-gonic/gin"
)

// Handler 人工审核 API 处理器
type Handler struct {
	service *review.Service
}

// NewHandler 创建处理器
func NewHandler(service *review.Service) *Handler {
	return &Handler{service: service}
}

// ============================================================================
// 举报入口
// ============================================================================

// CreateReport 提交用户举报
// @Summary 提交用户举报
// @Tags Review
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body review.CreateReportRequest true "举报内容"
// @Success 201 {object} response.APIResponse{data=review.Report}
// @Router /api/review/reports [post]
func (h *Handler) CreateReport(c *gin.Context) {
	var req review.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	reporterID := auth.MustGetUserID(c)
	report, err := h.service.CreateReport(c.Request.Context(), &req, reporterID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Created(c, report)
}

// ============================================================================
// 审核队列
// ============================================================================

// ListQueue 获取待审核队列（标记与举报合并，先进先出）
// @Summary 获取待审核队列
// @Tags Review
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Router /api/review/queue [get]
func (h *Handler) ListQueue(c *gin.Context) {
	page := common.DefaultPagination()
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.service.ListPending(c.Request.Context(), page)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.List(c, items, page.Page, page.PageSize, total)
}

// Decide 对标记或举报做出裁决
// @Summary 裁决标记或举报
// @Tags Review
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body review.DecideRequest true "裁决内容"
// @Success 200 {object} response.APIResponse{data=review.ModerationAction}
// @Router /api/review/decide [post]
func (h *Handler) Decide(c *gin.Context) {
	var req review.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	actorID := auth.MustGetUserID(c)
	action, err := h.service.Decide(c.Request.Context(), &req, actorID)
	if err != nil {
		switch {
		case errors.Is(err, review.ErrNoActiveRole):
			response.ErrorWithCode(c, http.StatusForbidden, "NO_ACTIVE_ROLE", "没有有效的审核角色")
		case errors.Is(err, review.ErrInsufficientAuthority):
			response.ErrorWithCode(c, http.StatusForbidden, "INSUFFICIENT_AUTHORITY", "审核权限不足")
		case errors.Is(err, review.ErrTargetNotFound):
			response.ErrorWithCode(c, http.StatusNotFound, "TARGET_NOT_FOUND", "裁决目标不存在")
		case errors.Is(err, review.ErrAlreadyDecided):
			response.ErrorWithCode(c, http.StatusConflict, "ALREADY_DECIDED", "目标已被裁决")
		case errors.Is(err, review.ErrValidation):
			response.Error(c, http.StatusBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.Success(c, action)
}

// ListActions 查询裁决历史
// @Summary 查询裁决历史
// @Tags Review
// @Security BearerAuth
// @Produce json
// @Param target_kind query string false "目标类型 FLAG/REPORT"
// @Param target_id query string false "目标ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Router /api/review/actions [get]
func (h *Handler) ListActions(c *gin.Context) {
	page := common.DefaultPagination()
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	actions, total, err := h.service.ListActions(c.Request.Context(),
		c.Query("target_kind"), c.Query("target_id"), page)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.List(c, actions, page.Page, page.PageSize, total)
}

// ============================================================================
// 审核角色管理
// ============================================================================

// GrantRole 授予或调整审核角色（仅管理员）
// @Summary 授予审核角色
// @Tags Review
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body review.GrantRoleRequest true "角色授予"
// @Success 200 {object} response.APIResponse{data=review.ModeratorRole}
// @Router /api/review/roles [post]
func (h *Handler) GrantRole(c *gin.Context) {
	var req review.GrantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	actorID := auth.MustGetUserID(c)
	role, err := h.service.GrantRole(c.Request.Context(), &req, actorID)
	if err != nil {
		if errors.Is(err, review.ErrInsufficientAuthority) {
			response.ErrorWithCode(c, http.StatusForbidden, "INSUFFICIENT_AUTHORITY", "需要管理员权限")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, role)
}

// GetMyRole 查询当前账号的审核角色
// @Summary 查询当前审核角色
// @Tags Review
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.APIResponse
// @Router /api/review/roles/me [get]
func (h *Handler) GetMyRole(c *gin.Context) {
	userID := auth.MustGetUserID(c)
	role, err := h.service.ActiveRole(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, review.ErrNoActiveRole) {
			response.Success(c, gin.H{"role": nil})
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, role)
}
