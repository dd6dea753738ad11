package moderation

import (
	"errors"
	"net/http"

	response "backend/api/handlers/common"
	"backend/internal/auth"
	"backend/internal/common"
	"backend/internal/flags"
	"backend/internal/infra/queue"
	"backend/internal/worker/tasks"

	"github.com/gin-gonic/gin"
)

// Handler 内容扫描与标记 API 处理器
type Handler struct {
	pipeline *flags.Pipeline
	flagSvc  *flags.Service
	queue    queue.Client
}

// NewHandler 创建处理器
func NewHandler(pipeline *flags.Pipeline, flagSvc *flags.Service, queueClient queue.Client) *Handler {
	return &Handler{pipeline: pipeline, flagSvc: flagSvc, queue: queueClient}
}

// ============================================================================
// 内容扫描
// ============================================================================

// ScanContent 同步扫描内容
// @Summary 同步扫描内容
// @Tags Moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body flags.ScanRequest true "待扫描内容"
// @Success 200 {object} response.APIResponse{data=flags.ScanResult}
// @Router /api/moderation/scan [post]
func (h *Handler) ScanContent(c *gin.Context) {
	var req flags.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.pipeline.ScanContent(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, result)
}

// ScanContentAsync 异步扫描内容
// 发布路径调用这个端点，入队即返回，扫描结果落在标记表里。
// @Summary 异步扫描内容
// @Tags Moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body flags.ScanRequest true "待扫描内容"
// @Success 202 {object} response.APIResponse
// @Router /api/moderation/scan/async [post]
func (h *Handler) ScanContentAsync(c *gin.Context) {
	var req flags.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.queue.EnqueueScanContent(c.Request.Context(), tasks.ScanContentPayload{
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Payload:     req.Payload,
	}); err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusAccepted, response.APIResponse{
		Success: true,
		Message: "已加入扫描队列",
	})
}

// ============================================================================
// 自动标记
// ============================================================================

// GetFlag 获取标记详情
// @Summary 获取标记详情
// @Tags Moderation
// @Security BearerAuth
// @Produce json
// @Param id path string true "标记ID"
// @Success 200 {object} response.APIResponse{data=flags.AutomatedFlag}
// @Router /api/moderation/flags/{id} [get]
func (h *Handler) GetFlag(c *gin.Context) {
	flag, err := h.flagSvc.GetFlag(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, flags.ErrFlagNotFound) {
			response.Error(c, http.StatusNotFound, "标记不存在")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, flag)
}

// ListUnreviewedFlags 获取待复核标记列表
// @Summary 获取待复核标记列表
// @Tags Moderation
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} response.ListResponse
// @Router /api/moderation/flags [get]
func (h *Handler) ListUnreviewedFlags(c *gin.Context) {
	page := common.DefaultPagination()
	if err := c.ShouldBindQuery(&page); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.flagSvc.ListUnreviewed(c.Request.Context(), page)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.List(c, items, page.Page, page.PageSize, total)
}

// ============================================================================
// NSFW 标记
// ============================================================================

// MarkNSFW 人工标记或清除 NSFW
// @Summary 人工标记 NSFW
// @Tags Moderation
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body flags.MarkNSFWRequest true "标记内容"
// @Success 200 {object} response.APIResponse{data=flags.NSFWFlag}
// @Router /api/moderation/nsfw [post]
func (h *Handler) MarkNSFW(c *gin.Context) {
	var req flags.MarkNSFWRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	actorID := auth.MustGetUserID(c)
	flag, err := h.flagSvc.MarkNSFW(c.Request.Context(), &req, actorID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, flag)
}

// GetNSFWStatus 查询内容当前 NSFW 状态
// @Summary 查询 NSFW 状态
// @Tags Moderation
// @Security BearerAuth
// @Produce json
// @Param content_type query string true "内容类型"
// @Param content_id query string true "内容ID"
// @Success 200 {object} response.APIResponse
// @Router /api/moderation/nsfw/status [get]
func (h *Handler) GetNSFWStatus(c *gin.Context) {
	contentType := c.Query("content_type")
	contentID := c.Query("content_id")
	if contentType == "" || contentID == "" {
		response.Error(c, http.StatusBadRequest, "content_type 和 content_id 必填")
		return
	}

	isNSFW, err := h.flagSvc.EffectiveNSFW(c.Request.Context(), contentType, contentID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	history, err := h.flagSvc.ListNSFWFlags(c.Request.Context(), contentType, contentID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{
		"content_type": contentType,
		"content_id":   contentID,
		"is_nsfw":      isNSFW,
		"flags":        history,
	})
}
