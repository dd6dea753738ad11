package detector

import (
	"errors"
	"net/http"

	response "backend/api/handlers/common"
	"backend/internal/auth"
	"backend/internal/detector"

	"github.com/gin-gonic/gin"
)

// Handler 检测器配置 API 处理器
type Handler struct {
	registry *detector.Registry
}

// NewHandler 创建处理器
func NewHandler(registry *detector.Registry) *Handler {
	return &Handler{registry: registry}
}

// ListConfigs 获取全部检测器配置
// @Summary 获取检测器配置列表
// @Tags Detector
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.APIResponse{data=[]detector.DetectorConfig}
// @Router /api/detectors [get]
func (h *Handler) ListConfigs(c *gin.Context) {
	configs, err := h.registry.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, configs)
}

// GetConfig 获取单个类别的检测器配置
// @Summary 获取检测器配置
// @Tags Detector
// @Security BearerAuth
// @Produce json
// @Param category path string true "检测类别"
// @Success 200 {object} response.APIResponse{data=detector.DetectorConfig}
// @Router /api/detectors/{category} [get]
func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.registry.GetConfig(c.Request.Context(), c.Param("category"))
	if err != nil {
		if errors.Is(err, detector.ErrUnknownCategory) || errors.Is(err, detector.ErrConfigNotFound) {
			response.Error(c, http.StatusNotFound, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, cfg)
}

// UpsertConfig 创建或更新检测器配置（仅管理员）
// @Summary 更新检测器配置
// @Tags Detector
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body detector.UpsertConfigRequest true "配置内容"
// @Success 200 {object} response.APIResponse{data=detector.DetectorConfig}
// @Router /api/detectors [put]
func (h *Handler) UpsertConfig(c *gin.Context) {
	var req detector.UpsertConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	actorID := auth.MustGetUserID(c)
	cfg, err := h.registry.UpsertConfig(c.Request.Context(), &req, actorID)
	if err != nil {
		switch {
		case errors.Is(err, detector.ErrInsufficientAuthority):
			response.ErrorWithCode(c, http.StatusForbidden, "INSUFFICIENT_AUTHORITY", "需要管理员权限")
		case errors.Is(err, detector.ErrUnknownCategory), errors.Is(err, detector.ErrInvalidPattern):
			response.Error(c, http.StatusBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.Success(c, cfg)
}
