package enforcement

import (
	"errors"
	"net/http"
	"strconv"

	response "backend/api/handlers/common"
	"backend/internal/auth"
	"backend/internal/enforcement"

	"github.com/gin-gonic/gin"
)

// Handler 账号处置 API 处理器
type Handler struct {
	service *enforcement.Service
}

// NewHandler 创建处理器
func NewHandler(service *enforcement.Service) *Handler {
	return &Handler{service: service}
}

// GetAccountStatus 查询账号处置状态
// 封禁与影子封禁两条轴线一起返回。
// @Summary 查询账号处置状态
// @Tags Enforcement
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "账号ID"
// @Success 200 {object} response.APIResponse{data=enforcement.AccountStatus}
// @Router /api/enforcement/accounts/{user_id} [get]
func (h *Handler) GetAccountStatus(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, status)
}

// LiftSuspension 解除账号封禁
// @Summary 解除账号封禁
// @Tags Enforcement
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "账号ID"
// @Success 200 {object} response.APIResponse
// @Router /api/enforcement/accounts/{user_id}/suspension [delete]
func (h *Handler) LiftSuspension(c *gin.Context) {
	actorID := auth.MustGetUserID(c)
	if err := h.service.LiftSuspension(c.Request.Context(), c.Param("user_id"), actorID); err != nil {
		if errors.Is(err, enforcement.ErrSuspensionNotFound) {
			response.Error(c, http.StatusNotFound, "没有生效中的封禁")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "封禁已解除"})
}

// LiftShadowban 解除影子封禁
// @Summary 解除影子封禁
// @Tags Enforcement
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "账号ID"
// @Success 200 {object} response.APIResponse
// @Router /api/enforcement/accounts/{user_id}/shadowban [delete]
func (h *Handler) LiftShadowban(c *gin.Context) {
	actorID := auth.MustGetUserID(c)
	if err := h.service.LiftShadowban(c.Request.Context(), c.Param("user_id"), actorID); err != nil {
		if errors.Is(err, enforcement.ErrSuspensionNotFound) {
			response.Error(c, http.StatusNotFound, "没有生效中的影子封禁")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "影子封禁已解除"})
}

// ListUnappliedRecords 查询未落地的处置记录
// 决定已生效但副作用还没补上的记录，供巡检与人工补偿。
// @Summary 查询未落地处置记录
// @Tags Enforcement
// @Security BearerAuth
// @Produce json
// @Param max_attempts query int false "最大尝试次数"
// @Param limit query int false "返回条数"
// @Success 200 {object} response.APIResponse{data=[]enforcement.EnforcementRecord}
// @Router /api/enforcement/records/unapplied [get]
func (h *Handler) ListUnappliedRecords(c *gin.Context) {
	maxAttempts, _ := strconv.Atoi(c.DefaultQuery("max_attempts", "5"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	records, err := h.service.ListUnapplied(c.Request.Context(), maxAttempts, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, records)
}

// RetryEffect 手动触发一条处置记录重新落地
// @Summary 重试处置落地
// @Tags Enforcement
// @Security BearerAuth
// @Produce json
// @Param id path string true "处置记录ID"
// @Success 200 {object} response.APIResponse
// @Router /api/enforcement/records/{id}/retry [post]
func (h *Handler) RetryEffect(c *gin.Context) {
	if err := h.service.ApplyEffect(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, enforcement.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, "处置记录不存在")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "处置已落地"})
}
