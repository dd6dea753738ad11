package auth

import (
	"errors"
	"net/http"

	response "backend/api/handlers/common"
	authpkg "backend/internal/auth"
	"backend/internal/review"

	"github.com/gin-gonic/gin"
)

// Handler 员工认证 API 处理器
type Handler struct {
	staff   *authpkg.StaffService
	jwt     *authpkg.JWTService
	reviews *review.Service
}

// NewHandler 创建处理器
func NewHandler(staff *authpkg.StaffService, jwt *authpkg.JWTService, reviews *review.Service) *Handler {
	return &Handler{staff: staff, jwt: jwt, reviews: reviews}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 刷新令牌请求
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// Login 员工登录
// @Summary 员工登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录凭证"
// @Success 200 {object} response.APIResponse
// @Router /api/auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	pair, account, err := h.staff.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authpkg.ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "用户名或密码错误")
		case errors.Is(err, authpkg.ErrAccountDisabled):
			response.Error(c, http.StatusForbidden, "账号已停用")
		default:
			response.Error(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"tokens": pair,
		"account": gin.H{
			"id":       account.ID,
			"username": account.Username,
		},
	})
}

// Refresh 刷新访问令牌
// @Summary 刷新访问令牌
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "刷新令牌"
// @Success 200 {object} response.APIResponse
// @Router /api/auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	pair, err := h.jwt.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "刷新令牌无效")
		return
	}

	response.Success(c, pair)
}

// Logout 登出，当前令牌加入黑名单
// @Summary 登出
// @Tags Auth
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.APIResponse
// @Router /api/auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	token := authpkg.ExtractTokenFromBearer(c.GetHeader("Authorization"))
	if token != "" {
		if err := h.jwt.InvalidateToken(c.Request.Context(), token); err != nil {
			response.Error(c, http.StatusInternalServerError, err.Error())
			return
		}
	}
	response.Success(c, gin.H{"message": "已登出"})
}

// ChangePassword 修改当前账号密码
// @Summary 修改密码
// @Tags Auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ChangePasswordRequest true "新旧密码"
// @Success 200 {object} response.APIResponse
// @Router /api/auth/password [put]
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	userID := authpkg.MustGetUserID(c)
	if err := h.staff.ChangePassword(c.Request.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		if errors.Is(err, authpkg.ErrInvalidCredentials) {
			response.Error(c, http.StatusForbidden, "旧密码错误")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{"message": "密码已更新"})
}

// CreateAccount 创建员工账号（仅管理员）
// @Summary 创建员工账号
// @Tags Auth
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body authpkg.CreateAccountRequest true "账号信息"
// @Success 201 {object} response.APIResponse
// @Router /api/auth/accounts [post]
func (h *Handler) CreateAccount(c *gin.Context) {
	actorID := authpkg.MustGetUserID(c)
	isAdmin, err := h.reviews.IsAdministrator(c.Request.Context(), actorID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	if !isAdmin {
		response.ErrorWithCode(c, http.StatusForbidden, "INSUFFICIENT_AUTHORITY", "需要管理员权限")
		return
	}

	var req authpkg.CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	account, err := h.staff.CreateAccount(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, authpkg.ErrUsernameTaken) {
			response.ErrorWithCode(c, http.StatusConflict, "USERNAME_TAKEN", "用户名已存在")
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Created(c, account)
}
