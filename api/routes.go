package api

import (
	"backend/internal/auth"
	middlewarepkg "backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, container *AppContainer, handlers *Handlers) {
	router.Use(middlewarepkg.RequestIDMiddleware())

	// 公开端点（不需要 JWT）
	registerPublicRoutes(router, handlers)

	// 员工 API 组
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware(container.JWTService))
	registerStaffRoutes(api, handlers)
}

// registerPublicRoutes 注册公开路由
func registerPublicRoutes(router *gin.Engine, h *Handlers) {
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	// DMCA 投诉是法律入口，版权方不持有平台账号也必须能提交
	dmcaIntakeLimiter := middlewarepkg.NewRateLimiter(middlewarepkg.ReportIntakeLimiterConfig())
	router.POST("/api/dmca/takedowns",
		middlewarepkg.RateLimitByEndpoint(dmcaIntakeLimiter),
		h.DMCA.Submit,
	)
}

// registerStaffRoutes 注册需要认证的路由
func registerStaffRoutes(api *gin.RouterGroup, h *Handlers) {
	// 认证管理
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/logout", h.Auth.Logout)
		authGroup.PUT("/password", h.Auth.ChangePassword)
		authGroup.POST("/accounts", h.Auth.CreateAccount)
	}

	// 内容扫描与标记
	moderationGroup := api.Group("/moderation")
	{
		moderationGroup.POST("/scan", h.Moderation.ScanContent)
		moderationGroup.POST("/scan/async", h.Moderation.ScanContentAsync)
		moderationGroup.GET("/flags", h.Moderation.ListUnreviewedFlags)
		moderationGroup.GET("/flags/:id", h.Moderation.GetFlag)
		moderationGroup.POST("/nsfw", h.Moderation.MarkNSFW)
		moderationGroup.GET("/nsfw/status", h.Moderation.GetNSFWStatus)
	}

	// 人工审核
	reviewGroup := api.Group("/review")
	{
		// 举报入口限流，防止刷举报淹没队列
		reportLimiter := middlewarepkg.NewRateLimiter(middlewarepkg.ReportIntakeLimiterConfig())
		reviewGroup.POST("/reports", middlewarepkg.RateLimitByEndpoint(reportLimiter), h.Review.CreateReport)

		reviewGroup.GET("/queue", h.Review.ListQueue)
		reviewGroup.POST("/decide", h.Review.Decide)
		reviewGroup.GET("/actions", h.Review.ListActions)
		reviewGroup.POST("/roles", h.Review.GrantRole)
		reviewGroup.GET("/roles/me", h.Review.GetMyRole)
	}

	// 检测器配置（管理员校验在服务层）
	detectorGroup := api.Group("/detectors")
	{
		detectorGroup.GET("", h.Detector.ListConfigs)
		detectorGroup.GET("/:category", h.Detector.GetConfig)
		detectorGroup.PUT("", h.Detector.UpsertConfig)
	}

	// 账号处置
	enforcementGroup := api.Group("/enforcement")
	{
		enforcementGroup.GET("/accounts/:user_id", h.Enforcement.GetAccountStatus)
		enforcementGroup.DELETE("/accounts/:user_id/suspension", h.Enforcement.LiftSuspension)
		enforcementGroup.DELETE("/accounts/:user_id/shadowban", h.Enforcement.LiftShadowban)
		enforcementGroup.GET("/records/unapplied", h.Enforcement.ListUnappliedRecords)
		enforcementGroup.POST("/records/:id/retry", h.Enforcement.RetryEffect)
	}

	// DMCA 处理（代理资格校验在服务层）
	dmcaGroup := api.Group("/dmca")
	{
		dmcaGroup.GET("/takedowns", h.DMCA.List)
		dmcaGroup.GET("/takedowns/:id", h.DMCA.Get)
		dmcaGroup.POST("/takedowns/:id/review", h.DMCA.Review)
		dmcaGroup.POST("/agents", h.DMCA.GrantAgent)
	}

	// 审计日志
	auditGroup := api.Group("/audit")
	{
		auditGroup.GET("/entries", h.Audit.Query)
	}
}
