package api

import (
	"os"
	"strings"

	auditHandlers "backend/api/handlers/audit"
	authHandlers "backend/api/handlers/auth"
	detectorHandlers "backend/api/handlers/detector"
	dmcaHandlers "backend/api/handlers/dmca"
	enforcementHandlers "backend/api/handlers/enforcement"
	moderationHandlers "backend/api/handlers/moderation"
	reviewHandlers "backend/api/handlers/review"

	auditpkg "backend/internal/audit"
	"backend/internal/auth"
	"backend/internal/classify"
	"backend/internal/config"
	"backend/internal/content"
	"backend/internal/detector"
	"backend/internal/dmca"
	"backend/internal/enforcement"
	"backend/internal/flags"
	"backend/internal/infra/queue"
	"backend/internal/logger"
	"backend/internal/review"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// AppContainer 服务容器
// 所有领域服务在这里装配一次，HTTP 处理器与 Worker 共用同一套实例。
type AppContainer struct {
	DB          *gorm.DB
	Redis       redis.UniversalClient
	QueueClient queue.Client

	JWTService   *auth.JWTService
	StaffService *auth.StaffService

	Trail        *auditpkg.Trail
	ContentStore content.Store
	Registry     *detector.Registry
	Pipeline     *flags.Pipeline
	FlagService  *flags.Service
	Review       *review.Service
	Enforcement  *enforcement.Service
	DMCA         *dmca.Service
}

// BuildContainer 装配服务容器
func BuildContainer(db *gorm.DB, redisClient redis.UniversalClient, cfg *config.Config, notifier enforcement.Notifier) *AppContainer {
	queueClient := queue.NewClient(cfg.Redis)

	jwtService := auth.NewJWTService(
		resolveJWTSecret(cfg),
		"whisperink-trust-safety",
		cfg.JWT.AccessExpiry(),
		cfg.JWT.RefreshExpiry(),
		redisClient,
	)
	staffService := auth.NewStaffService(db, jwtService)

	trail := auditpkg.NewTrail(db)
	store := content.NewGormStore(db)

	enforcementSvc := enforcement.NewService(db, store, trail, notifier, cfg.Enforcement.ConflictRetries)
	dispatcher := enforcement.NewDispatcher(db, enforcementSvc, queueClient)

	flagService := flags.NewService(db)
	reviewSvc := review.NewService(db, flagService, dispatcher)

	registry := detector.NewRegistry(db, redisClient, reviewSvc)
	adapter := classify.NewAdapter(classify.NewHTTPClassifier(&cfg.Classifier))
	pipeline := flags.NewPipeline(db, registry, adapter)

	dmcaSvc := dmca.NewService(db, store, enforcementSvc, notifier, reviewSvc, &cfg.DMCA)

	return &AppContainer{
		DB:           db,
		Redis:        redisClient,
		QueueClient:  queueClient,
		JWTService:   jwtService,
		StaffService: staffService,
		Trail:        trail,
		ContentStore: store,
		Registry:     registry,
		Pipeline:     pipeline,
		FlagService:  flagService,
		Review:       reviewSvc,
		Enforcement:  enforcementSvc,
		DMCA:         dmcaSvc,
	}
}

// Handlers API 处理器集合
type Handlers struct {
	Auth        *authHandlers.Handler
	Moderation  *moderationHandlers.Handler
	Review      *reviewHandlers.Handler
	Detector    *detectorHandlers.Handler
	Enforcement *enforcementHandlers.Handler
	DMCA        *dmcaHandlers.Handler
	Audit       *auditHandlers.Handler
}

// NewHandlers 创建处理器集合
func NewHandlers(c *AppContainer) *Handlers {
	return &Handlers{
		Auth:        authHandlers.NewHandler(c.StaffService, c.JWTService, c.Review),
		Moderation:  moderationHandlers.NewHandler(c.Pipeline, c.FlagService, c.QueueClient),
		Review:      reviewHandlers.NewHandler(c.Review),
		Detector:    detectorHandlers.NewHandler(c.Registry),
		Enforcement: enforcementHandlers.NewHandler(c.Enforcement),
		DMCA:        dmcaHandlers.NewHandler(c.DMCA),
		Audit:       auditHandlers.NewHandler(c.Trail),
	}
}

// resolveJWTSecret 解析 JWT 密钥，生产模式禁止弱默认值
func resolveJWTSecret(cfg *config.Config) string {
	secret := strings.TrimSpace(cfg.JWT.Secret)
	if secret == "" {
		secret = strings.TrimSpace(os.Getenv("JWT_SECRET_KEY"))
	}
	if secret == "" {
		if strings.EqualFold(cfg.Server.Mode, "release") {
			logger.Fatal("JWT 密钥未配置，生产环境禁止使用默认密钥")
		}
		secret = "default_jwt_secret_key_change_in_production"
		logger.Warn("JWT 密钥未配置，已回退为开发默认值，请在生产环境设置强随机密钥")
	}
	return secret
}
