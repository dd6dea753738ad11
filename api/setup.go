package api

import (
	"backend/internal/config"
	"backend/internal/enforcement"
	"backend/internal/logger"
	"backend/internal/metrics"
	"backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// SetupRouter 设置并返回 Gin 路由、服务容器和 Worker 服务器
func SetupRouter(db *gorm.DB, redisClient redis.UniversalClient, cfg *config.Config, notifier enforcement.Notifier) (*gin.Engine, *AppContainer, *worker.Server) {
	router := gin.New()

	container := BuildContainer(db, redisClient, cfg, notifier)
	handlers := NewHandlers(container)

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(CORS())
	router.Use(RequestLogger())
	router.Use(metrics.PrometheusMiddleware())

	// 系统端点
	router.GET("/health", HealthCheck(db))
	router.GET("/ready", ReadinessCheck(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	RegisterRoutes(router, container, handlers)

	// 数据库连接指标采集
	if sqlDB, err := db.DB(); err == nil {
		metrics.NewSystemCollector(sqlDB)
	}

	workerServer := worker.NewServer(
		cfg.Redis,
		cfg.Enforcement,
		container.Pipeline,
		container.Enforcement,
		logger.Get(),
	)

	return router, container, workerServer
}
