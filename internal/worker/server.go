package worker

import (
	"context"
	"fmt"

	"backend/internal/config"
	"backend/internal/enforcement"
	"backend/internal/flags"
	"backend/internal/worker/handlers"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Server 后台任务服务器
// 承载内容扫描与处置落地重试，和 HTTP 进程共用一套服务。
type Server struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *zap.Logger
}

// NewServer 创建任务服务器
func NewServer(
	cfg config.RedisConfig,
	enforcementCfg config.EnforcementConfig,
	pipeline *flags.Pipeline,
	enforcementService *enforcement.Service,
	logger *zap.Logger,
) *Server {
	redisOpt := asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"enforcement": 6, // 处置落地优先级最高，决定已生效但副作用还没补上
				"moderation":  3,
				"default":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("任务执行失败",
					zap.String("type", task.Type()),
					zap.Error(err),
				)
			}),
		},
	)

	mux := asynq.NewServeMux()

	moderationHandler := handlers.NewModerationHandler(pipeline, logger)
	mux.HandleFunc(tasks.TypeScanContent, moderationHandler.HandleScanContent)

	enforcementHandler := handlers.NewEnforcementHandler(enforcementService, logger)
	mux.HandleFunc(tasks.TypeApplyEffect, enforcementHandler.HandleApplyEffect)
	mux.HandleFunc(tasks.TypeSweepExpired, enforcementHandler.HandleSweepExpired)

	// 过期封禁定期扫描
	sweepInterval := enforcementCfg.SweepIntervalMinutes
	if sweepInterval <= 0 {
		sweepInterval = 10
	}
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})
	if _, err := scheduler.Register(
		fmt.Sprintf("@every %dm", sweepInterval),
		asynq.NewTask(tasks.TypeSweepExpired, nil),
		asynq.Queue("enforcement"),
	); err != nil {
		logger.Error("注册定时扫描任务失败", zap.Error(err))
	}

	return &Server{
		server:    srv,
		scheduler: scheduler,
		mux:       mux,
		logger:    logger,
	}
}

// Run 阻塞启动
func (s *Server) Run() error {
	s.logger.Info("Worker 服务器启动中...")
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	return s.server.Run(s.mux)
}

// Start 非阻塞启动
func (s *Server) Start() error {
	s.logger.Info("Worker 服务器启动中 (后台)...")
	if err := s.scheduler.Start(); err != nil {
		return err
	}
	return s.server.Start(s.mux)
}

// Shutdown 停止服务器
func (s *Server) Shutdown() {
	s.logger.Info("Worker 服务器停止中...")
	s.scheduler.Shutdown()
	s.server.Shutdown()
}
