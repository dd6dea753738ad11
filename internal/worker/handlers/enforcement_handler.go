package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"backend/internal/enforcement"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// EnforcementHandler 处置落地任务处理器
type EnforcementHandler struct {
	service *enforcement.Service
	logger  *zap.Logger
}

// NewEnforcementHandler 创建处置任务处理器
func NewEnforcementHandler(service *enforcement.Service, logger *zap.Logger) *EnforcementHandler {
	return &EnforcementHandler{
		service: service,
		logger:  logger,
	}
}

// HandleApplyEffect 重试一条处置记录的落地
// ApplyEffect 本身幂等，已落地的记录直接返回成功。
func (h *EnforcementHandler) HandleApplyEffect(ctx context.Context, t *asynq.Task) error {
	var p tasks.ApplyEffectPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	h.logger.Info("重试处置落地", zap.String("record_id", p.RecordID))

	if err := h.service.ApplyEffect(ctx, p.RecordID); err != nil {
		h.logger.Error("处置落地失败",
			zap.String("record_id", p.RecordID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// HandleSweepExpired 扫描并关闭已过期的封禁记录
func (h *EnforcementHandler) HandleSweepExpired(ctx context.Context, t *asynq.Task) error {
	swept, err := h.service.SweepExpired(ctx)
	if err != nil {
		h.logger.Error("过期封禁扫描失败", zap.Error(err))
		return err
	}
	if swept > 0 {
		h.logger.Info("过期封禁已关闭", zap.Int64("count", swept))
	}
	return nil
}
