package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"backend/internal/flags"
	"backend/internal/worker/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ModerationHandler 内容扫描任务处理器
type ModerationHandler struct {
	pipeline *flags.Pipeline
	logger   *zap.Logger
}

// NewModerationHandler 创建扫描任务处理器
func NewModerationHandler(pipeline *flags.Pipeline, logger *zap.Logger) *ModerationHandler {
	return &ModerationHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// HandleScanContent 执行一次内容扫描
func (h *ModerationHandler) HandleScanContent(ctx context.Context, t *asynq.Task) error {
	var p tasks.ScanContentPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json unmarshal failed: %w", err)
	}

	h.logger.Info("开始扫描内容",
		zap.String("content_type", p.ContentType),
		zap.String("content_id", p.ContentID),
	)

	result, err := h.pipeline.ScanContent(ctx, &flags.ScanRequest{
		ContentType: p.ContentType,
		ContentID:   p.ContentID,
		Payload:     p.Payload,
	})
	if err != nil {
		h.logger.Error("内容扫描失败",
			zap.String("content_id", p.ContentID),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("内容扫描完成",
		zap.String("content_id", p.ContentID),
		zap.Int("categories", len(result.Outcomes)),
	)
	return nil
}
