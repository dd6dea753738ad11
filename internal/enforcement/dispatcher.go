package enforcement

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/flags"
	"backend/internal/logger"
	"backend/internal/review"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Enqueuer 处置重试任务入队接口，由任务队列客户端实现
type Enqueuer interface {
	EnqueueApplyEffect(ctx context.Context, recordID string) error
}

// ============================================================================
// 裁决分发器
// ============================================================================

// Dispatcher 把裁决转换为处置副作用记录并执行
// 先落记录再执行，执行失败时入队重试。记录一旦存在，即使当场
// 执行和入队双双失败，补偿清扫也能接续，决定永远不会丢失。
type Dispatcher struct {
	db       *gorm.DB
	service  *Service
	enqueuer Enqueuer
}

// NewDispatcher 创建裁决分发器
// enqueuer 传 nil 时失败记录只依赖补偿清扫重试。
func NewDispatcher(db *gorm.DB, service *Service, enqueuer Enqueuer) *Dispatcher {
	return &Dispatcher{db: db, service: service, enqueuer: enqueuer}
}

// Dispatch 实现 review.EffectDispatcher
func (d *Dispatcher) Dispatch(ctx context.Context, action *review.ModerationAction, req *review.DecideRequest) error {
	record, err := d.buildRecord(ctx, action, req)
	if err != nil {
		return err
	}
	if record == nil {
		// DISMISS 等无副作用动作
		return nil
	}

	if err := d.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("创建处置记录失败: %w", err)
	}

	if err := d.service.ApplyEffect(ctx, record.ID); err != nil {
		logger.WithContext(ctx).Warn("处置副作用当场执行失败，转入重试",
			zap.String("record_id", record.ID),
			zap.String("effect", record.Effect),
			zap.Error(err),
		)
		if d.enqueuer != nil {
			if enqErr := d.enqueuer.EnqueueApplyEffect(ctx, record.ID); enqErr != nil {
				logger.WithContext(ctx).Error("处置重试任务入队失败",
					zap.String("record_id", record.ID),
					zap.Error(enqErr),
				)
			}
		}
	}
	return nil
}

// buildRecord 把裁决动作映射为处置记录
func (d *Dispatcher) buildRecord(ctx context.Context, action *review.ModerationAction, req *review.DecideRequest) (*EnforcementRecord, error) {
	record := &EnforcementRecord{
		ID:            uuid.New().String(),
		ActionID:      action.ID,
		SubjectUserID: req.SubjectUserID,
		Reason:        req.Reason,
		ExpiresAt:     req.ExpiresAt,
		OperatorID:    action.ModeratorID,
	}

	switch action.ActionType {
	case review.ActionHide:
		record.Effect = EffectHideContent
	case review.ActionDelete:
		record.Effect = EffectDeleteContent
	case review.ActionWarn:
		record.Effect = EffectWarn
	case review.ActionSuspend:
		record.Effect = EffectSuspend
	case review.ActionShadowban:
		record.Effect = EffectShadowban
	case review.ActionDismiss:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEffect, action.ActionType)
	}

	// 内容级副作用需要从裁决目标解析内容引用
	if record.Effect == EffectHideContent || record.Effect == EffectDeleteContent {
		contentType, contentID, err := d.resolveTarget(ctx, action)
		if err != nil {
			return nil, err
		}
		record.ContentType = contentType
		record.ContentID = contentID
	}
	return record, nil
}

func (d *Dispatcher) resolveTarget(ctx context.Context, action *review.ModerationAction) (string, string, error) {
	if action.FlagID != nil {
		var flag flags.AutomatedFlag
		if err := d.db.WithContext(ctx).Where("id = ?", *action.FlagID).First(&flag).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", "", fmt.Errorf("裁决目标标记不存在: %s", *action.FlagID)
			}
			return "", "", fmt.Errorf("查询裁决目标失败: %w", err)
		}
		return flag.ContentType, flag.ContentID, nil
	}
	if action.ReportID != nil {
		var report review.Report
		if err := d.db.WithContext(ctx).Where("id = ?", *action.ReportID).First(&report).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", "", fmt.Errorf("裁决目标举报不存在: %s", *action.ReportID)
			}
			return "", "", fmt.Errorf("查询裁决目标失败: %w", err)
		}
		return report.ContentType, report.ContentID, nil
	}
	return "", "", errors.New("裁决动作缺少目标引用")
}
