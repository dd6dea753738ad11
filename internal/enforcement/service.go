package enforcement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/audit"
	"backend/internal/content"
	"backend/internal/logger"
	"backend/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 错误定义
// ============================================================================

var (
	ErrConflictRetry      = errors.New("并发写冲突，请重试")
	ErrRecordNotFound     = errors.New("处置记录不存在")
	ErrSuspensionNotFound = errors.New("封禁记录不存在")
	ErrUnknownEffect      = errors.New("未知处置副作用")
)

// 并发冲突的默认重试次数
const defaultConflictRetries = 3

// Notifier 通知发送接口，由通知服务实现
type Notifier interface {
	Send(ctx context.Context, template, recipient string, vars map[string]any) error
}

// ============================================================================
// 处置引擎
// ============================================================================

// Service 处置引擎
// 账号状态机按账号独立，封禁与影子封禁互不干涉。
type Service struct {
	db              *gorm.DB
	store           content.Store
	trail           *audit.Trail
	notifier        Notifier
	conflictRetries int
}

// NewService 创建处置引擎
func NewService(db *gorm.DB, store content.Store, trail *audit.Trail, notifier Notifier, conflictRetries int) *Service {
	if conflictRetries <= 0 {
		conflictRetries = defaultConflictRetries
	}
	return &Service{
		db:              db,
		store:           store,
		trail:           trail,
		notifier:        notifier,
		conflictRetries: conflictRetries,
	}
}

// ============================================================================
// 封禁
// ============================================================================

// ApplySuspension 施加封禁，后来者替代先前者
// 先停用该账号全部生效封禁再插入新记录，两步在同一事务内完成。
// 并发封禁同一账号时输家撞部分唯一索引回滚，按冲突重试后
// 停用赢家的记录再插入，保证最终恰好一条生效。
func (s *Service) ApplySuspension(ctx context.Context, req *SuspendRequest, actorID string) (*AccountSuspension, error) {
	var suspension *AccountSuspension
	var err error
	for attempt := 0; attempt < s.conflictRetries; attempt++ {
		suspension, err = s.applySuspensionOnce(ctx, req, actorID)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConflictRetry) {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	s.trail.RecordEffect(ctx, actorID, "enforcement.suspend", "user", req.UserID, map[string]any{
		"reason":     req.Reason,
		"expires_at": req.ExpiresAt,
	}, true)
	metrics.EnforcementEffectsTotal.WithLabelValues(EffectSuspend, "applied").Inc()
	s.refreshSuspensionGauge(ctx)

	logger.WithContext(ctx).Info("账号已封禁",
		zap.String("user_id", req.UserID),
		zap.String("suspended_by", actorID),
		zap.Timep("expires_at", req.ExpiresAt),
	)
	return suspension, nil
}

func (s *Service) applySuspensionOnce(ctx context.Context, req *SuspendRequest, actorID string) (*AccountSuspension, error) {
	suspension := &AccountSuspension{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		SuspendedBy: actorID,
		Reason:      req.Reason,
		SuspendedAt: time.Now().UTC(),
		ExpiresAt:   req.ExpiresAt,
		IsActive:    true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&AccountSuspension{}).
			Where("user_id = ? AND is_active = ?", req.UserID, true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("停用旧封禁失败: %w", err)
		}

		if err := tx.Create(suspension).Error; err != nil {
			// 并发写入者抢先提交了生效记录，回滚重试
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflictRetry
			}
			return fmt.Errorf("创建封禁失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return suspension, nil
}

// LiftSuspension 解除封禁
func (s *Service) LiftSuspension(ctx context.Context, userID, actorID string) error {
	result := s.db.WithContext(ctx).Model(&AccountSuspension{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("解除封禁失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSuspensionNotFound
	}

	s.trail.Record(ctx, actorID, "enforcement.lift_suspension", "user", userID, nil)
	s.refreshSuspensionGauge(ctx)
	return nil
}

// IsSuspended 读取时判定账号是否处于封禁状态
// 生效记录存在且未过期才算封禁。已过期但 is_active 尚未翻转的记录
// 在这里按失效处理，不依赖清扫任务。
func (s *Service) IsSuspended(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AccountSuspension{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询封禁状态失败: %w", err)
	}
	return count > 0, nil
}

// ============================================================================
// 影子封禁
// ============================================================================

// ApplyShadowban 施加影子封禁，后来者替代先前者
// 并发语义与封禁一致: 输家撞部分唯一索引后按冲突重试。
func (s *Service) ApplyShadowban(ctx context.Context, userID, reason, actorID string) (*Shadowban, error) {
	var ban *Shadowban
	var err error
	for attempt := 0; attempt < s.conflictRetries; attempt++ {
		ban, err = s.applyShadowbanOnce(ctx, userID, reason, actorID)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrConflictRetry) {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	s.trail.RecordEffect(ctx, actorID, "enforcement.shadowban", "user", userID, map[string]any{
		"reason": reason,
	}, true)
	metrics.EnforcementEffectsTotal.WithLabelValues(EffectShadowban, "applied").Inc()
	return ban, nil
}

func (s *Service) applyShadowbanOnce(ctx context.Context, userID, reason, actorID string) (*Shadowban, error) {
	ban := &Shadowban{
		ID:       uuid.New().String(),
		UserID:   userID,
		BannedBy: actorID,
		Reason:   reason,
		BannedAt: time.Now().UTC(),
		IsActive: true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Shadowban{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("停用旧影子封禁失败: %w", err)
		}
		if err := tx.Create(ban).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflictRetry
			}
			return fmt.Errorf("创建影子封禁失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ban, nil
}

// LiftShadowban 解除影子封禁，影子封禁没有时间条件，只能显式解除
func (s *Service) LiftShadowban(ctx context.Context, userID, actorID string) error {
	result := s.db.WithContext(ctx).Model(&Shadowban{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("解除影子封禁失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSuspensionNotFound
	}

	s.trail.Record(ctx, actorID, "enforcement.lift_shadowban", "user", userID, nil)
	return nil
}

// IsShadowbanned 判定账号是否处于影子封禁状态
func (s *Service) IsShadowbanned(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Shadowban{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询影子封禁状态失败: %w", err)
	}
	return count > 0, nil
}

// Status 汇总账号的处置状态
func (s *Service) Status(ctx context.Context, userID string) (*AccountStatus, error) {
	status := &AccountStatus{UserID: userID}

	suspended, err := s.IsSuspended(ctx, userID)
	if err != nil {
		return nil, err
	}
	status.Suspended = suspended

	if suspended {
		var suspension AccountSuspension
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND is_active = ?", userID, true).
			Order("suspended_at DESC").
			First(&suspension).Error
		if err == nil {
			status.Suspension = &suspension
		}
	}

	shadowbanned, err := s.IsShadowbanned(ctx, userID)
	if err != nil {
		return nil, err
	}
	status.Shadowbanned = shadowbanned
	return status, nil
}

// ============================================================================
// 副作用执行
// ============================================================================

// ApplyEffect 执行一条处置副作用记录
// 幂等: 已生效的记录直接返回成功。失败时累加 attempts 并记录原因，
// 供补偿任务继续重试。
func (s *Service) ApplyEffect(ctx context.Context, recordID string) error {
	var record EnforcementRecord
	err := s.db.WithContext(ctx).Where("id = ?", recordID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("查询处置记录失败: %w", err)
	}
	if record.Applied {
		return nil
	}

	applyErr := s.executeEffect(ctx, &record)

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"attempts": gorm.Expr("attempts + 1"),
	}
	if applyErr == nil {
		updates["applied"] = true
		updates["applied_at"] = now
		updates["last_error"] = ""
	} else {
		updates["last_error"] = applyErr.Error()
	}
	if err := s.db.WithContext(ctx).Model(&EnforcementRecord{}).
		Where("id = ?", record.ID).
		Updates(updates).Error; err != nil {
		logger.WithContext(ctx).Error("更新处置记录失败",
			zap.String("record_id", record.ID),
			zap.Error(err),
		)
	}

	if applyErr != nil {
		metrics.EnforcementEffectsTotal.WithLabelValues(record.Effect, "failed").Inc()
		s.trail.RecordEffect(ctx, record.OperatorID, effectAuditAction(record.Effect),
			"enforcement_record", record.ID, map[string]any{"error": applyErr.Error()}, false)
		return applyErr
	}

	metrics.EnforcementEffectsTotal.WithLabelValues(record.Effect, "applied").Inc()
	s.trail.RecordEffect(ctx, record.OperatorID, effectAuditAction(record.Effect),
		"enforcement_record", record.ID, nil, true)
	return nil
}

func (s *Service) executeEffect(ctx context.Context, record *EnforcementRecord) error {
	switch record.Effect {
	case EffectHideContent, EffectDeleteContent:
		return s.store.SoftDelete(ctx, record.ContentType, record.ContentID, record.OperatorID)

	case EffectSuspend:
		_, err := s.ApplySuspension(ctx, &SuspendRequest{
			UserID:    record.SubjectUserID,
			Reason:    record.Reason,
			ExpiresAt: record.ExpiresAt,
		}, record.OperatorID)
		return err

	case EffectShadowban:
		_, err := s.ApplyShadowban(ctx, record.SubjectUserID, record.Reason, record.OperatorID)
		return err

	case EffectWarn:
		if s.notifier == nil {
			return errors.New("通知服务未配置")
		}
		user, err := s.store.UserContact(ctx, record.SubjectUserID)
		if err != nil {
			return fmt.Errorf("查询警告对象失败: %w", err)
		}
		return s.notifier.Send(ctx, "account_warning", user.Email, map[string]any{
			"Username": user.Username,
			"Reason":   record.Reason,
		})

	default:
		return fmt.Errorf("%w: %s", ErrUnknownEffect, record.Effect)
	}
}

// ExecuteContentEffect 创建并当场执行一条内容级处置记录
// DMCA 批准等非裁决来源的处置走这里，refID 关联来源实体。
// 当场执行失败时记录保留为未生效，返回错误由调用方决定补偿方式。
func (s *Service) ExecuteContentEffect(ctx context.Context, effect, contentType, contentID, refID, operatorID, reason string) (*EnforcementRecord, error) {
	record := &EnforcementRecord{
		ID:          uuid.New().String(),
		ActionID:    refID,
		Effect:      effect,
		ContentType: contentType,
		ContentID:   contentID,
		OperatorID:  operatorID,
		Reason:      reason,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("创建处置记录失败: %w", err)
	}

	if err := s.ApplyEffect(ctx, record.ID); err != nil {
		return record, err
	}
	return record, nil
}

// ListUnapplied 列出未生效且重试次数未耗尽的处置记录，补偿任务用
func (s *Service) ListUnapplied(ctx context.Context, maxAttempts, limit int) ([]EnforcementRecord, error) {
	var records []EnforcementRecord
	err := s.db.WithContext(ctx).
		Where("applied = ? AND attempts < ?", false, maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("查询未生效处置记录失败: %w", err)
	}
	return records, nil
}

// ============================================================================
// 过期清扫
// ============================================================================

// SweepExpired 把已过期的封禁记录翻转为失效
// 纯粹是报表一致性的优化，IsSuspended 在读取时已经检查过期时间，
// 正确性不依赖这里。
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&AccountSuspension{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, time.Now().UTC()).
		Update("is_active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("清扫过期封禁失败: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		logger.Info("过期封禁已清扫", zap.Int64("count", result.RowsAffected))
	}
	s.refreshSuspensionGauge(ctx)
	return result.RowsAffected, nil
}

func (s *Service) refreshSuspensionGauge(ctx context.Context) {
	var count int64
	err := s.db.WithContext(ctx).Model(&AccountSuspension{}).
		Where("is_active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", time.Now().UTC()).
		Count(&count).Error
	if err == nil {
		metrics.ActiveSuspensions.Set(float64(count))
	}
}

func effectAuditAction(effect string) string {
	switch effect {
	case EffectHideContent:
		return "enforcement.hide_content"
	case EffectDeleteContent:
		return "enforcement.delete_content"
	case EffectSuspend:
		return "enforcement.apply_suspend"
	case EffectShadowban:
		return "enforcement.apply_shadowban"
	case EffectWarn:
		return "enforcement.warn"
	default:
		return "enforcement.unknown"
	}
}
