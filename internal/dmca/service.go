package dmca

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/internal/common"
	"backend/internal/config"
	"backend/internal/content"
	"backend/internal/enforcement"
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
	ErrValidation        = errors.New("请求参数错误")
	ErrTakedownNotFound  = errors.New("投诉不存在")
	ErrInvalidTransition = errors.New("非法状态流转")
	ErrNotAgent          = errors.New("无 DMCA 代理资格")
)

// AdminGate 管理员权限校验接口
type AdminGate interface {
	IsAdministrator(ctx context.Context, userID string) (bool, error)
}

// Notifier 通知发送接口
type Notifier interface {
	Send(ctx context.Context, template, recipient string, vars map[string]any) error
}

// ============================================================================
// DMCA 服务
// ============================================================================

// Service DMCA 下架状态机
// PENDING -> {APPROVED, REJECTED}，两者皆为终态。终态流转在事务内
// 用乐观条件守护，并发审查同一投诉恰好一个胜者，败者报非法流转，
// 绝不重复下架、绝不重复发信。
type Service struct {
	db       *gorm.DB
	store    content.Store
	enforcer *enforcement.Service
	notifier Notifier
	gate     AdminGate
	cfg      *config.DMCAConfig
}

// NewService 创建 DMCA 服务
func NewService(db *gorm.DB, store content.Store, enforcer *enforcement.Service, notifier Notifier, gate AdminGate, cfg *config.DMCAConfig) *Service {
	return &Service{
		db:       db,
		store:    store,
		enforcer: enforcer,
		notifier: notifier,
		gate:     gate,
		cfg:      cfg,
	}
}

// ============================================================================
// 代理资格
// ============================================================================

// IsAgent 判定用户是否持有生效的 DMCA 代理资格
// 代理资格独立于审核角色阶梯，管理员身份不隐含代理资格。
func (s *Service) IsAgent(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&DMCAAgent{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询代理资格失败: %w", err)
	}
	return count > 0, nil
}

// GrantAgent 授予或调整 DMCA 代理资格，仅管理员可操作
func (s *Service) GrantAgent(ctx context.Context, req *GrantAgentRequest, actorID string) (*DMCAAgent, error) {
	isAdmin, err := s.gate.IsAdministrator(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, ErrNotAgent
	}

	var agent DMCAAgent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("user_id = ?", req.UserID).First(&agent).Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("查询代理资格失败: %w", findErr)
		}
		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			agent = DMCAAgent{
				ID:       uuid.New().String(),
				UserID:   req.UserID,
				IsActive: true,
			}
		}
		agent.GrantedBy = actorID
		if req.IsActive != nil {
			agent.IsActive = *req.IsActive
		}
		if err := tx.Save(&agent).Error; err != nil {
			return fmt.Errorf("保存代理资格失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("DMCA 代理资格已变更",
		zap.String("user_id", agent.UserID),
		zap.Bool("is_active", agent.IsActive),
		zap.String("granted_by", actorID),
	)
	return &agent, nil
}

// ============================================================================
// 投诉提交
// ============================================================================

// Submit 提交 DMCA 投诉，一律从 PENDING 起步
// 诚信声明必须勾选、签名必须非空，否则拒绝受理。
func (s *Service) Submit(ctx context.Context, req *SubmitRequest) (*DMCATakedown, error) {
	if !req.GoodFaithStatement {
		return nil, fmt.Errorf("%w: 缺少诚信声明", ErrValidation)
	}
	if req.Signature == "" {
		return nil, fmt.Errorf("%w: 缺少签名", ErrValidation)
	}

	takedown := &DMCATakedown{
		ID:                 uuid.New().String(),
		CopyrightHolder:    req.CopyrightHolder,
		ContactInfo:        req.ContactInfo,
		WorkDescription:    req.WorkDescription,
		InfringingURL:      req.InfringingURL,
		GoodFaithStatement: true,
		Signature:          req.Signature,
		Status:             StatusPending,
		SubmittedAt:        time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(takedown).Error; err != nil {
		return nil, fmt.Errorf("创建投诉失败: %w", err)
	}

	metrics.DMCASubmissionsTotal.Inc()
	logger.WithContext(ctx).Info("DMCA 投诉已受理",
		zap.String("takedown_id", takedown.ID),
		zap.String("infringing_url", takedown.InfringingURL),
	)
	return takedown, nil
}

// Get 按 ID 查询投诉
func (s *Service) Get(ctx context.Context, id string) (*DMCATakedown, error) {
	var takedown DMCATakedown
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&takedown).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTakedownNotFound
		}
		return nil, fmt.Errorf("查询投诉失败: %w", err)
	}
	return &takedown, nil
}

// List 按状态分页列出投诉，提交时间先进先出
func (s *Service) List(ctx context.Context, status string, page common.PaginationRequest) ([]DMCATakedown, int64, error) {
	query := s.db.WithContext(ctx).Model(&DMCATakedown{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计投诉失败: %w", err)
	}

	var items []DMCATakedown
	err := query.
		Order("submitted_at ASC").
		Offset(page.GetOffset()).
		Limit(page.GetPageSize()).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询投诉失败: %w", err)
	}
	return items, total, nil
}

// ============================================================================
// 投诉审查
// ============================================================================

// Review 审查 DMCA 投诉
// 批准: 先按固定链接形态解析内容，解析失败整个审查失败、状态不动；
// 解析成功后在乐观守护下落终态，胜者执行软删除并通知作者。
// 驳回: 落终态并通知投诉人，无内容副作用。
func (s *Service) Review(ctx context.Context, id string, req *ReviewRequest, actorID string) (*DMCATakedown, error) {
	isAgent, err := s.IsAgent(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !isAgent {
		return nil, ErrNotAgent
	}

	takedown, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if takedown.Status != StatusPending {
		return nil, fmt.Errorf("%w: 投诉已处于终态 %s", ErrInvalidTransition, takedown.Status)
	}

	switch req.Decision {
	case DecisionApprove:
		return s.approve(ctx, takedown, req.Reason, actorID)
	case DecisionReject:
		return s.reject(ctx, takedown, req.Reason, actorID)
	default:
		return nil, fmt.Errorf("%w: 未知裁决 %s", ErrValidation, req.Decision)
	}
}

func (s *Service) approve(ctx context.Context, takedown *DMCATakedown, reason, actorID string) (*DMCATakedown, error) {
	// 先解析再落终态: 无法定位的链接让整个审查失败，
	// 绝不批准一个没有任何效果的下架。
	locator, err := ParseLocator(takedown.InfringingURL)
	if err != nil {
		return nil, err
	}
	ref, err := locator.Resolve(ctx, s.store)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&DMCATakedown{}).
		Where("id = ? AND status = ?", takedown.ID, StatusPending).
		Updates(map[string]interface{}{
			"status":              StatusApproved,
			"review_reason":       reason,
			"resolved_type":       ref.ContentType,
			"resolved_content_id": ref.ContentID,
			"reviewed_at":         now,
			"reviewed_by":         actorID,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("更新投诉状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// 并发审查的败者: 终态已被别人落下
		return nil, fmt.Errorf("%w: 投诉已被并发审查", ErrInvalidTransition)
	}

	metrics.DMCADecisionsTotal.WithLabelValues(StatusApproved).Inc()

	// 胜者独占副作用: 软删除 + 作者通知恰好各一次
	if _, err := s.enforcer.ExecuteContentEffect(ctx,
		enforcement.EffectDeleteContent, ref.ContentType, ref.ContentID,
		takedown.ID, actorID, "DMCA takedown: "+takedown.WorkDescription,
	); err != nil {
		// 决定已落库，软删除由处置侧补偿任务续作
		logger.WithContext(ctx).Error("DMCA 下架软删除当场执行失败",
			zap.String("takedown_id", takedown.ID),
			zap.Error(err),
		)
	}

	s.notifyAuthor(ctx, takedown, ref, reason)
	return s.Get(ctx, takedown.ID)
}

func (s *Service) reject(ctx context.Context, takedown *DMCATakedown, reason, actorID string) (*DMCATakedown, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&DMCATakedown{}).
		Where("id = ? AND status = ?", takedown.ID, StatusPending).
		Updates(map[string]interface{}{
			"status":        StatusRejected,
			"review_reason": reason,
			"reviewed_at":   now,
			"reviewed_by":   actorID,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("更新投诉状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: 投诉已被并发审查", ErrInvalidTransition)
	}

	metrics.DMCADecisionsTotal.WithLabelValues(StatusRejected).Inc()

	if s.notifier != nil {
		err := s.notifier.Send(ctx, "dmca_rejected", takedown.ContactInfo, map[string]any{
			"CopyrightHolder": takedown.CopyrightHolder,
			"WorkDescription": takedown.WorkDescription,
			"Reason":          reason,
		})
		if err != nil {
			logger.WithContext(ctx).Error("DMCA 驳回通知发送失败",
				zap.String("takedown_id", takedown.ID),
				zap.Error(err),
			)
		}
	}
	return s.Get(ctx, takedown.ID)
}

// notifyAuthor 批准后通知内容作者，附带反通知指引
func (s *Service) notifyAuthor(ctx context.Context, takedown *DMCATakedown, ref *content.Ref, reason string) {
	if s.notifier == nil {
		return
	}
	author, err := s.store.AuthorContact(ctx, ref.ContentType, ref.ContentID)
	if err != nil {
		logger.WithContext(ctx).Error("查询被下架内容作者失败",
			zap.String("takedown_id", takedown.ID),
			zap.Error(err),
		)
		return
	}

	err = s.notifier.Send(ctx, "dmca_takedown_notice", author.Email, map[string]any{
		"Username":           author.Username,
		"ContentType":        ref.ContentType,
		"WorkDescription":    takedown.WorkDescription,
		"CopyrightHolder":    takedown.CopyrightHolder,
		"Reason":             reason,
		"CounterNoticeEmail": s.cfg.CounterNoticeEmail,
	})
	if err != nil {
		logger.WithContext(ctx).Error("DMCA 下架通知发送失败",
			zap.String("takedown_id", takedown.ID),
			zap.Error(err),
		)
	}
}
