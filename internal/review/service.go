package review

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"backend/internal/common"
	"backend/internal/flags"
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
	ErrNoActiveRole          = errors.New("无有效审核角色")
	ErrInsufficientAuthority = errors.New("审核权限不足")
	ErrTargetNotFound        = errors.New("裁决目标不存在")
	ErrAlreadyDecided        = errors.New("目标已被裁决")
	ErrValidation            = errors.New("请求参数错误")
)

// EffectDispatcher 处置副作用分发接口
// 裁决记录落库之后调用，由处置引擎实现。记录与生效分离:
// 分发失败不回滚裁决，靠处置侧的补偿任务兜底。
type EffectDispatcher interface {
	Dispatch(ctx context.Context, action *ModerationAction, req *DecideRequest) error
}

// ============================================================================
// 审核服务
// ============================================================================

// Service 审核队列与裁决服务
type Service struct {
	db         *gorm.DB
	flags      *flags.Service
	dispatcher EffectDispatcher
}

// NewService 创建审核服务
func NewService(db *gorm.DB, flagService *flags.Service, dispatcher EffectDispatcher) *Service {
	return &Service{db: db, flags: flagService, dispatcher: dispatcher}
}

// ============================================================================
// 角色管理
// ============================================================================

// ActiveRole 查询用户当前生效的审核角色
func (s *Service) ActiveRole(ctx context.Context, userID string) (*ModeratorRole, error) {
	var role ModeratorRole
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		First(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveRole
		}
		return nil, fmt.Errorf("查询审核角色失败: %w", err)
	}
	return &role, nil
}

// IsAdministrator 判定用户是否持有生效的管理员角色
func (s *Service) IsAdministrator(ctx context.Context, userID string) (bool, error) {
	role, err := s.ActiveRole(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoActiveRole) {
			return false, nil
		}
		return false, err
	}
	return role.Role == RoleAdministrator, nil
}

// GrantRole 授予或调整审核角色
// 每个用户至多一条角色记录，重复授予走原地更新。仅管理员可操作。
func (s *Service) GrantRole(ctx context.Context, req *GrantRoleRequest, actorID string) (*ModeratorRole, error) {
	isAdmin, err := s.IsAdministrator(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, ErrInsufficientAuthority
	}

	var role ModeratorRole
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("user_id = ?", req.UserID).First(&role).Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("查询审核角色失败: %w", findErr)
		}

		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			role = ModeratorRole{
				ID:       uuid.New().String(),
				UserID:   req.UserID,
				IsActive: true,
			}
		}

		role.Role = req.Role
		role.GrantedBy = actorID
		if req.IsActive != nil {
			role.IsActive = *req.IsActive
		}

		if err := tx.Save(&role).Error; err != nil {
			return fmt.Errorf("保存审核角色失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("审核角色已变更",
		zap.String("user_id", role.UserID),
		zap.String("role", role.Role),
		zap.Bool("is_active", role.IsActive),
		zap.String("granted_by", actorID),
	)
	return &role, nil
}

// ============================================================================
// 举报
// ============================================================================

// CreateReport 提交举报
func (s *Service) CreateReport(ctx context.Context, req *CreateReportRequest, reporterID string) (*Report, error) {
	report := Report{
		ID:          uuid.New().String(),
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		ReporterID:  reporterID,
		Reason:      req.Reason,
	}
	if err := s.db.WithContext(ctx).Create(&report).Error; err != nil {
		return nil, fmt.Errorf("创建举报失败: %w", err)
	}
	return &report, nil
}

// ============================================================================
// 人工队列
// ============================================================================

// ListPending 列出待裁决队列
// 未裁决的标记与举报合并后按创建时间先进先出，保证没有条目饿死。
func (s *Service) ListPending(ctx context.Context, page common.PaginationRequest) ([]QueueItem, int64, error) {
	fetch := page.GetOffset() + page.GetPageSize()

	var pendingFlags []flags.AutomatedFlag
	err := s.db.WithContext(ctx).
		Where("reviewed = ?", false).
		Order("created_at ASC").
		Limit(fetch).
		Find(&pendingFlags).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询待裁决标记失败: %w", err)
	}

	var pendingReports []Report
	err = s.db.WithContext(ctx).
		Where("reviewed = ?", false).
		Order("created_at ASC").
		Limit(fetch).
		Find(&pendingReports).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询待裁决举报失败: %w", err)
	}

	items := make([]QueueItem, 0, len(pendingFlags)+len(pendingReports))
	for _, f := range pendingFlags {
		items = append(items, QueueItem{
			Kind:        TargetFlag,
			ID:          f.ID,
			ContentType: f.ContentType,
			ContentID:   f.ContentID,
			FlagType:    f.FlagType,
			Confidence:  f.Confidence,
			CreatedAt:   f.CreatedAt,
		})
	}
	for _, r := range pendingReports {
		items = append(items, QueueItem{
			Kind:        TargetReport,
			ID:          r.ID,
			ContentType: r.ContentType,
			ContentID:   r.ContentID,
			Reason:      r.Reason,
			CreatedAt:   r.CreatedAt,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	var flagTotal, reportTotal int64
	if err := s.db.WithContext(ctx).Model(&flags.AutomatedFlag{}).Where("reviewed = ?", false).Count(&flagTotal).Error; err != nil {
		return nil, 0, fmt.Errorf("统计待裁决标记失败: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&Report{}).Where("reviewed = ?", false).Count(&reportTotal).Error; err != nil {
		return nil, 0, fmt.Errorf("统计待裁决举报失败: %w", err)
	}
	total := flagTotal + reportTotal
	metrics.ReviewQueuePending.Set(float64(total))

	offset := page.GetOffset()
	if offset >= len(items) {
		return []QueueItem{}, total, nil
	}
	end := offset + page.GetPageSize()
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], total, nil
}

// ============================================================================
// 裁决
// ============================================================================

// Decide 对标记或举报做出裁决
// 权限校验 -> 同一事务内落裁决记录并翻转 reviewed -> 事务外分发处置副作用。
// 裁决记录只追加，没有更新和删除路径。
func (s *Service) Decide(ctx context.Context, req *DecideRequest, actorID string) (*ModerationAction, error) {
	role, err := s.ActiveRole(ctx, actorID)
	if err != nil {
		return nil, err
	}

	indefinite := req.ActionType == ActionSuspend && req.ExpiresAt == nil
	if AuthorityLevel(role.Role) < RequiredAuthority(req.ActionType, indefinite) {
		return nil, ErrInsufficientAuthority
	}

	if needsSubject(req.ActionType) && req.SubjectUserID == "" {
		return nil, fmt.Errorf("%w: 动作 %s 需要 subject_user_id", ErrValidation, req.ActionType)
	}

	action := &ModerationAction{
		ID:          uuid.New().String(),
		ModeratorID: actorID,
		ActionType:  req.ActionType,
		Reason:      req.Reason,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch req.TargetKind {
		case TargetFlag:
			if err := s.flags.MarkReviewed(ctx, tx, req.TargetID); err != nil {
				if errors.Is(err, flags.ErrFlagNotFound) {
					return ErrTargetNotFound
				}
				if errors.Is(err, flags.ErrAlreadyReviewed) {
					return ErrAlreadyDecided
				}
				return err
			}
			action.FlagID = &req.TargetID

		case TargetReport:
			result := tx.Model(&Report{}).
				Where("id = ? AND reviewed = ?", req.TargetID, false).
				Update("reviewed", true)
			if result.Error != nil {
				return fmt.Errorf("更新举报状态失败: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				var exists int64
				if err := tx.Model(&Report{}).Where("id = ?", req.TargetID).Count(&exists).Error; err != nil {
					return fmt.Errorf("查询举报失败: %w", err)
				}
				if exists == 0 {
					return ErrTargetNotFound
				}
				return ErrAlreadyDecided
			}
			action.ReportID = &req.TargetID

		default:
			return fmt.Errorf("%w: 未知目标类型 %s", ErrValidation, req.TargetKind)
		}

		if err := tx.Create(action).Error; err != nil {
			return fmt.Errorf("创建裁决记录失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ModerationDecisionsTotal.WithLabelValues(req.ActionType).Inc()
	logger.WithContext(ctx).Info("裁决已记录",
		zap.String("action_id", action.ID),
		zap.String("action_type", action.ActionType),
		zap.String("moderator_id", actorID),
	)

	// 裁决已落库，分发失败交给处置侧补偿任务，不回滚裁决
	if s.dispatcher != nil && req.ActionType != ActionDismiss {
		if err := s.dispatcher.Dispatch(ctx, action, req); err != nil {
			logger.WithContext(ctx).Error("处置副作用分发失败",
				zap.String("action_id", action.ID),
				zap.Error(err),
			)
		}
	}

	return action, nil
}

// ListActions 查询裁决历史
func (s *Service) ListActions(ctx context.Context, targetKind, targetID string, page common.PaginationRequest) ([]ModerationAction, int64, error) {
	query := s.db.WithContext(ctx).Model(&ModerationAction{})
	switch targetKind {
	case TargetFlag:
		query = query.Where("flag_id = ?", targetID)
	case TargetReport:
		query = query.Where("report_id = ?", targetID)
	default:
		return nil, 0, fmt.Errorf("%w: 未知目标类型 %s", ErrValidation, targetKind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计裁决记录失败: %w", err)
	}

	var actions []ModerationAction
	err := query.
		Order("created_at DESC").
		Offset(page.GetOffset()).
		Limit(page.GetPageSize()).
		Find(&actions).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询裁决记录失败: %w", err)
	}
	return actions, total, nil
}

// needsSubject 判定动作是否需要对象账号
func needsSubject(actionType string) bool {
	switch actionType {
	case ActionWarn, ActionSuspend, ActionShadowban:
		return true
	}
	return false
}
