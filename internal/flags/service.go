package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service 标记查询与 NSFW 状态服务
type Service struct {
	db *gorm.DB
}

// NewService 创建标记服务
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// GetFlag 按 ID 查询标记
func (s *Service) GetFlag(ctx context.Context, id string) (*AutomatedFlag, error) {
	var flag AutomatedFlag
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&flag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlagNotFound
		}
		return nil, fmt.Errorf("查询标记失败: %w", err)
	}
	return &flag, nil
}

// ListUnreviewed 按创建时间先进先出列出未裁决标记
func (s *Service) ListUnreviewed(ctx context.Context, page common.PaginationRequest) ([]AutomatedFlag, int64, error) {
	var total int64
	query := s.db.WithContext(ctx).Model(&AutomatedFlag{}).Where("reviewed = ?", false)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计未裁决标记失败: %w", err)
	}

	var items []AutomatedFlag
	err := query.
		Order("created_at ASC").
		Offset(page.GetOffset()).
		Limit(page.GetPageSize()).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询未裁决标记失败: %w", err)
	}
	return items, total, nil
}

// MarkReviewed 将标记置为已裁决
// reviewed 只允许从 false 翻到 true 一次，重复裁决返回 ErrAlreadyReviewed。
// 通常在裁决事务内调用，tx 传裁决事务句柄。
func (s *Service) MarkReviewed(ctx context.Context, tx *gorm.DB, flagID string) error {
	if tx == nil {
		tx = s.db
	}
	result := tx.WithContext(ctx).Model(&AutomatedFlag{}).
		Where("id = ? AND reviewed = ?", flagID, false).
		Update("reviewed", true)
	if result.Error != nil {
		return fmt.Errorf("更新标记状态失败: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var exists int64
		if err := tx.WithContext(ctx).Model(&AutomatedFlag{}).Where("id = ?", flagID).Count(&exists).Error; err != nil {
			return fmt.Errorf("查询标记失败: %w", err)
		}
		if exists == 0 {
			return ErrFlagNotFound
		}
		return ErrAlreadyReviewed
	}
	return nil
}

// ============================================================================
// NSFW 状态
// ============================================================================

// MarkNSFW 手工或作者自标成人内容
// is_nsfw = false 表示清除标记: 把该内容全部未替代标记置为已替代。
func (s *Service) MarkNSFW(ctx context.Context, req *MarkNSFWRequest, actorID string) (*NSFWFlag, error) {
	if !req.IsNSFW {
		err := s.db.WithContext(ctx).Model(&NSFWFlag{}).
			Where("content_type = ? AND content_id = ? AND superseded = ?",
				req.ContentType, req.ContentID, false).
			Update("superseded", true).Error
		if err != nil {
			return nil, fmt.Errorf("清除 NSFW 标记失败: %w", err)
		}
		return nil, nil
	}

	var labelJSON datatypes.JSON
	if len(req.Labels) > 0 {
		raw, err := json.Marshal(req.Labels)
		if err == nil {
			labelJSON = datatypes.JSON(raw)
		}
	}

	flag := NSFWFlag{
		ID:              uuid.New().String(),
		ContentType:     req.ContentType,
		ContentID:       req.ContentID,
		IsNSFW:          true,
		DetectionMethod: req.DetectionMethod,
		Labels:          labelJSON,
		MarkedBy:        actorID,
	}
	if err := s.db.WithContext(ctx).Create(&flag).Error; err != nil {
		return nil, fmt.Errorf("创建 NSFW 标记失败: %w", err)
	}
	return &flag, nil
}

// EffectiveNSFW 推导内容的生效 NSFW 状态
// 取全部未被替代且 is_nsfw = true 的标记的逻辑或。
func (s *Service) EffectiveNSFW(ctx context.Context, contentType, contentID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&NSFWFlag{}).
		Where("content_type = ? AND content_id = ? AND is_nsfw = ? AND superseded = ?",
			contentType, contentID, true, false).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("查询 NSFW 标记失败: %w", err)
	}
	return count > 0, nil
}

// ListNSFWFlags 列出内容的全部 NSFW 标记（含已替代，审计用）
func (s *Service) ListNSFWFlags(ctx context.Context, contentType, contentID string) ([]NSFWFlag, error) {
	var items []NSFWFlag
	err := s.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ?", contentType, contentID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("查询 NSFW 标记失败: %w", err)
	}
	return items, nil
}
