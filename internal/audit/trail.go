package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/common"
	"backend/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ============================================================================
// 数据模型
// ============================================================================

// Entry 审计条目
// 只追加的处置轨迹。effect_applied 区分"已做出决定"和"副作用已生效":
// 邮件或软删除失败时决定照样留痕，effect_applied 置 false 供运维对账。
type Entry struct {
	ID            string         `json:"id" gorm:"primaryKey;type:uuid"`
	ActorID       string         `json:"actorId" gorm:"type:uuid;index"`
	Action        string         `json:"action" gorm:"size:60;not null;index"`
	Resource      string         `json:"resource" gorm:"size:60;not null"`
	ResourceID    string         `json:"resourceId" gorm:"size:64;index"`
	Details       datatypes.JSON `json:"details" gorm:"type:json"`
	EffectApplied *bool          `json:"effectApplied"` // null 表示该动作没有外部副作用
	CreatedAt     time.Time      `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName 指定表名
func (Entry) TableName() string {
	return "audit_entries"
}

// ============================================================================
// 审计轨迹
// ============================================================================

// Trail 审计轨迹服务
// 写入失败只打日志，绝不让业务流程因为审计失败而中断。
type Trail struct {
	db *gorm.DB
}

// NewTrail 创建审计轨迹服务
func NewTrail(db *gorm.DB) *Trail {
	return &Trail{db: db}
}

// Record 记录一条无外部副作用的审计条目
func (t *Trail) Record(ctx context.Context, actorID, action, resource, resourceID string, details any) {
	t.write(ctx, actorID, action, resource, resourceID, details, nil)
}

// RecordEffect 记录一条带副作用状态的审计条目
func (t *Trail) RecordEffect(ctx context.Context, actorID, action, resource, resourceID string, details any, applied bool) {
	t.write(ctx, actorID, action, resource, resourceID, details, &applied)
}

func (t *Trail) write(ctx context.Context, actorID, action, resource, resourceID string, details any, applied *bool) {
	var detailJSON datatypes.JSON
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			detailJSON = datatypes.JSON(raw)
		}
	}

	entry := Entry{
		ID:            uuid.New().String(),
		ActorID:       actorID,
		Action:        action,
		Resource:      resource,
		ResourceID:    resourceID,
		Details:       detailJSON,
		EffectApplied: applied,
	}

	if err := t.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logger.WithContext(ctx).Error("写入审计条目失败",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Error(err),
		)
	}
}

// ============================================================================
// 查询
// ============================================================================

// Filter 审计日志查询条件
type Filter struct {
	ActorID  string
	Action   string
	Resource string
	From     *time.Time
	To       *time.Time
}

// Query 按条件分页查询审计条目
func (t *Trail) Query(ctx context.Context, f Filter, page common.PaginationRequest) ([]Entry, int64, error) {
	query := t.db.WithContext(ctx).Model(&Entry{})
	if f.ActorID != "" {
		query = query.Where("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.Resource != "" {
		query = query.Where("resource = ?", f.Resource)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计审计条目失败: %w", err)
	}

	var entries []Entry
	err := query.
		Order("created_at DESC").
		Offset(page.GetOffset()).
		Limit(page.GetPageSize()).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询审计条目失败: %w", err)
	}
	return entries, total, nil
}
