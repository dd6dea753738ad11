package enforcement

import (
	"time"
)

// ============================================================================
// 处置副作用常量
// ============================================================================

const (
	EffectHideContent   = "HIDE_CONTENT"
	EffectDeleteContent = "DELETE_CONTENT"
	EffectSuspend       = "SUSPEND"
	EffectShadowban     = "SHADOWBAN"
	EffectWarn          = "WARN"
)

// ============================================================================
// 数据模型
// ============================================================================

// AccountSuspension 账号封禁
// 每个账号同一时刻至多一条 is_active = true 的记录，由部分唯一索引保证，
// 后来者替代先前者。并发插入撞索引时按冲突重试。
// expires_at 为空表示无限期。已过期但未被清扫的记录在读取时按失效处理。
type AccountSuspension struct {
	ID          string     `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      string     `json:"userId" gorm:"type:uuid;not null;index;uniqueIndex:uniq_suspension_active,where:is_active"`
	SuspendedBy string     `json:"suspendedBy" gorm:"type:uuid;not null"`
	Reason      string     `json:"reason" gorm:"size:1000"`
	SuspendedAt time.Time  `json:"suspendedAt" gorm:"not null"`
	ExpiresAt   *time.Time `json:"expiresAt" gorm:"index"`
	IsActive    bool       `json:"isActive" gorm:"not null;default:true;index"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (AccountSuspension) TableName() string {
	return "account_suspensions"
}

// Shadowban 影子封禁
// 与封禁同形，但没有过期时间，只能由审核员显式解除。
// 每个账号同样至多一条生效记录，由部分唯一索引保证。
// 封禁与影子封禁是独立维度，同一账号可以同时处于两种状态。
type Shadowban struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;index;uniqueIndex:uniq_shadowban_active,where:is_active"`
	BannedBy  string    `json:"bannedBy" gorm:"type:uuid;not null"`
	Reason    string    `json:"reason" gorm:"size:1000"`
	BannedAt  time.Time `json:"bannedAt" gorm:"not null"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Shadowban) TableName() string {
	return "shadowbans"
}

// EnforcementRecord 处置副作用执行记录
// 裁决落库即创建，applied 翻 true 才算副作用生效。失败的记录由
// 补偿任务按 attempts 有界重试，运维据此对账"已决定未生效"的处置。
type EnforcementRecord struct {
	ID            string     `json:"id" gorm:"primaryKey;type:uuid"`
	ActionID      string     `json:"actionId" gorm:"type:uuid;not null;index"`
	Effect        string     `json:"effect" gorm:"size:20;not null"`
	ContentType   string     `json:"contentType" gorm:"size:20"`
	ContentID     string     `json:"contentId" gorm:"type:uuid;index"`
	SubjectUserID string     `json:"subjectUserId" gorm:"type:uuid;index"`
	Reason        string     `json:"reason" gorm:"size:1000"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	OperatorID    string     `json:"operatorId" gorm:"type:uuid;not null"`
	Applied       bool       `json:"applied" gorm:"not null;default:false;index"`
	Attempts      int        `json:"attempts" gorm:"not null;default:0"`
	LastError     string     `json:"lastError" gorm:"size:1000"`
	AppliedAt     *time.Time `json:"appliedAt"`
	CreatedAt     time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt     time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (EnforcementRecord) TableName() string {
	return "enforcement_records"
}

// ============================================================================
// 请求与状态类型
// ============================================================================

// SuspendRequest 封禁请求
type SuspendRequest struct {
	UserID    string     `json:"user_id" binding:"required,uuid"`
	Reason    string     `json:"reason" binding:"required,max=1000"`
	ExpiresAt *time.Time `json:"expires_at"` // 空表示无限期
}

// AccountStatus 账号处置状态
// 封禁与影子封禁是两条独立轴线，分别汇报。
type AccountStatus struct {
	UserID       string             `json:"user_id"`
	Suspended    bool               `json:"suspended"`
	Shadowbanned bool               `json:"shadowbanned"`
	Suspension   *AccountSuspension `json:"suspension,omitempty"`
}
