package review

import (
	"time"

	"gorm.io/datatypes"
)

// ============================================================================
// 审核角色与动作常量
// ============================================================================

// 审核角色，权限单调递增
const (
	RoleModerator       = "MODERATOR"
	RoleSeniorModerator = "SENIOR_MODERATOR"
	RoleAdministrator   = "ADMINISTRATOR"
)

// 裁决动作类型
const (
	ActionDismiss   = "DISMISS"
	ActionWarn      = "WARN"
	ActionHide      = "HIDE"
	ActionDelete    = "DELETE"
	ActionSuspend   = "SUSPEND"
	ActionShadowban = "SHADOWBAN"
)

// 裁决目标类型
const (
	TargetFlag   = "FLAG"
	TargetReport = "REPORT"
)

// ============================================================================
// 数据模型
// ============================================================================

// ModeratorRole 审核角色，每个用户至多一条
type ModeratorRole struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;uniqueIndex"`
	Role      string    `json:"role" gorm:"size:30;not null"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	GrantedBy string    `json:"grantedBy" gorm:"type:uuid"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (ModeratorRole) TableName() string {
	return "moderator_roles"
}

// Report 用户举报
type Report struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	ContentType string    `json:"contentType" gorm:"size:20;not null;index:idx_reports_content"`
	ContentID   string    `json:"contentId" gorm:"type:uuid;not null;index:idx_reports_content"`
	ReporterID  string    `json:"reporterId" gorm:"type:uuid;not null;index"`
	Reason      string    `json:"reason" gorm:"size:1000;not null"`
	Reviewed    bool      `json:"reviewed" gorm:"not null;default:false;index"`
	CreatedAt   time.Time `json:"createdAt" gorm:"not null;autoCreateTime;index"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Report) TableName() string {
	return "reports"
}

// ModerationAction 裁决记录
// 只追加，创建即不可变。纠错靠追加新动作，绝不修改旧记录，
// 举报的当前处置状态取其最近一条动作。
type ModerationAction struct {
	ID          string         `json:"id" gorm:"primaryKey;type:uuid"`
	ReportID    *string        `json:"reportId" gorm:"type:uuid;index"`
	FlagID      *string        `json:"flagId" gorm:"type:uuid;index"`
	ModeratorID string         `json:"moderatorId" gorm:"type:uuid;not null;index"`
	ActionType  string         `json:"actionType" gorm:"size:20;not null"`
	Reason      string         `json:"reason" gorm:"size:1000"`
	Metadata    datatypes.JSON `json:"metadata" gorm:"type:json"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName 指定表名
func (ModerationAction) TableName() string {
	return "moderation_actions"
}

// ============================================================================
// 请求与队列类型
// ============================================================================

// CreateReportRequest 提交举报
type CreateReportRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	ContentID   string `json:"content_id" binding:"required,uuid"`
	Reason      string `json:"reason" binding:"required,max=1000"`
}

// DecideRequest 裁决请求
type DecideRequest struct {
	TargetKind    string     `json:"target_kind" binding:"required,oneof=FLAG REPORT"`
	TargetID      string     `json:"target_id" binding:"required,uuid"`
	ActionType    string     `json:"action_type" binding:"required,oneof=DISMISS WARN HIDE DELETE SUSPEND SHADOWBAN"`
	Reason        string     `json:"reason" binding:"max=1000"`
	SubjectUserID string     `json:"subject_user_id" binding:"omitempty,uuid"` // WARN/SUSPEND/SHADOWBAN 的对象账号
	ExpiresAt     *time.Time `json:"expires_at"`                               // SUSPEND 专用，空表示无限期
}

// GrantRoleRequest 授予审核角色
type GrantRoleRequest struct {
	UserID   string `json:"user_id" binding:"required,uuid"`
	Role     string `json:"role" binding:"required,oneof=MODERATOR SENIOR_MODERATOR ADMINISTRATOR"`
	IsActive *bool  `json:"is_active"`
}

// QueueItem 人工队列条目，标记与举报合并后的统一视图
type QueueItem struct {
	Kind        string    `json:"kind"` // FLAG / REPORT
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	ContentID   string    `json:"content_id"`
	FlagType    string    `json:"flag_type,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
