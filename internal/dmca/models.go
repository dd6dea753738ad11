package dmca

import (
	"time"
)

// ============================================================================
// 状态常量
// ============================================================================

// 投诉状态，APPROVED 与 REJECTED 为终态，一经设定不可更改
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// 裁决动作
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// ============================================================================
// 数据模型
// ============================================================================

// DMCATakedown DMCA 下架投诉
type DMCATakedown struct {
	ID                 string     `json:"id" gorm:"primaryKey;type:uuid"`
	CopyrightHolder    string     `json:"copyrightHolder" gorm:"size:255;not null"`
	ContactInfo        string     `json:"contactInfo" gorm:"size:255;not null"` // 投诉人联系邮箱
	WorkDescription    string     `json:"workDescription" gorm:"type:text;not null"`
	InfringingURL      string     `json:"infringingUrl" gorm:"size:500;not null"`
	GoodFaithStatement bool       `json:"goodFaithStatement" gorm:"not null"`
	Signature          string     `json:"signature" gorm:"size:255;not null"`
	Status             string     `json:"status" gorm:"size:20;not null;default:'PENDING';index"`
	ReviewReason       string     `json:"reviewReason" gorm:"size:1000"`
	ResolvedType       string     `json:"resolvedType" gorm:"size:20"` // 批准时解析出的内容类型
	ResolvedContentID  string     `json:"resolvedContentId" gorm:"type:uuid"`
	SubmittedAt        time.Time  `json:"submittedAt" gorm:"not null"`
	ReviewedAt         *time.Time `json:"reviewedAt"`
	ReviewedBy         string     `json:"reviewedBy" gorm:"type:uuid"`
	CreatedAt          time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt          time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (DMCATakedown) TableName() string {
	return "dmca_takedowns"
}

// DMCAAgent DMCA 代理资格
// 法律合规责任独立，不挂在审核角色阶梯上，单独授予单独校验。
type DMCAAgent struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;uniqueIndex"`
	GrantedBy string    `json:"grantedBy" gorm:"type:uuid;not null"`
	IsActive  bool      `json:"isActive" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (DMCAAgent) TableName() string {
	return "dmca_agents"
}

// ============================================================================
// 请求类型
// ============================================================================

// SubmitRequest 提交 DMCA 投诉
type SubmitRequest struct {
	CopyrightHolder    string `json:"copyright_holder" binding:"required,max=255"`
	ContactInfo        string `json:"contact_info" binding:"required,email"`
	WorkDescription    string `json:"work_description" binding:"required"`
	InfringingURL      string `json:"infringing_url" binding:"required,max=500"`
	GoodFaithStatement bool   `json:"good_faith_statement"`
	Signature          string `json:"signature" binding:"required,max=255"`
}

// ReviewRequest 审查 DMCA 投诉
type ReviewRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Reason   string `json:"reason" binding:"max=1000"`
}

// GrantAgentRequest 授予 DMCA 代理资格
type GrantAgentRequest struct {
	UserID   string `json:"user_id" binding:"required,uuid"`
	IsActive *bool  `json:"is_active"`
}
