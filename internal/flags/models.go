package flags

import (
	"time"

	"gorm.io/datatypes"
)

// ============================================================================
// 标记常量
// ============================================================================

// NSFW 检测方式
const (
	DetectionAutomatic  = "AUTOMATIC"   // 自动分类器判定
	DetectionManual     = "MANUAL"      // 审核员手工标记
	DetectionUserMarked = "USER_MARKED" // 作者自标
)

// ============================================================================
// 数据模型
// ============================================================================

// AutomatedFlag 自动检测标记
// 只追加，永不删除。reviewed 只会从 false 翻到 true 一次，
// 由人工裁决或自动驳回规则触发。同一内容同一类别至多一条
// 未裁决记录，由部分唯一索引保证，并发重扫撞索引后改走原地更新。
type AutomatedFlag struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	ContentType string    `json:"contentType" gorm:"size:20;not null;index:idx_flags_content;uniqueIndex:uniq_unreviewed_flag,where:reviewed = false"`
	ContentID   string    `json:"contentId" gorm:"type:uuid;not null;index:idx_flags_content;uniqueIndex:uniq_unreviewed_flag"`
	FlagType    string    `json:"flagType" gorm:"size:50;not null;index;uniqueIndex:uniq_unreviewed_flag"` // 对应检测类别
	Confidence  *float64  `json:"confidence"`                                                              // null 表示分类器不可用，强制人工复核
	Reviewed    bool      `json:"reviewed" gorm:"not null;default:false;index"`
	CreatedAt   time.Time `json:"createdAt" gorm:"not null;autoCreateTime;index"`
	UpdatedAt   time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (AutomatedFlag) TableName() string {
	return "automated_flags"
}

// NSFWFlag 成人内容标记
// 同一内容可以有多条（不同检测方式），生效状态取全部未被替代
// 且 is_nsfw = true 的标记的逻辑或。
type NSFWFlag struct {
	ID              string         `json:"id" gorm:"primaryKey;type:uuid"`
	ContentType     string         `json:"contentType" gorm:"size:20;not null;index:idx_nsfw_content"`
	ContentID       string         `json:"contentId" gorm:"type:uuid;not null;index:idx_nsfw_content"`
	IsNSFW          bool           `json:"isNsfw" gorm:"not null;default:true"`
	DetectionMethod string         `json:"detectionMethod" gorm:"size:20;not null"`
	Labels          datatypes.JSON `json:"labels" gorm:"type:json"` // 分类器返回的细分标签
	Confidence      *float64       `json:"confidence"`
	Superseded      bool           `json:"superseded" gorm:"not null;default:false"`
	MarkedBy        string         `json:"markedBy" gorm:"type:uuid"` // MANUAL / USER_MARKED 时的操作者
	CreatedAt       time.Time      `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt       time.Time      `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (NSFWFlag) TableName() string {
	return "nsfw_flags"
}

// ============================================================================
// 请求与结果类型
// ============================================================================

// ScanRequest 内容扫描请求
type ScanRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	ContentID   string `json:"content_id" binding:"required,uuid"`
	Payload     string `json:"payload" binding:"required"` // 待扫描的文本内容
}

// CategoryOutcome 单个类别的扫描结果
type CategoryOutcome struct {
	Category   string   `json:"category"`
	FlagID     string   `json:"flag_id,omitempty"`
	IsMatch    bool     `json:"is_match"`
	Confidence *float64 `json:"confidence"`
	Routed     string   `json:"routed"` // REVIEW / AUTO_DISMISSED / CLEAN / UNAVAILABLE
	Err        string   `json:"error,omitempty"`
}

// ScanResult 整体扫描结果
// 各类别彼此独立，单个检测器失败不影响其余类别，也不阻塞发布流程。
type ScanResult struct {
	ContentType string            `json:"content_type"`
	ContentID   string            `json:"content_id"`
	Outcomes    []CategoryOutcome `json:"outcomes"`
}

// 路由结果常量
const (
	RoutedReview        = "REVIEW"         // 进入人工队列
	RoutedAutoDismissed = "AUTO_DISMISSED" // 低置信度自动驳回，留档
	RoutedClean         = "CLEAN"          // 未命中，不落标记
	RoutedUnavailable   = "UNAVAILABLE"    // 分类器不可用，空置信度转人工
)

// MarkNSFWRequest 手工标记成人内容
type MarkNSFWRequest struct {
	ContentType     string   `json:"content_type" binding:"required"`
	ContentID       string   `json:"content_id" binding:"required,uuid"`
	IsNSFW          bool     `json:"is_nsfw"`
	DetectionMethod string   `json:"detection_method" binding:"required,oneof=MANUAL USER_MARKED"`
	Labels          []string `json:"labels"`
}
