package detector

import (
	"time"

	"gorm.io/datatypes"
)

// ============================================================================
// 检测类别常量
// ============================================================================

const (
	CategoryProfanity  = "profanity"   // 辱骂词过滤
	CategorySpam       = "spam"        // 垃圾信息
	CategoryHateSpeech = "hate_speech" // 仇恨言论
	CategoryNSFW       = "nsfw"        // 成人内容
	CategoryPIIEmail   = "pii_email"   // 个人信息: 邮箱
	CategoryPIIPhone   = "pii_phone"   // 个人信息: 电话
	CategoryPIIAddress = "pii_address" // 个人信息: 地址
)

// KnownCategories 全部受支持的检测类别
var KnownCategories = []string{
	CategoryProfanity,
	CategorySpam,
	CategoryHateSpeech,
	CategoryNSFW,
	CategoryPIIEmail,
	CategoryPIIPhone,
	CategoryPIIAddress,
}

// ============================================================================
// 灵敏度常量
// ============================================================================

const (
	SensitivityStrict     = "STRICT"     // 激进，接受更多误报
	SensitivityModerate   = "MODERATE"   // 默认
	SensitivityPermissive = "PERMISSIVE" // 保守，只处理高置信度
)

// autoActionThresholds 灵敏度对应的自动处理阈值
// 置信度严格大于阈值才会进入人工队列，持平按低于阈值处理。
var autoActionThresholds = map[string]float64{
	SensitivityStrict:     0.60,
	SensitivityModerate:   0.75,
	SensitivityPermissive: 0.90,
}

// ThresholdFor 返回灵敏度对应的自动处理阈值，未知灵敏度按 MODERATE 处理
func ThresholdFor(sensitivity string) float64 {
	if t, ok := autoActionThresholds[sensitivity]; ok {
		return t
	}
	return autoActionThresholds[SensitivityModerate]
}

// ============================================================================
// 数据模型
// ============================================================================

// DetectorConfig 检测器配置，每个类别至多一条
type DetectorConfig struct {
	ID          string         `json:"id" gorm:"primaryKey;type:uuid"`
	Category    string         `json:"category" gorm:"size:50;not null;uniqueIndex"`
	Sensitivity string         `json:"sensitivity" gorm:"size:20;not null;default:'MODERATE'"`
	Enabled     bool           `json:"enabled" gorm:"not null;default:true"`
	Whitelist   datatypes.JSON `json:"whitelist" gorm:"type:json"`  // 字符串数组，命中则强制判负
	Blacklist   datatypes.JSON `json:"blacklist" gorm:"type:json"`  // 字符串数组，命中则强制判正且置信度 1.0
	Pattern     string         `json:"pattern" gorm:"size:500"`     // 可选正则，PII 类别本地匹配用
	RoutingRule string         `json:"routingRule" gorm:"size:500"` // 可选路由表达式，覆盖默认阈值路由
	UpdatedBy   string         `json:"updatedBy" gorm:"type:uuid"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time      `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (DetectorConfig) TableName() string {
	return "detector_configs"
}

// Threshold 当前配置的自动处理阈值
func (c *DetectorConfig) Threshold() float64 {
	return ThresholdFor(c.Sensitivity)
}

// ============================================================================
// 请求类型
// ============================================================================

// UpsertConfigRequest 创建或更新检测器配置
type UpsertConfigRequest struct {
	Category    string   `json:"category" binding:"required"`
	Sensitivity string   `json:"sensitivity" binding:"omitempty,oneof=STRICT MODERATE PERMISSIVE"`
	Enabled     *bool    `json:"enabled"`
	Whitelist   []string `json:"whitelist"`
	Blacklist   []string `json:"blacklist"`
	Pattern     string   `json:"pattern"`
	RoutingRule string   `json:"routing_rule"`
}
