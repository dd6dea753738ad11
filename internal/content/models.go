package content

import (
	"time"
)

// 内容类型常量
// 信任与安全子系统只通过 (content_type, content_id) 引用内容，不拥有内容表结构。
const (
	TypeStory   = "STORY"
	TypeChapter = "CHAPTER"
	TypeWhisper = "WHISPER"
	TypeImage   = "IMAGE"
)

// ============================================================================
// 内容引用表（内容子系统所有，这里仅保留定位与软删除所需的最小列）
// ============================================================================

// Story 作品
type Story struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid"`
	Slug      string     `json:"slug" gorm:"size:200;not null;uniqueIndex"`
	Title     string     `json:"title" gorm:"size:255"`
	AuthorID  string     `json:"authorId" gorm:"type:uuid;not null;index"`
	DeletedAt *time.Time `json:"deletedAt" gorm:"index"` // 软删除时间戳，永不物理删除
	DeletedBy string     `json:"deletedBy" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Story) TableName() string {
	return "stories"
}

// Chapter 章节
type Chapter struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid"`
	StoryID   string     `json:"storyId" gorm:"type:uuid;not null;index:idx_chapters_story_number,unique"`
	Number    int        `json:"number" gorm:"not null;index:idx_chapters_story_number,unique"`
	Title     string     `json:"title" gorm:"size:255"`
	DeletedAt *time.Time `json:"deletedAt" gorm:"index"`
	DeletedBy string     `json:"deletedBy" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// Whisper 短动态
type Whisper struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid"`
	AuthorID  string     `json:"authorId" gorm:"type:uuid;not null;index"`
	Body      string     `json:"body" gorm:"type:text"`
	DeletedAt *time.Time `json:"deletedAt" gorm:"index"`
	DeletedBy string     `json:"deletedBy" gorm:"type:uuid"`
	CreatedAt time.Time  `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time  `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (Whisper) TableName() string {
	return "whispers"
}

// PlatformUser 平台用户（用户子系统所有，这里仅保留通知寻址所需的最小列）
type PlatformUser struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	Username string `json:"username" gorm:"size:100;not null"`
	Email    string `json:"email" gorm:"size:255;not null"`
}

// TableName 指定表名
func (PlatformUser) TableName() string {
	return "platform_users"
}

// ============================================================================
// 定位结果
// ============================================================================

// Ref 内容引用，定位结果
type Ref struct {
	ContentType string `json:"contentType"`
	ContentID   string `json:"contentId"`
	AuthorID    string `json:"authorId"`
}
