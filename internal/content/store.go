package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ============================================================================
// 错误定义
// ============================================================================

var (
	ErrContentNotFound = errors.New("内容不存在")
	ErrAuthorNotFound  = errors.New("作者不存在")
	ErrUnknownType     = errors.New("未知内容类型")
)

// ============================================================================
// 内容存储接口
// ============================================================================

// Store 内容定位与处置的抽象接口
// 信任与安全子系统通过这个接口触达内容，不直接依赖内容表结构。
type Store interface {
	// ResolveStory 按 slug 定位作品
	ResolveStory(ctx context.Context, slug string) (*Ref, error)
	// ResolveChapter 按 slug 和章节序号定位章节
	ResolveChapter(ctx context.Context, slug string, number int) (*Ref, error)
	// ResolveWhisper 按 ID 定位短动态
	ResolveWhisper(ctx context.Context, id string) (*Ref, error)
	// Author 查询内容作者 ID
	Author(ctx context.Context, contentType, contentID string) (string, error)
	// SoftDelete 软删除内容，记录删除时间与操作者，永不物理删除
	SoftDelete(ctx context.Context, contentType, contentID, operatorID string) error
	// AuthorContact 查询内容作者的通知邮箱
	AuthorContact(ctx context.Context, contentType, contentID string) (*PlatformUser, error)
	// UserContact 按用户 ID 查询通知邮箱
	UserContact(ctx context.Context, userID string) (*PlatformUser, error)
}

// GormStore 基于 GORM 的内容存储实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建内容存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// ResolveStory 按 slug 定位作品
func (s *GormStore) ResolveStory(ctx context.Context, slug string) (*Ref, error) {
	var story Story
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&story).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("查询作品失败: %w", err)
	}
	return &Ref{ContentType: TypeStory, ContentID: story.ID, AuthorID: story.AuthorID}, nil
}

// ResolveChapter 按 slug 和章节序号定位章节
func (s *GormStore) ResolveChapter(ctx context.Context, slug string, number int) (*Ref, error) {
	var story Story
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&story).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("查询作品失败: %w", err)
	}

	var chapter Chapter
	err = s.db.WithContext(ctx).
		Where("story_id = ? AND number = ?", story.ID, number).
		First(&chapter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("查询章节失败: %w", err)
	}
	// 章节归属作品作者
	return &Ref{ContentType: TypeChapter, ContentID: chapter.ID, AuthorID: story.AuthorID}, nil
}

// ResolveWhisper 按 ID 定位短动态
func (s *GormStore) ResolveWhisper(ctx context.Context, id string) (*Ref, error) {
	var whisper Whisper
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&whisper).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("查询短动态失败: %w", err)
	}
	return &Ref{ContentType: TypeWhisper, ContentID: whisper.ID, AuthorID: whisper.AuthorID}, nil
}

// Author 查询内容作者 ID
func (s *GormStore) Author(ctx context.Context, contentType, contentID string) (string, error) {
	switch contentType {
	case TypeStory:
		var story Story
		if err := s.db.WithContext(ctx).Select("author_id").Where("id = ?", contentID).First(&story).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", ErrContentNotFound
			}
			return "", fmt.Errorf("查询作品失败: %w", err)
		}
		return story.AuthorID, nil

	case TypeChapter:
		var chapter Chapter
		if err := s.db.WithContext(ctx).Select("story_id").Where("id = ?", contentID).First(&chapter).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", ErrContentNotFound
			}
			return "", fmt.Errorf("查询章节失败: %w", err)
		}
		return s.Author(ctx, TypeStory, chapter.StoryID)

	case TypeWhisper:
		var whisper Whisper
		if err := s.db.WithContext(ctx).Select("author_id").Where("id = ?", contentID).First(&whisper).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return "", ErrContentNotFound
			}
			return "", fmt.Errorf("查询短动态失败: %w", err)
		}
		return whisper.AuthorID, nil

	default:
		return "", ErrUnknownType
	}
}

// SoftDelete 软删除内容
// 只写 deleted_at 时间戳，数据保留用于复核与法律合规。
func (s *GormStore) SoftDelete(ctx context.Context, contentType, contentID, operatorID string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"deleted_at": now,
		"deleted_by": operatorID,
	}

	var result *gorm.DB
	switch contentType {
	case TypeStory:
		result = s.db.WithContext(ctx).Model(&Story{}).
			Where("id = ? AND deleted_at IS NULL", contentID).
			Updates(updates)
	case TypeChapter:
		result = s.db.WithContext(ctx).Model(&Chapter{}).
			Where("id = ? AND deleted_at IS NULL", contentID).
			Updates(updates)
	case TypeWhisper:
		result = s.db.WithContext(ctx).Model(&Whisper{}).
			Where("id = ? AND deleted_at IS NULL", contentID).
			Updates(updates)
	default:
		return ErrUnknownType
	}

	if result.Error != nil {
		return fmt.Errorf("软删除内容失败: %w", result.Error)
	}
	// 已删除的内容重复删除视为幂等成功
	return nil
}

// AuthorContact 查询内容作者的通知邮箱
func (s *GormStore) AuthorContact(ctx context.Context, contentType, contentID string) (*PlatformUser, error) {
	authorID, err := s.Author(ctx, contentType, contentID)
	if err != nil {
		return nil, err
	}
	return s.UserContact(ctx, authorID)
}

// UserContact 按用户 ID 查询通知邮箱
func (s *GormStore) UserContact(ctx context.Context, userID string) (*PlatformUser, error) {
	var user PlatformUser
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAuthorNotFound
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}
