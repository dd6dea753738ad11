package content

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:content_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Story{}, &Chapter{}, &Whisper{}, &PlatformUser{}))

	t.Cleanup(func() {
		db.Exec("DELETE FROM stories")
		db.Exec("DELETE FROM chapters")
		db.Exec("DELETE FROM whispers")
		db.Exec("DELETE FROM platform_users")
	})
	return db
}

func seedStory(t *testing.T, db *gorm.DB, slug, authorID string) *Story {
	t.Helper()
	story := &Story{
		ID:       uuid.New().String(),
		Slug:     slug,
		Title:    "测试作品",
		AuthorID: authorID,
	}
	require.NoError(t, db.Create(story).Error)
	return story
}

func TestResolveStory(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)
	ctx := context.Background()

	authorID := uuid.New().String()
	story := seedStory(t, db, "my-first-story", authorID)

	ref, err := store.ResolveStory(ctx, "my-first-story")
	require.NoError(t, err)
	assert.Equal(t, TypeStory, ref.ContentType)
	assert.Equal(t, story.ID, ref.ContentID)
	assert.Equal(t, authorID, ref.AuthorID)

	_, err = store.ResolveStory(ctx, "no-such-slug")
	assert.ErrorIs(t, err, ErrContentNotFound)
}

func TestResolveChapter(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)
	ctx := context.Background()

	authorID := uuid.New().String()
	story := seedStory(t, db, "serial-novel", authorID)
	chapter := &Chapter{
		ID:      uuid.New().String(),
		StoryID: story.ID,
		Number:  3,
		Title:   "第三章",
	}
	require.NoError(t, db.Create(chapter).Error)

	ref, err := store.ResolveChapter(ctx, "serial-novel", 3)
	require.NoError(t, err)
	assert.Equal(t, TypeChapter, ref.ContentType)
	assert.Equal(t, chapter.ID, ref.ContentID)
	// 章节作者继承作品作者
	assert.Equal(t, authorID, ref.AuthorID)

	_, err = store.ResolveChapter(ctx, "serial-novel", 99)
	assert.ErrorIs(t, err, ErrContentNotFound)
}

func TestResolveWhisper(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)
	ctx := context.Background()

	whisper := &Whisper{
		ID:       uuid.New().String(),
		AuthorID: uuid.New().String(),
		Body:     "一条短动态",
	}
	require.NoError(t, db.Create(whisper).Error)

	ref, err := store.ResolveWhisper(ctx, whisper.ID)
	require.NoError(t, err)
	assert.Equal(t, TypeWhisper, ref.ContentType)
	assert.Equal(t, whisper.AuthorID, ref.AuthorID)
}

func TestSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)
	ctx := context.Background()

	story := seedStory(t, db, "to-be-removed", uuid.New().String())
	operatorID := uuid.New().String()

	require.NoError(t, store.SoftDelete(ctx, TypeStory, story.ID, operatorID))

	var reloaded Story
	require.NoError(t, db.Where("id = ?", story.ID).First(&reloaded).Error)
	require.NotNil(t, reloaded.DeletedAt)
	assert.Equal(t, operatorID, reloaded.DeletedBy)

	// 重复删除幂等，不改写首次删除记录
	require.NoError(t, store.SoftDelete(ctx, TypeStory, story.ID, uuid.New().String()))
	var again Story
	require.NoError(t, db.Where("id = ?", story.ID).First(&again).Error)
	assert.Equal(t, operatorID, again.DeletedBy)
}

func TestSoftDeleteUnknownType(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)

	err := store.SoftDelete(context.Background(), "PODCAST", uuid.New().String(), uuid.New().String())
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestAuthorContact(t *testing.T) {
	db := setupTestDB(t)
	store := NewGormStore(db)
	ctx := context.Background()

	user := &PlatformUser{
		ID:       uuid.New().String(),
		Username: "writer_one",
		Email:    "writer@example.com",
	}
	require.NoError(t, db.Create(user).Error)
	story := seedStory(t, db, "contact-test", user.ID)

	contact, err := store.AuthorContact(ctx, TypeStory, story.ID)
	require.NoError(t, err)
	assert.Equal(t, "writer@example.com", contact.Email)

	// 作者缺失
	orphan := seedStory(t, db, "orphan-story", uuid.New().String())
	_, err = store.AuthorContact(ctx, TypeStory, orphan.ID)
	assert.ErrorIs(t, err, ErrAuthorNotFound)
}
