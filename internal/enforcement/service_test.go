package enforcement

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"backend/internal/audit"
	"backend/internal/content"
	"backend/internal/logger"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init("error", "console", "stderr")
	os.Exit(m.Run())
}

// fakeStore 测试用内容存储
type fakeStore struct {
	mu       sync.Mutex
	deleted  []string
	failWith error
	users    map[string]*content.PlatformUser
}

func (f *fakeStore) ResolveStory(context.Context, string) (*content.Ref, error) {
	return nil, content.ErrContentNotFound
}
func (f *fakeStore) ResolveChapter(context.Context, string, int) (*content.Ref, error) {
	return nil, content.ErrContentNotFound
}
func (f *fakeStore) ResolveWhisper(context.Context, string) (*content.Ref, error) {
	return nil, content.ErrContentNotFound
}
func (f *fakeStore) Author(context.Context, string, string) (string, error) {
	return "", content.ErrContentNotFound
}
func (f *fakeStore) SoftDelete(_ context.Context, contentType, contentID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.deleted = append(f.deleted, contentType+":"+contentID)
	return nil
}
func (f *fakeStore) AuthorContact(context.Context, string, string) (*content.PlatformUser, error) {
	return nil, content.ErrAuthorNotFound
}
func (f *fakeStore) UserContact(_ context.Context, userID string) (*content.PlatformUser, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, content.ErrAuthorNotFound
}

// fakeNotifier 测试用通知发送器
type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) Send(_ context.Context, template, recipient string, _ map[string]any) error {
	f.sent = append(f.sent, template+"->"+recipient)
	return nil
}

type enforcementEnv struct {
	db       *gorm.DB
	store    *fakeStore
	notifier *fakeNotifier
	service  *Service
}

func setupEnforcement(t *testing.T) *enforcementEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:enforcement_test?mode=memory&cache=shared"), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&AccountSuspension{}, &Shadowban{}, &EnforcementRecord{}, &audit.Entry{},
	))
	t.Cleanup(func() {
		db.Exec("DELETE FROM account_suspensions")
		db.Exec("DELETE FROM shadowbans")
		db.Exec("DELETE FROM enforcement_records")
		db.Exec("DELETE FROM audit_entries")
	})

	store := &fakeStore{users: map[string]*content.PlatformUser{}}
	notifier := &fakeNotifier{}
	return &enforcementEnv{
		db:       db,
		store:    store,
		notifier: notifier,
		service:  NewService(db, store, audit.NewTrail(db), notifier, 3),
	}
}

// ============================================================================
// 封禁
// ============================================================================

func TestLatestSuspensionWins(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()
	userID := uuid.New().String()
	actorID := uuid.New().String()

	first, err := env.service.ApplySuspension(ctx, &SuspendRequest{
		UserID: userID,
		Reason: "第一次封禁",
	}, actorID)
	require.NoError(t, err)

	second, err := env.service.ApplySuspension(ctx, &SuspendRequest{
		UserID: userID,
		Reason: "第二次封禁",
	}, actorID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// 恰好一条生效，且是后来者
	var active []AccountSuspension
	require.NoError(t, env.db.Where("user_id = ? AND is_active = ?", userID, true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	// 旧记录保留为失效，不被删除
	var total int64
	env.db.Model(&AccountSuspension{}).Where("user_id = ?", userID).Count(&total)
	assert.EqualValues(t, 2, total)
}

func TestConcurrentSuspensionSingleActive(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()
	userID := uuid.New().String()

	var wg sync.WaitGroup
	succeeded := make(chan struct{}, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.ApplySuspension(ctx, &SuspendRequest{
				UserID: userID,
				Reason: "并发封禁",
			}, uuid.New().String())
			if err == nil {
				succeeded <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(succeeded)
	require.NotEmpty(t, succeeded, "至少一次封禁成功")

	var active int64
	env.db.Model(&AccountSuspension{}).Where("user_id = ? AND is_active = ?", userID, true).Count(&active)
	assert.EqualValues(t, 1, active, "并发封禁后恰好一条生效")
}

func TestActiveSuspensionUniqueIndex(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()
	userID := uuid.New().String()

	require.NoError(t, env.db.Create(&AccountSuspension{
		ID:          uuid.New().String(),
		UserID:      userID,
		SuspendedBy: uuid.New().String(),
		SuspendedAt: time.Now().UTC(),
		IsActive:    true,
	}).Error)

	// 绕过服务直插第二条生效记录，部分唯一索引拒绝
	err := env.db.Create(&AccountSuspension{
		ID:          uuid.New().String(),
		UserID:      userID,
		SuspendedBy: uuid.New().String(),
		SuspendedAt: time.Now().UTC(),
		IsActive:    true,
	}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// 失效的历史记录不受唯一索引约束
	require.NoError(t, env.db.Create(&AccountSuspension{
		ID:          uuid.New().String(),
		UserID:      userID,
		SuspendedBy: uuid.New().String(),
		SuspendedAt: time.Now().UTC().Add(-time.Hour),
		IsActive:    false,
	}).Error)

	// 服务路径先停用既有生效记录再插入，最终仍恰好一条生效
	latest, err := env.service.ApplySuspension(ctx, &SuspendRequest{
		UserID: userID,
		Reason: "接管封禁",
	}, uuid.New().String())
	require.NoError(t, err)

	var active []AccountSuspension
	require.NoError(t, env.db.Where("user_id = ? AND is_active = ?", userID, true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, latest.ID, active[0].ID)
}

func TestActiveShadowbanUniqueIndex(t *testing.T) {
	env := setupEnforcement(t)
	userID := uuid.New().String()

	require.NoError(t, env.db.Create(&Shadowban{
		ID:       uuid.New().String(),
		UserID:   userID,
		BannedBy: uuid.New().String(),
		BannedAt: time.Now().UTC(),
		IsActive: true,
	}).Error)

	err := env.db.Create(&Shadowban{
		ID:       uuid.New().String(),
		UserID:   userID,
		BannedBy: uuid.New().String(),
		BannedAt: time.Now().UTC(),
		IsActive: true,
	}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestConcurrentShadowbanSingleActive(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()
	userID := uuid.New().String()

	var wg sync.WaitGroup
	succeeded := make(chan struct{}, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.service.ApplyShadowban(ctx, userID, "并发影子封禁", uuid.New().String())
			if err == nil {
				succeeded <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(succeeded)
	require.NotEmpty(t, succeeded, "至少一次影子封禁成功")

	var active int64
	env.db.Model(&Shadowban{}).Where("user_id = ? AND is_active = ?", userID, true).Count(&active)
	assert.EqualValues(t, 1, active, "并发影子封禁后恰好一条生效")
}

func TestIsSuspendedReadTimeExpiry(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()
	userID := uuid.New().String()

	// 已过期但 is_active 尚未翻转
	expired := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, env.db.Create(&AccountSuspension{
		ID:          uuid.New().String(),
		UserID:      userID,
		SuspendedBy: uuid.New().String(),
		SuspendedAt: time.Now().UTC().Add(-48 * time.Hour),
		ExpiresAt:   &expired,
		IsActive:    true,
	}).Error)

	suspended, err := env.service.IsSuspended(ctx, userID)
	require.NoError(t, err)
	assert.False(t, suspended, "过期封禁在读取时按失效处理")

	// 无限期封禁始终生效
	require.NoError(t, env.db.Create(&AccountSuspension{
		ID:          uuid.New().String(),
		UserID:      userID,
		SuspendedBy: uuid.New().String(),
		SuspendedAt: time.Now().UTC(),
		IsActive:    true,
	}).Error)
	suspended, err = env.service.IsSuspended(ctx, userID)
	require.NoError(t, err)
	assert.True(t, suspended)
}

func TestSweepExpired(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()
	userID := uuid.New().String()

	expired := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, env.db.Create(&AccountSuspension{
		ID:          uuid.New().String(),
		UserID:      userID,
		SuspendedBy: uuid.New().String(),
		SuspendedAt: time.Now().UTC().Add(-time.Hour),
		ExpiresAt:   &expired,
		IsActive:    true,
	}).Error)

	swept, err := env.service.SweepExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, swept)

	var active int64
	env.db.Model(&AccountSuspension{}).Where("is_active = ?", true).Count(&active)
	assert.Zero(t, active)

	// 再次清扫无事可做
	swept, err = env.service.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestLiftSuspension(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()
	userID := uuid.New().String()
	actorID := uuid.New().String()

	_, err := env.service.ApplySuspension(ctx, &SuspendRequest{UserID: userID, Reason: "测试"}, actorID)
	require.NoError(t, err)

	require.NoError(t, env.service.LiftSuspension(ctx, userID, actorID))
	suspended, err := env.service.IsSuspended(ctx, userID)
	require.NoError(t, err)
	assert.False(t, suspended)

	assert.ErrorIs(t, env.service.LiftSuspension(ctx, userID, actorID), ErrSuspensionNotFound)
}

// ============================================================================
// 影子封禁
// ============================================================================

func TestShadowbanIndependentAxis(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()
	userID := uuid.New().String()
	actorID := uuid.New().String()

	_, err := env.service.ApplyShadowban(ctx, userID, "刷量行为", actorID)
	require.NoError(t, err)
	_, err = env.service.ApplySuspension(ctx, &SuspendRequest{UserID: userID, Reason: "严重违规"}, actorID)
	require.NoError(t, err)

	// 同一账号可同时处于封禁与影子封禁
	status, err := env.service.Status(ctx, userID)
	require.NoError(t, err)
	assert.True(t, status.Suspended)
	assert.True(t, status.Shadowbanned)
	require.NotNil(t, status.Suspension)

	// 解除封禁不影响影子封禁
	require.NoError(t, env.service.LiftSuspension(ctx, userID, actorID))
	status, err = env.service.Status(ctx, userID)
	require.NoError(t, err)
	assert.False(t, status.Suspended)
	assert.True(t, status.Shadowbanned)

	require.NoError(t, env.service.LiftShadowban(ctx, userID, actorID))
	banned, err := env.service.IsShadowbanned(ctx, userID)
	require.NoError(t, err)
	assert.False(t, banned)
}

// ============================================================================
// 副作用执行
// ============================================================================

func seedRecord(t *testing.T, env *enforcementEnv, record *EnforcementRecord) *EnforcementRecord {
	t.Helper()
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.ActionID == "" {
		record.ActionID = uuid.New().String()
	}
	if record.OperatorID == "" {
		record.OperatorID = uuid.New().String()
	}
	require.NoError(t, env.db.Create(record).Error)
	return record
}

func TestApplyEffectSoftDelete(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()

	record := seedRecord(t, env, &EnforcementRecord{
		Effect:      EffectDeleteContent,
		ContentType: content.TypeStory,
		ContentID:   uuid.New().String(),
	})

	require.NoError(t, env.service.ApplyEffect(ctx, record.ID))
	assert.Len(t, env.store.deleted, 1)

	var reloaded EnforcementRecord
	require.NoError(t, env.db.Where("id = ?", record.ID).First(&reloaded).Error)
	assert.True(t, reloaded.Applied)
	assert.Equal(t, 1, reloaded.Attempts)
	require.NotNil(t, reloaded.AppliedAt)

	// 重复执行幂等，不二次触达内容存储
	require.NoError(t, env.service.ApplyEffect(ctx, record.ID))
	assert.Len(t, env.store.deleted, 1)
}

func TestApplyEffectFailureKeepsDecision(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()
	env.store.failWith = errors.New("内容服务不可达")

	record := seedRecord(t, env, &EnforcementRecord{
		Effect:      EffectHideContent,
		ContentType: content.TypeChapter,
		ContentID:   uuid.New().String(),
	})

	err := env.service.ApplyEffect(ctx, record.ID)
	require.Error(t, err)

	// 决定保留，副作用未生效，等待重试
	var reloaded EnforcementRecord
	require.NoError(t, env.db.Where("id = ?", record.ID).First(&reloaded).Error)
	assert.False(t, reloaded.Applied)
	assert.Equal(t, 1, reloaded.Attempts)
	assert.Contains(t, reloaded.LastError, "内容服务不可达")

	// 审计留痕 effect_applied = false
	var entries []audit.Entry
	require.NoError(t, env.db.Where("resource_id = ?", record.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].EffectApplied)
	assert.False(t, *entries[0].EffectApplied)

	// 故障恢复后重试成功
	env.store.failWith = nil
	require.NoError(t, env.service.ApplyEffect(ctx, record.ID))
	require.NoError(t, env.db.Where("id = ?", record.ID).First(&reloaded).Error)
	assert.True(t, reloaded.Applied)
	assert.Equal(t, 2, reloaded.Attempts)
}

func TestApplyEffectWarnSendsNotification(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()

	userID := uuid.New().String()
	env.store.users[userID] = &content.PlatformUser{
		ID:       userID,
		Username: "careless_writer",
		Email:    "writer@example.com",
	}

	record := seedRecord(t, env, &EnforcementRecord{
		Effect:        EffectWarn,
		SubjectUserID: userID,
		Reason:        "轻微违规",
	})

	require.NoError(t, env.service.ApplyEffect(ctx, record.ID))
	require.Len(t, env.notifier.sent, 1)
	assert.Equal(t, "account_warning->writer@example.com", env.notifier.sent[0])
}

func TestListUnappliedRespectsMaxAttempts(t *testing.T) {
	env := setupEnforcement(t)
	ctx := context.Background()

	fresh := seedRecord(t, env, &EnforcementRecord{
		Effect:      EffectHideContent,
		ContentType: content.TypeStory,
		ContentID:   uuid.New().String(),
	})
	exhausted := seedRecord(t, env, &EnforcementRecord{
		Effect:      EffectHideContent,
		ContentType: content.TypeStory,
		ContentID:   uuid.New().String(),
		Attempts:    5,
	})

	records, err := env.service.ListUnapplied(ctx, 5, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, fresh.ID, records[0].ID)
	assert.NotEqual(t, exhausted.ID, records[0].ID)
}
