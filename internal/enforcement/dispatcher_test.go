package enforcement

import (
	"context"
	"errors"
	"testing"

	"backend/internal/audit"
	"backend/internal/content"
	"backend/internal/detector"
	"backend/internal/flags"
	"backend/internal/review"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// fakeEnqueuer 记录入队调用
type fakeEnqueuer struct {
	enqueued []string
}

func (f *fakeEnqueuer) EnqueueApplyEffect(_ context.Context, recordID string) error {
	f.enqueued = append(f.enqueued, recordID)
	return nil
}

type dispatcherEnv struct {
	db         *gorm.DB
	store      *fakeStore
	enqueuer   *fakeEnqueuer
	dispatcher *Dispatcher
}

func setupDispatcher(t *testing.T) *dispatcherEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:dispatcher_test?mode=memory&cache=shared"), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&AccountSuspension{}, &Shadowban{}, &EnforcementRecord{}, &audit.Entry{},
		&flags.AutomatedFlag{}, &review.Report{}, &review.ModerationAction{},
	))
	t.Cleanup(func() {
		db.Exec("DELETE FROM account_suspensions")
		db.Exec("DELETE FROM shadowbans")
		db.Exec("DELETE FROM enforcement_records")
		db.Exec("DELETE FROM audit_entries")
		db.Exec("DELETE FROM automated_flags")
		db.Exec("DELETE FROM reports")
		db.Exec("DELETE FROM moderation_actions")
	})

	store := &fakeStore{users: map[string]*content.PlatformUser{}}
	service := NewService(db, store, audit.NewTrail(db), &fakeNotifier{}, 3)
	enqueuer := &fakeEnqueuer{}
	return &dispatcherEnv{
		db:         db,
		store:      store,
		enqueuer:   enqueuer,
		dispatcher: NewDispatcher(db, service, enqueuer),
	}
}

func TestDispatchHideResolvesFlagTarget(t *testing.T) {
	env := setupDispatcher(t)
	ctx := context.Background()

	flag := &flags.AutomatedFlag{
		ID:          uuid.New().String(),
		ContentType: content.TypeStory,
		ContentID:   uuid.New().String(),
		FlagType:    detector.CategorySpam,
		Reviewed:    true,
	}
	require.NoError(t, env.db.Create(flag).Error)

	action := &review.ModerationAction{
		ID:          uuid.New().String(),
		FlagID:      &flag.ID,
		ModeratorID: uuid.New().String(),
		ActionType:  review.ActionHide,
	}
	require.NoError(t, env.dispatcher.Dispatch(ctx, action, &review.DecideRequest{
		TargetKind: review.TargetFlag,
		TargetID:   flag.ID,
		ActionType: review.ActionHide,
	}))

	// 记录已创建并当场执行成功
	var record EnforcementRecord
	require.NoError(t, env.db.Where("action_id = ?", action.ID).First(&record).Error)
	assert.Equal(t, EffectHideContent, record.Effect)
	assert.Equal(t, flag.ContentID, record.ContentID)
	assert.True(t, record.Applied)
	assert.Len(t, env.store.deleted, 1)
	assert.Empty(t, env.enqueuer.enqueued)
}

func TestDispatchSuspendAppliesSanction(t *testing.T) {
	env := setupDispatcher(t)
	ctx := context.Background()
	subject := uuid.New().String()

	action := &review.ModerationAction{
		ID:          uuid.New().String(),
		ModeratorID: uuid.New().String(),
		ActionType:  review.ActionSuspend,
	}
	require.NoError(t, env.dispatcher.Dispatch(ctx, action, &review.DecideRequest{
		ActionType:    review.ActionSuspend,
		SubjectUserID: subject,
		Reason:        "多次严重违规",
	}))

	var active int64
	env.db.Model(&AccountSuspension{}).Where("user_id = ? AND is_active = ?", subject, true).Count(&active)
	assert.EqualValues(t, 1, active)
}

func TestDispatchFailureEnqueuesRetry(t *testing.T) {
	env := setupDispatcher(t)
	ctx := context.Background()
	env.store.failWith = errors.New("内容服务不可达")

	report := &review.Report{
		ID:          uuid.New().String(),
		ContentType: content.TypeWhisper,
		ContentID:   uuid.New().String(),
		ReporterID:  uuid.New().String(),
		Reason:      "骚扰",
		Reviewed:    true,
	}
	require.NoError(t, env.db.Create(report).Error)

	action := &review.ModerationAction{
		ID:          uuid.New().String(),
		ReportID:    &report.ID,
		ModeratorID: uuid.New().String(),
		ActionType:  review.ActionDelete,
	}
	// 当场执行失败不让 Dispatch 报错，决定已留存
	require.NoError(t, env.dispatcher.Dispatch(ctx, action, &review.DecideRequest{
		TargetKind: review.TargetReport,
		TargetID:   report.ID,
		ActionType: review.ActionDelete,
	}))

	var record EnforcementRecord
	require.NoError(t, env.db.Where("action_id = ?", action.ID).First(&record).Error)
	assert.False(t, record.Applied)
	require.Len(t, env.enqueuer.enqueued, 1)
	assert.Equal(t, record.ID, env.enqueuer.enqueued[0])
}

func TestDispatchDismissNoop(t *testing.T) {
	env := setupDispatcher(t)

	action := &review.ModerationAction{
		ID:          uuid.New().String(),
		ModeratorID: uuid.New().String(),
		ActionType:  review.ActionDismiss,
	}
	require.NoError(t, env.dispatcher.Dispatch(context.Background(), action, &review.DecideRequest{
		ActionType: review.ActionDismiss,
	}))

	var count int64
	env.db.Model(&EnforcementRecord{}).Count(&count)
	assert.Zero(t, count)
}
