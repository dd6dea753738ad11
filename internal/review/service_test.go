package review

import (
	"context"
	"os"
	"testing"
	"time"

	"backend/internal/common"
	"backend/internal/content"
	"backend/internal/detector"
	"backend/internal/flags"
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

// recordingDispatcher 记录分发调用的假处置引擎
type recordingDispatcher struct {
	actions []*ModerationAction
}

func (d *recordingDispatcher) Dispatch(_ context.Context, action *ModerationAction, _ *DecideRequest) error {
	d.actions = append(d.actions, action)
	return nil
}

type reviewEnv struct {
	db         *gorm.DB
	service    *Service
	dispatcher *recordingDispatcher
}

func setupReview(t *testing.T) *reviewEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:review_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&ModeratorRole{}, &Report{}, &ModerationAction{}, &flags.AutomatedFlag{},
	))
	t.Cleanup(func() {
		db.Exec("DELETE FROM moderator_roles")
		db.Exec("DELETE FROM reports")
		db.Exec("DELETE FROM moderation_actions")
		db.Exec("DELETE FROM automated_flags")
	})

	dispatcher := &recordingDispatcher{}
	return &reviewEnv{
		db:         db,
		service:    NewService(db, flags.NewService(db), dispatcher),
		dispatcher: dispatcher,
	}
}

func (e *reviewEnv) grantRole(t *testing.T, role string) string {
	t.Helper()
	userID := uuid.New().String()
	require.NoError(t, e.db.Create(&ModeratorRole{
		ID:       uuid.New().String(),
		UserID:   userID,
		Role:     role,
		IsActive: true,
	}).Error)
	return userID
}

func (e *reviewEnv) seedFlag(t *testing.T) *flags.AutomatedFlag {
	t.Helper()
	confidence := 0.9
	flag := &flags.AutomatedFlag{
		ID:          uuid.New().String(),
		ContentType: content.TypeStory,
		ContentID:   uuid.New().String(),
		FlagType:    detector.CategorySpam,
		Confidence:  &confidence,
	}
	require.NoError(t, e.db.Create(flag).Error)
	return flag
}

// ============================================================================
// 权限矩阵
// ============================================================================

func TestAuthorityMatrix(t *testing.T) {
	cases := []struct {
		action     string
		indefinite bool
		required   int
	}{
		{ActionDismiss, false, 1},
		{ActionWarn, false, 1},
		{ActionHide, false, 1},
		{ActionDelete, false, 2},
		{ActionShadowban, false, 2},
		{ActionSuspend, false, 2},
		{ActionSuspend, true, 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.required, RequiredAuthority(tc.action, tc.indefinite),
			"action=%s indefinite=%v", tc.action, tc.indefinite)
	}

	// 未知动作一律拒绝
	assert.Greater(t, RequiredAuthority("TELEPORT", false), AuthorityLevel(RoleAdministrator))

	assert.Less(t, AuthorityLevel(RoleModerator), AuthorityLevel(RoleSeniorModerator))
	assert.Less(t, AuthorityLevel(RoleSeniorModerator), AuthorityLevel(RoleAdministrator))
	assert.Zero(t, AuthorityLevel("INTERN"))
}

// ============================================================================
// 裁决
// ============================================================================

func TestDecideWithoutRole(t *testing.T) {
	env := setupReview(t)
	flag := env.seedFlag(t)

	_, err := env.service.Decide(context.Background(), &DecideRequest{
		TargetKind: TargetFlag,
		TargetID:   flag.ID,
		ActionType: ActionDismiss,
	}, uuid.New().String())
	assert.ErrorIs(t, err, ErrNoActiveRole)
}

func TestDecideInsufficientAuthority(t *testing.T) {
	env := setupReview(t)
	moderator := env.grantRole(t, RoleModerator)
	flag := env.seedFlag(t)

	_, err := env.service.Decide(context.Background(), &DecideRequest{
		TargetKind:    TargetFlag,
		TargetID:      flag.ID,
		ActionType:    ActionDelete,
		SubjectUserID: uuid.New().String(),
	}, moderator)
	assert.ErrorIs(t, err, ErrInsufficientAuthority)
}

func TestIndefiniteSuspendRequiresAdministrator(t *testing.T) {
	env := setupReview(t)
	senior := env.grantRole(t, RoleSeniorModerator)
	admin := env.grantRole(t, RoleAdministrator)
	subject := uuid.New().String()

	// 高级审核员限期封禁可行
	flag := env.seedFlag(t)
	expires := time.Now().UTC().Add(72 * time.Hour)
	_, err := env.service.Decide(context.Background(), &DecideRequest{
		TargetKind:    TargetFlag,
		TargetID:      flag.ID,
		ActionType:    ActionSuspend,
		SubjectUserID: subject,
		ExpiresAt:     &expires,
	}, senior)
	require.NoError(t, err)

	// 无限期封禁对高级审核员越权
	another := env.seedFlag(t)
	_, err = env.service.Decide(context.Background(), &DecideRequest{
		TargetKind:    TargetFlag,
		TargetID:      another.ID,
		ActionType:    ActionSuspend,
		SubjectUserID: subject,
	}, senior)
	assert.ErrorIs(t, err, ErrInsufficientAuthority)

	// 管理员可行
	_, err = env.service.Decide(context.Background(), &DecideRequest{
		TargetKind:    TargetFlag,
		TargetID:      another.ID,
		ActionType:    ActionSuspend,
		SubjectUserID: subject,
	}, admin)
	require.NoError(t, err)
}

func TestDecideFlagMarksReviewedOnce(t *testing.T) {
	env := setupReview(t)
	moderator := env.grantRole(t, RoleModerator)
	flag := env.seedFlag(t)
	ctx := context.Background()

	action, err := env.service.Decide(ctx, &DecideRequest{
		TargetKind: TargetFlag,
		TargetID:   flag.ID,
		ActionType: ActionHide,
		Reason:     "违规内容",
	}, moderator)
	require.NoError(t, err)
	require.NotNil(t, action.FlagID)
	assert.Equal(t, flag.ID, *action.FlagID)

	var reloaded flags.AutomatedFlag
	require.NoError(t, env.db.Where("id = ?", flag.ID).First(&reloaded).Error)
	assert.True(t, reloaded.Reviewed)

	// 二次裁决被拒绝，不产生第二条动作
	_, err = env.service.Decide(ctx, &DecideRequest{
		TargetKind: TargetFlag,
		TargetID:   flag.ID,
		ActionType: ActionDismiss,
	}, moderator)
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	var count int64
	env.db.Model(&ModerationAction{}).Where("flag_id = ?", flag.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestDecideReportDispatchesEffect(t *testing.T) {
	env := setupReview(t)
	moderator := env.grantRole(t, RoleModerator)
	ctx := context.Background()

	report, err := env.service.CreateReport(ctx, &CreateReportRequest{
		ContentType: content.TypeWhisper,
		ContentID:   uuid.New().String(),
		Reason:      "骚扰内容",
	}, uuid.New().String())
	require.NoError(t, err)

	_, err = env.service.Decide(ctx, &DecideRequest{
		TargetKind: TargetReport,
		TargetID:   report.ID,
		ActionType: ActionHide,
	}, moderator)
	require.NoError(t, err)
	require.Len(t, env.dispatcher.actions, 1)
	assert.Equal(t, ActionHide, env.dispatcher.actions[0].ActionType)
}

func TestDismissDoesNotDispatch(t *testing.T) {
	env := setupReview(t)
	moderator := env.grantRole(t, RoleModerator)
	flag := env.seedFlag(t)

	_, err := env.service.Decide(context.Background(), &DecideRequest{
		TargetKind: TargetFlag,
		TargetID:   flag.ID,
		ActionType: ActionDismiss,
	}, moderator)
	require.NoError(t, err)
	assert.Empty(t, env.dispatcher.actions)
}

func TestDecideRequiresSubjectForSanctions(t *testing.T) {
	env := setupReview(t)
	admin := env.grantRole(t, RoleAdministrator)
	flag := env.seedFlag(t)

	_, err := env.service.Decide(context.Background(), &DecideRequest{
		TargetKind: TargetFlag,
		TargetID:   flag.ID,
		ActionType: ActionSuspend,
	}, admin)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecideTargetNotFound(t *testing.T) {
	env := setupReview(t)
	moderator := env.grantRole(t, RoleModerator)

	_, err := env.service.Decide(context.Background(), &DecideRequest{
		TargetKind: TargetReport,
		TargetID:   uuid.New().String(),
		ActionType: ActionDismiss,
	}, moderator)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

// ============================================================================
// 队列
// ============================================================================

func TestListPendingMergesFIFO(t *testing.T) {
	env := setupReview(t)
	ctx := context.Background()

	flag := env.seedFlag(t)
	report, err := env.service.CreateReport(ctx, &CreateReportRequest{
		ContentType: content.TypeStory,
		ContentID:   uuid.New().String(),
		Reason:      "抄袭",
	}, uuid.New().String())
	require.NoError(t, err)

	// 举报早于标记
	require.NoError(t, env.db.Model(&Report{}).Where("id = ?", report.ID).
		Update("created_at", gorm.Expr("datetime('now', '-2 hour')")).Error)

	items, total, err := env.service.ListPending(ctx, common.DefaultPagination())
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, TargetReport, items[0].Kind)
	assert.Equal(t, report.ID, items[0].ID)
	assert.Equal(t, TargetFlag, items[1].Kind)
	assert.Equal(t, flag.ID, items[1].ID)
}

func TestListPendingExcludesReviewed(t *testing.T) {
	env := setupReview(t)
	moderator := env.grantRole(t, RoleModerator)
	flag := env.seedFlag(t)
	ctx := context.Background()

	_, err := env.service.Decide(ctx, &DecideRequest{
		TargetKind: TargetFlag,
		TargetID:   flag.ID,
		ActionType: ActionDismiss,
	}, moderator)
	require.NoError(t, err)

	items, total, err := env.service.ListPending(ctx, common.DefaultPagination())
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

// ============================================================================
// 角色管理
// ============================================================================

func TestGrantRoleAdminOnly(t *testing.T) {
	env := setupReview(t)
	moderator := env.grantRole(t, RoleModerator)
	admin := env.grantRole(t, RoleAdministrator)
	ctx := context.Background()

	_, err := env.service.GrantRole(ctx, &GrantRoleRequest{
		UserID: uuid.New().String(),
		Role:   RoleModerator,
	}, moderator)
	assert.ErrorIs(t, err, ErrInsufficientAuthority)

	target := uuid.New().String()
	granted, err := env.service.GrantRole(ctx, &GrantRoleRequest{
		UserID: target,
		Role:   RoleModerator,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, RoleModerator, granted.Role)

	// 重复授予走原地更新，用户始终只有一条角色
	upgraded, err := env.service.GrantRole(ctx, &GrantRoleRequest{
		UserID: target,
		Role:   RoleSeniorModerator,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, granted.ID, upgraded.ID)

	var count int64
	env.db.Model(&ModeratorRole{}).Where("user_id = ?", target).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestIsAdministrator(t *testing.T) {
	env := setupReview(t)
	admin := env.grantRole(t, RoleAdministrator)
	moderator := env.grantRole(t, RoleModerator)
	ctx := context.Background()

	ok, err := env.service.IsAdministrator(ctx, admin)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.service.IsAdministrator(ctx, moderator)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.service.IsAdministrator(ctx, uuid.New().String())
	require.NoError(t, err)
	assert.False(t, ok)
}
