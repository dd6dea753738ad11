package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init("error", "console", "stderr")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func setupAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:auth_test?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&StaffAccount{}))
	t.Cleanup(func() {
		db.Exec("DELETE FROM staff_accounts")
	})
	return db
}

func newTestJWT() *JWTService {
	return NewJWTService("test-secret", "whisperink-test", 2*time.Hour, 7*24*time.Hour, nil)
}

func TestCreateAccountAndLogin(t *testing.T) {
	db := setupAuthDB(t)
	svc := NewStaffService(db, newTestJWT())
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, &CreateAccountRequest{
		Username: "Moderator01",
		Email:    "mod@example.com",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "moderator01", account.Username) // 统一小写
	assert.NotEqual(t, "correct-horse-battery", account.PasswordHash)

	pair, logged, err := svc.Login(ctx, "MODERATOR01", "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, account.ID, logged.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, "Bearer", pair.TokenType)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	db := setupAuthDB(t)
	svc := NewStaffService(db, newTestJWT())
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, &CreateAccountRequest{
		Username: "someone",
		Email:    "s@example.com",
		Password: "right-password",
	})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "someone", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody", "whatever-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	db := setupAuthDB(t)
	svc := NewStaffService(db, newTestJWT())
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, &CreateAccountRequest{
		Username: "leaving",
		Email:    "l@example.com",
		Password: "still-valid-pass",
	})
	require.NoError(t, err)
	require.NoError(t, svc.SetStatus(ctx, account.ID, "disabled"))

	_, _, err = svc.Login(ctx, "leaving", "still-valid-pass")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestDuplicateUsername(t *testing.T) {
	db := setupAuthDB(t)
	svc := NewStaffService(db, newTestJWT())
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, &CreateAccountRequest{
		Username: "taken", Email: "a@example.com", Password: "password-one",
	})
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, &CreateAccountRequest{
		Username: "Taken", Email: "b@example.com", Password: "password-two",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestChangePassword(t *testing.T) {
	db := setupAuthDB(t)
	svc := NewStaffService(db, newTestJWT())
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, &CreateAccountRequest{
		Username: "rotator", Email: "r@example.com", Password: "old-password",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ChangePassword(ctx, account.ID, "not-the-old-one", "new-password"), ErrInvalidCredentials)
	require.NoError(t, svc.ChangePassword(ctx, account.ID, "old-password", "new-password"))

	_, _, err = svc.Login(ctx, "rotator", "old-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "rotator", "new-password")
	assert.NoError(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	jwt := newTestJWT()
	ctx := context.Background()

	pair, err := jwt.GenerateTokenPair("user-1", "someone")
	require.NoError(t, err)

	claims, err := jwt.ValidateToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "someone", claims.Username)
	assert.Equal(t, "access", claims.TokenType)

	// 刷新令牌换新令牌对
	renewed, err := jwt.RefreshAccessToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, renewed.AccessToken)

	// 访问令牌不能当刷新令牌用
	_, err = jwt.RefreshAccessToken(ctx, pair.AccessToken)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	other := NewJWTService("different-secret", "whisperink-test", time.Hour, time.Hour, nil)
	pair, err := other.GenerateTokenPair("user-1", "someone")
	require.NoError(t, err)

	_, err = newTestJWT().ValidateToken(context.Background(), pair.AccessToken)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	jwt := newTestJWT()
	router := gin.New()
	router.GET("/guarded", AuthMiddleware(jwt), func(c *gin.Context) {
		userCtx, ok := GetUserContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"userId": userCtx.UserID})
	})

	// 无令牌
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 有效令牌
	pair, err := jwt.GenerateTokenPair("user-9", "reviewer")
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-9")

	// 刷新令牌不放行
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+pair.RefreshToken)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
