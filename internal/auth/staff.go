package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials 用户名或密码错误
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	// ErrAccountDisabled 账号已停用
	ErrAccountDisabled = errors.New("账号已停用")
	// ErrUsernameTaken 用户名已存在
	ErrUsernameTaken = errors.New("用户名已存在")
)

// StaffAccount 平台员工账号
// 审核员、管理员、DMCA 代理人都在这张表登录，具体权限由角色与代理人授权单独管理。
type StaffAccount struct {
	ID           string     `json:"id" gorm:"type:uuid;primaryKey"`
	Username     string     `json:"username" gorm:"size:100;uniqueIndex;not null"`
	Email        string     `json:"email" gorm:"size:255;not null"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"`
	Status       string     `json:"status" gorm:"size:20;default:'active';index"` // active, disabled
	LastLoginAt  *time.Time `json:"lastLoginAt"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updatedAt" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (StaffAccount) TableName() string {
	return "staff_accounts"
}

// StaffService 员工账号服务
type StaffService struct {
	db  *gorm.DB
	jwt *JWTService
}

// NewStaffService 创建员工账号服务
func NewStaffService(db *gorm.DB, jwt *JWTService) *StaffService {
	return &StaffService{db: db, jwt: jwt}
}

// CreateAccountRequest 创建账号请求
type CreateAccountRequest struct {
	Username string `json:"username" binding:"required,min=3,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// CreateAccount 创建员工账号
func (s *StaffService) CreateAccount(ctx context.Context, req *CreateAccountRequest) (*StaffAccount, error) {
	username := strings.TrimSpace(strings.ToLower(req.Username))

	var count int64
	if err := s.db.WithContext(ctx).Model(&StaffAccount{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("查询账号失败: %w", err)
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码加密失败: %w", err)
	}

	account := &StaffAccount{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        strings.TrimSpace(strings.ToLower(req.Email)),
		PasswordHash: string(hash),
		Status:       "active",
	}
	if err := s.db.WithContext(ctx).Create(account).Error; err != nil {
		return nil, fmt.Errorf("创建账号失败: %w", err)
	}

	logger.WithContext(ctx).Info("员工账号已创建",
		zap.String("account_id", account.ID),
		zap.String("username", account.Username),
	)
	return account, nil
}

// Login 密码登录，返回令牌对
func (s *StaffService) Login(ctx context.Context, username, password string) (*TokenPair, *StaffAccount, error) {
	username = strings.TrimSpace(strings.ToLower(username))

	var account StaffAccount
	if err := s.db.WithContext(ctx).
		Where("username = ?", username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("查询账号失败: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	if account.Status != "active" {
		return nil, nil, ErrAccountDisabled
	}

	pair, err := s.jwt.GenerateTokenPair(account.ID, account.Username)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&StaffAccount{}).
		Where("id = ?", account.ID).
		Update("last_login_at", now).Error; err != nil {
		// 登录时间只是统计信息，更新失败不影响登录
		logger.WithContext(ctx).Warn("更新最近登录时间失败", zap.Error(err))
	}

	return pair, &account, nil
}

// ChangePassword 修改密码，要求验证旧密码
func (s *StaffService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	var account StaffAccount
	if err := s.db.WithContext(ctx).
		Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("查询账号失败: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("密码加密失败: %w", err)
	}

	return s.db.WithContext(ctx).Model(&StaffAccount{}).
		Where("id = ?", accountID).
		Update("password_hash", string(hash)).Error
}

// SetStatus 启用或停用账号
func (s *StaffService) SetStatus(ctx context.Context, accountID, status string) error {
	if status != "active" && status != "disabled" {
		return fmt.Errorf("无效的账号状态: %s", status)
	}
	result := s.db.WithContext(ctx).Model(&StaffAccount{}).
		Where("id = ?", accountID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
