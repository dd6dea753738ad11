package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"backend/internal/logger"

	"github.com/Knetic/govaluate"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ============================================================================
// 错误定义
// ============================================================================

var (
	ErrConfigNotFound        = errors.New("检测器配置不存在")
	ErrUnknownCategory       = errors.New("未知检测类别")
	ErrInvalidPattern        = errors.New("检测规则表达式无效")
	ErrInsufficientAuthority = errors.New("审核权限不足")
)

// 配置缓存键前缀与过期时间
const (
	configCachePrefix = "whisperink:detector:cfg:"
	configCacheTTL    = 5 * time.Minute
)

// AdminGate 管理员权限校验接口，由审核角色服务实现
type AdminGate interface {
	IsAdministrator(ctx context.Context, userID string) (bool, error)
}

// ============================================================================
// 检测器注册表
// ============================================================================

// Registry 检测器配置注册表
// 读路径走 Redis 旁路缓存，写路径要求管理员权限并使缓存失效。
type Registry struct {
	db    *gorm.DB
	redis redis.UniversalClient
	gate  AdminGate
}

// NewRegistry 创建检测器注册表
// redis 传 nil 时关闭缓存，仅用于测试。
func NewRegistry(db *gorm.DB, rdb redis.UniversalClient, gate AdminGate) *Registry {
	return &Registry{db: db, redis: rdb, gate: gate}
}

// GetConfig 按类别读取检测器配置
func (r *Registry) GetConfig(ctx context.Context, category string) (*DetectorConfig, error) {
	if cached := r.readCache(ctx, category); cached != nil {
		return cached, nil
	}

	var cfg DetectorConfig
	err := r.db.WithContext(ctx).Where("category = ?", category).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("查询检测器配置失败: %w", err)
	}

	r.writeCache(ctx, &cfg)
	return &cfg, nil
}

// ListEnabled 列出全部启用的检测器配置
func (r *Registry) ListEnabled(ctx context.Context) ([]DetectorConfig, error) {
	var configs []DetectorConfig
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("category ASC").
		Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("查询检测器配置列表失败: %w", err)
	}
	return configs, nil
}

// ListAll 列出全部检测器配置（含停用）
func (r *Registry) ListAll(ctx context.Context) ([]DetectorConfig, error) {
	var configs []DetectorConfig
	err := r.db.WithContext(ctx).Order("category ASC").Find(&configs).Error
	if err != nil {
		return nil, fmt.Errorf("查询检测器配置列表失败: %w", err)
	}
	return configs, nil
}

// UpsertConfig 创建或更新检测器配置
// 每个类别至多一条，仅管理员可写。
func (r *Registry) UpsertConfig(ctx context.Context, req *UpsertConfigRequest, actorID string) (*DetectorConfig, error) {
	ok, err := r.gate.IsAdministrator(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("校验管理员权限失败: %w", err)
	}
	if !ok {
		return nil, ErrInsufficientAuthority
	}

	if !isKnownCategory(req.Category) {
		return nil, ErrUnknownCategory
	}
	if req.Pattern != "" {
		if _, err := regexp.Compile(req.Pattern); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	}
	if req.RoutingRule != "" {
		if _, err := govaluate.NewEvaluableExpression(req.RoutingRule); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	}

	var cfg DetectorConfig
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("category = ?", req.Category).First(&cfg).Error
		if findErr != nil && !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("查询检测器配置失败: %w", findErr)
		}

		if errors.Is(findErr, gorm.ErrRecordNotFound) {
			cfg = DetectorConfig{
				ID:          uuid.New().String(),
				Category:    req.Category,
				Sensitivity: SensitivityModerate,
				Enabled:     true,
			}
		}

		if req.Sensitivity != "" {
			cfg.Sensitivity = req.Sensitivity
		}
		if req.Enabled != nil {
			cfg.Enabled = *req.Enabled
		}
		if req.Whitelist != nil {
			raw, _ := json.Marshal(req.Whitelist)
			cfg.Whitelist = datatypes.JSON(raw)
		}
		if req.Blacklist != nil {
			raw, _ := json.Marshal(req.Blacklist)
			cfg.Blacklist = datatypes.JSON(raw)
		}
		cfg.Pattern = req.Pattern
		cfg.RoutingRule = req.RoutingRule
		cfg.UpdatedBy = actorID

		if err := tx.Save(&cfg).Error; err != nil {
			return fmt.Errorf("保存检测器配置失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.invalidateCache(ctx, req.Category)
	logger.Info("检测器配置已更新",
		zap.String("category", cfg.Category),
		zap.String("sensitivity", cfg.Sensitivity),
		zap.Bool("enabled", cfg.Enabled),
		zap.String("actor_id", actorID),
	)
	return &cfg, nil
}

// ShouldReview 判定命中结果是否进入人工队列
// 默认规则: 置信度严格大于灵敏度阈值。路由表达式只升级不豁免，
// 表达式为真时强制人工，为假或求值失败时回落默认阈值规则。
// 表达式可引用 confidence / threshold / category 三个变量。
func (r *Registry) ShouldReview(cfg *DetectorConfig, confidence float64) bool {
	threshold := cfg.Threshold()

	if cfg.RoutingRule != "" {
		expr, err := govaluate.NewEvaluableExpression(cfg.RoutingRule)
		if err == nil {
			result, evalErr := expr.Evaluate(map[string]interface{}{
				"confidence": confidence,
				"threshold":  threshold,
				"category":   cfg.Category,
			})
			if evalErr == nil {
				if b, ok := result.(bool); ok && b {
					return true
				}
			} else {
				logger.Warn("路由表达式求值失败，回退默认阈值规则",
					zap.String("category", cfg.Category),
					zap.String("rule", cfg.RoutingRule),
				)
			}
		}
	}

	return confidence > threshold
}

// WhitelistEntries 解析白名单
func (c *DetectorConfig) WhitelistEntries() []string {
	return decodeStringList(c.Whitelist)
}

// BlacklistEntries 解析黑名单
func (c *DetectorConfig) BlacklistEntries() []string {
	return decodeStringList(c.Blacklist)
}

func decodeStringList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var entries []string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}

func isKnownCategory(category string) bool {
	for _, c := range KnownCategories {
		if c == category {
			return true
		}
	}
	return false
}

// ============================================================================
// 缓存
// ============================================================================

func (r *Registry) readCache(ctx context.Context, category string) *DetectorConfig {
	if r.redis == nil {
		return nil
	}
	raw, err := r.redis.Get(ctx, configCachePrefix+category).Bytes()
	if err != nil {
		return nil
	}
	var cfg DetectorConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil
	}
	return &cfg
}

func (r *Registry) writeCache(ctx context.Context, cfg *DetectorConfig) {
	if r.redis == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, configCachePrefix+cfg.Category, raw, configCacheTTL).Err(); err != nil {
		logger.Warn("写入检测器配置缓存失败", zap.String("category", cfg.Category), zap.Error(err))
	}
}

func (r *Registry) invalidateCache(ctx context.Context, category string) {
	if r.redis == nil {
		return
	}
	if err := r.redis.Del(ctx, configCachePrefix+category).Err(); err != nil {
		logger.Warn("失效检测器配置缓存失败", zap.String("category", category), zap.Error(err))
	}
}
