package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	Classifier  ClassifierConfig  `mapstructure:"classifier"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	SMTP        SMTPConfig        `mapstructure:"smtp"`
	Enforcement EnforcementConfig `mapstructure:"enforcement"`
	DMCA        DMCAConfig        `mapstructure:"dmca"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	AutoMigrate     bool   `mapstructure:"auto_migrate"`      // 是否自动迁移表结构
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接模式: standalone(单节点), sentinel(哨兵), cluster(集群)
	Mode string `mapstructure:"mode"`

	// 单节点模式配置
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 哨兵模式配置
	MasterName       string   `mapstructure:"master_name"`
	SentinelAddrs    []string `mapstructure:"sentinel_addrs"`
	SentinelPassword string   `mapstructure:"sentinel_password"`

	// 集群模式配置
	ClusterAddrs []string `mapstructure:"cluster_addrs"`

	// 通用配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// ClassifierConfig 外部内容分类器配置
// 分类器（脏话/垃圾/仇恨言论、NSFW）是外部服务，这里只配置访问端点与超时。
type ClassifierConfig struct {
	// Endpoints 按检测类别映射到分类器服务地址，如 profanity -> http://classifier:9000/profanity
	Endpoints map[string]string `mapstructure:"endpoints"`

	// TimeoutMs 单次分类请求超时（毫秒），超时后走"待人工复核"降级路径
	TimeoutMs int `mapstructure:"timeout_ms"`
}

// Timeout 返回分类请求超时时间，默认 3 秒
func (c *ClassifierConfig) Timeout() time.Duration {
	if c.TimeoutMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// JWTConfig 员工登录令牌配置
type JWTConfig struct {
	Secret             string `mapstructure:"secret"`
	Issuer             string `mapstructure:"issuer"`
	AccessExpiryHours  int    `mapstructure:"access_expiry_hours"`
	RefreshExpiryHours int    `mapstructure:"refresh_expiry_hours"`
}

// AccessExpiry 访问令牌有效期，默认 2 小时
func (c *JWTConfig) AccessExpiry() time.Duration {
	if c.AccessExpiryHours <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.AccessExpiryHours) * time.Hour
}

// RefreshExpiry 刷新令牌有效期，默认 7 天
func (c *JWTConfig) RefreshExpiry() time.Duration {
	if c.RefreshExpiryHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.RefreshExpiryHours) * time.Hour
}

// SMTPConfig 邮件发送配置
type SMTPConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	UseTLS      bool   `mapstructure:"use_tls"`
}

// EnforcementConfig 处置引擎配置
type EnforcementConfig struct {
	// SweepIntervalMinutes 过期封禁扫描间隔（分钟），仅用于报表一致性，不影响正确性
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`

	// EffectMaxRetries 内容侧软删除失败时的重试次数
	EffectMaxRetries int `mapstructure:"effect_max_retries"`

	// ConflictRetries 并发写冲突内部重试次数
	ConflictRetries int `mapstructure:"conflict_retries"`
}

// DMCAConfig DMCA 处理配置
type DMCAConfig struct {
	// SiteBaseURL 站点基础 URL，用于解析投诉中的侵权链接
	SiteBaseURL string `mapstructure:"site_base_url"`

	// CounterNoticeEmail 反通知接收邮箱，写入下架通知邮件
	CounterNoticeEmail string `mapstructure:"counter_notice_email"`
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 读取环境变量（优先级高于配置文件）
	v.SetEnvPrefix("APP") // 环境变量前缀：APP_
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // 支持嵌套配置：APP_DATABASE_HOST

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
