package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 MIXCHAT_GATEWAY_PORT
const EnvPrefix = "MIXCHAT"

// Config 是应用配置的根结构体
type Config struct {
	Gateway   GatewayConfig   `mapstructure:"gateway" yaml:"gateway"`
	Realtime  RealtimeConfig  `mapstructure:"realtime" yaml:"realtime"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	I18n      I18nConfig      `mapstructure:"i18n" yaml:"i18n"`
	Mail      MailConfig      `mapstructure:"mail" yaml:"mail"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
}

// GatewayConfig 网关配置
type GatewayConfig struct {
	Port           int             `mapstructure:"port" yaml:"port"`
	Host           string          `mapstructure:"host" yaml:"host"`
	AllowedOrigins []string        `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// Addr 返回监听地址
func (c GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RateLimitConfig HTTP 限流配置
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
}

// RealtimeConfig 实时消息推送端点配置
type RealtimeConfig struct {
	// ConnectTimeout bounds acquiring a datastore connection for one frame.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	// PageSize caps messages returned per fetch; 0 means unbounded.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
	// AtomicClaim folds fetch and mark-seen into one update statement.
	AtomicClaim bool `mapstructure:"atomic_claim" yaml:"atomic_claim"`
	// MaxInflight caps concurrently handled frames per connection.
	MaxInflight     int     `mapstructure:"max_inflight" yaml:"max_inflight"`
	FramesPerSecond float64 `mapstructure:"frames_per_second" yaml:"frames_per_second"`
	Burst           int     `mapstructure:"burst" yaml:"burst"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// I18nConfig 本地化词典配置
type I18nConfig struct {
	Lang         string `mapstructure:"lang" yaml:"lang"`
	OverrideFile string `mapstructure:"override_file" yaml:"override_file"`
	Watch        bool   `mapstructure:"watch" yaml:"watch"`
}

// MailConfig 邮件发送配置
type MailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
	CC       string `mapstructure:"cc" yaml:"cc"`
}

// RetentionConfig 已读消息清理任务配置
type RetentionConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Schedule is a cron expression (5 or 6 fields, or @every/@daily).
	Schedule string        `mapstructure:"schedule" yaml:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// Validate 检查配置的合法性
func (c *Config) Validate() error {
	var errs []error
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		errs = append(errs, fmt.Errorf("gateway.port out of range: %d", c.Gateway.Port))
	}
	if c.Realtime.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("realtime.connect_timeout must be positive"))
	}
	if c.Realtime.PageSize < 0 {
		errs = append(errs, errors.New("realtime.page_size must not be negative"))
	}
	if c.Realtime.MaxInflight <= 0 {
		errs = append(errs, errors.New("realtime.max_inflight must be positive"))
	}
	if c.Retention.Enabled && (c.Retention.Schedule == "" || c.Retention.MaxAge <= 0) {
		errs = append(errs, errors.New("retention.schedule and a positive retention.max_age are required when retention is enabled"))
	}
	if c.Mail.Enabled && c.Mail.Host == "" {
		errs = append(errs, errors.New("mail.host is required when mail is enabled"))
	}
	return errors.Join(errs...)
}

// Load 加载配置文件
// 优先级: ENV > 配置文件 > 默认值
//
// Each call uses its own viper instance, so the returned Config is the only
// copy of the settings; callers pass it down explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expandedPath, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expandedPath)
		if err := v.ReadInConfig(); err != nil {
			// 忽略文件不存在错误
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("read config %s: %w", expandedPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expanded, err := ExpandPath(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	cfg.Storage.Path = expanded

	return &cfg, nil
}

// SaveTo 保存配置到指定路径
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// 0600: 文件中可能包含邮件密码
	return os.WriteFile(path, data, 0600)
}
