package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port      int        `mapstructure:"port"`
	BodyLimit int64      `mapstructure:"body_limit"`
	CORS      CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig 数据库配置
// Driver 为 postgres（生产）或 sqlite（本地开发）
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
// 登录与签发由外部身份服务负责，本服务只校验 Access Token
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
	Output string `mapstructure:"output"` // stdout | stderr | 文件路径
}

// WorkflowConfig 换班/请假审批流程配置
type WorkflowConfig struct {
	DefaultStartHour int           `mapstructure:"default_start_hour"` // 模板未给出时间时的默认开始小时
	DefaultDuration  time.Duration `mapstructure:"default_duration"`   // 默认班次时长
	DefaultWorkType  string        `mapstructure:"default_work_type"`
	CoverShiftType   string        `mapstructure:"cover_shift_type"`
	LeaveShiftType   string        `mapstructure:"leave_shift_type"`
	DeniedRetention  time.Duration `mapstructure:"denied_retention"` // 已拒绝申请保留时长，超时自动归档
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`   // 自动归档最小间隔
	MaxBundleDays    int           `mapstructure:"max_bundle_days"`
	SystemActorID    string        `mapstructure:"system_actor_id"` // 自动归档使用的操作人
	EventChannel     string        `mapstructure:"event_channel"`   // Redis 事件频道
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "care_hub")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.sqlite_path", "care_hub.db")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)
	v.SetDefault("db.conn_max_idle_time", 30)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.issuer", "care-hub")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("workflow.default_start_hour", 9)
	v.SetDefault("workflow.default_duration", "8h")
	v.SetDefault("workflow.default_work_type", "basic")
	v.SetDefault("workflow.cover_shift_type", "cover")
	v.SetDefault("workflow.leave_shift_type", "leave")
	v.SetDefault("workflow.denied_retention", "168h")
	v.SetDefault("workflow.sweep_interval", "1m")
	v.SetDefault("workflow.max_bundle_days", 31)
	v.SetDefault("workflow.system_actor_id", "00000000-0000-0000-0000-000000000000")
	v.SetDefault("workflow.event_channel", "care-hub:events")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("CAREHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 无默认值的键需显式绑定才能从环境变量读取
	_ = v.BindEnv("auth.jwt_secret")
	_ = v.BindEnv("db.password")
	_ = v.BindEnv("redis.password")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("配置校验失败: db.driver 仅支持 postgres 或 sqlite")
	}
	return c.Workflow.Validate()
}

// Validate 校验流程配置
func (w *WorkflowConfig) Validate() error {
	if w.DefaultStartHour < 0 || w.DefaultStartHour > 23 {
		return fmt.Errorf("配置校验失败: workflow.default_start_hour 必须在 0-23 之间")
	}
	if w.DefaultDuration <= 0 {
		return fmt.Errorf("配置校验失败: workflow.default_duration 必须大于 0")
	}
	if w.DeniedRetention <= 0 {
		return fmt.Errorf("配置校验失败: workflow.denied_retention 必须大于 0")
	}
	if w.MaxBundleDays <= 0 {
		return fmt.Errorf("配置校验失败: workflow.max_bundle_days 必须大于 0")
	}
	if w.DefaultWorkType == "" || w.CoverShiftType == "" || w.LeaveShiftType == "" {
		return fmt.Errorf("配置校验失败: workflow 班次类型不能为空")
	}
	return nil
}

// DefaultWorkflowConfig 返回与默认值一致的流程配置，供测试与 CLI 使用
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		DefaultStartHour: 9,
		DefaultDuration:  8 * time.Hour,
		DefaultWorkType:  "basic",
		CoverShiftType:   "cover",
		LeaveShiftType:   "leave",
		DeniedRetention:  7 * 24 * time.Hour,
		SweepInterval:    time.Minute,
		MaxBundleDays:    31,
		SystemActorID:    "00000000-0000-0000-0000-000000000000",
		EventChannel:     "care-hub:events",
	}
}
