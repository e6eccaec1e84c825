package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // 嵌入时区数据

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig        `mapstructure:"server"`
	Database DatabaseConfig      `mapstructure:"db"`
	Redis    RedisConfig         `mapstructure:"redis"`
	Log      LogConfig           `mapstructure:"log"`
	Sheets   SheetsConfig        `mapstructure:"sheets"`
	UniAPI   UniversityAPIConfig `mapstructure:"university_api"`
	Ingest   IngestConfig        `mapstructure:"ingest"`
	Semester SemesterConfig      `mapstructure:"semester"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	RateLimit    int           `mapstructure:"rate_limit"` // 窗口内每 IP 最大请求数
	RateWindow   time.Duration `mapstructure:"rate_window"`
	Timezone     string        `mapstructure:"timezone"` // 解析查询日期所用时区
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

// Location 返回 Timezone 对应的时区，无效时回退 UTC
func (c *ServerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置；Addr 为空时不启用
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SheetsConfig 课表电子表格来源。
// 配置 XLSXPath 时从本地导出文件读取，否则走 Google Sheets API。
type SheetsConfig struct {
	APIKey            string `mapstructure:"api_key"`
	CredentialsFile   string `mapstructure:"credentials_file"`
	SpreadsheetID     string `mapstructure:"spreadsheet_id"`
	Range             string `mapstructure:"range"`
	XLSXPath          string `mapstructure:"xlsx_path"`
	XLSXSheet         string `mapstructure:"xlsx_sheet"`
	SecondCampusColor string `mapstructure:"second_campus_color"`
	OnlineColor       string `mapstructure:"online_color"`
}

// UniversityAPIConfig 学校课表 REST API
type UniversityAPIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	DivisionIDs   []int         `mapstructure:"division_ids"`
	Courses       []int         `mapstructure:"courses"`
	WindowDays    int           `mapstructure:"window_days"`
	Concurrency   int           `mapstructure:"concurrency"`
	RequestDelay  time.Duration `mapstructure:"request_delay"`
	Timeout       time.Duration `mapstructure:"timeout"`
	GroupCacheTTL time.Duration `mapstructure:"group_cache_ttl"`
}

// IngestConfig 入库配置
type IngestConfig struct {
	BatchSize int           `mapstructure:"batch_size"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

// SemesterConfig 学期起始日，格式 MM-DD
type SemesterConfig struct {
	AutumnStart string `mapstructure:"autumn_start"`
	SpringStart string `mapstructure:"spring_start"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.rate_window", "1m")
	v.SetDefault("server.timezone", "Europe/Moscow")
	v.SetDefault("server.allow_origins", []string{})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "notifiit")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Europe/Moscow")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// 空字符串默认值保证仅由环境变量提供的键也能被 Unmarshal 读取
	v.SetDefault("sheets.api_key", "")
	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.xlsx_path", "")
	v.SetDefault("sheets.xlsx_sheet", "")
	v.SetDefault("sheets.range", "A1:Z200")
	v.SetDefault("sheets.second_campus_color", "#FFF2CC")
	v.SetDefault("sheets.online_color", "#C9DAF8")

	v.SetDefault("university_api.base_url", "")
	v.SetDefault("university_api.courses", []int{1, 2, 3, 4})
	v.SetDefault("university_api.window_days", 14)
	v.SetDefault("university_api.concurrency", 4)
	v.SetDefault("university_api.request_delay", "200ms")
	v.SetDefault("university_api.timeout", "15s")
	v.SetDefault("university_api.group_cache_ttl", "12h")

	v.SetDefault("ingest.batch_size", 100)
	v.SetDefault("ingest.lock_ttl", "10m")

	v.SetDefault("semester.autumn_start", "09-01")
	v.SetDefault("semester.spring_start", "02-10")

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
	v.SetEnvPrefix("NOTIFIIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
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
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: server.timezone 无效: %w", err)
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("配置校验失败: ingest.batch_size 必须大于 0")
	}
	if c.UniAPI.Concurrency <= 0 {
		return fmt.Errorf("配置校验失败: university_api.concurrency 必须大于 0")
	}
	if c.UniAPI.RequestDelay < 0 {
		return fmt.Errorf("配置校验失败: university_api.request_delay 不能为负")
	}
	if c.UniAPI.WindowDays <= 0 {
		return fmt.Errorf("配置校验失败: university_api.window_days 必须大于 0")
	}
	return nil
}

// ValidateSources 在任何抓取之前检查所选数据源的凭据
func (c *Config) ValidateSources(sheet, api bool) error {
	if sheet && c.Sheets.XLSXPath == "" {
		if c.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("配置校验失败: sheets.spreadsheet_id 不能为空")
		}
		if c.Sheets.APIKey == "" && c.Sheets.CredentialsFile == "" {
			return fmt.Errorf("配置校验失败: 需要 sheets.api_key 或 sheets.credentials_file")
		}
	}
	if api {
		if c.UniAPI.BaseURL == "" {
			return fmt.Errorf("配置校验失败: university_api.base_url 不能为空")
		}
		if len(c.UniAPI.DivisionIDs) == 0 {
			return fmt.Errorf("配置校验失败: university_api.division_ids 不能为空")
		}
	}
	return nil
}
