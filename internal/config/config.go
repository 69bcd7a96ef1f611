package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	AppName    string
	AppVersion string
	ListenAddr string
	Port       string
	GinMode    string

	DatabaseDriver string
	DatabaseDSN    string

	DefaultTimezone     string
	MinRequiredActivity int

	GitHubAPIBaseURL        string
	GitHubTimeout           time.Duration
	GitHubRequestsPerSecond float64
	GitHubBurst             int
	RepoCacheTTL            time.Duration
	TokenKey                string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string
	SMTPFrom        string
	SMTPFromName    string
	SMTPReplyTo     string
	SMTPImplicitTLS bool

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	AllowedOrigins []string
}

// SMTPConfigured 表示是否具备真实发信所需的最小配置。
func (c AppConfig) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

// Load 从 .env 与环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	port := envString("PORT", "8000")
	listenAddr := envString("LISTEN_ADDR", fmt.Sprintf(":%s", port))

	driver := strings.ToLower(envString("DATABASE_DRIVER", "sqlite"))
	dsn := envString("DATABASE_URL", "")
	if dsn == "" && driver == "sqlite" {
		dsn = envString("DATABASE_PATH", "dailyagent.db")
	}

	cfg := AppConfig{
		AppName:    envString("APP_NAME", "Personal AI Agent"),
		AppVersion: envString("APP_VERSION", "1.0.0"),
		ListenAddr: listenAddr,
		Port:       port,
		GinMode:    envString("GIN_MODE", "release"),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		DefaultTimezone:     envString("TIMEZONE", "America/New_York"),
		MinRequiredActivity: envInt("MIN_REQUIRED_ACTIVITY", 1),

		GitHubAPIBaseURL:        envString("GITHUB_API_BASE_URL", ""),
		GitHubTimeout:           envDuration("GITHUB_TIMEOUT", 30*time.Second),
		GitHubRequestsPerSecond: envFloat("GITHUB_REQUESTS_PER_SECOND", 10),
		GitHubBurst:             envInt("GITHUB_BURST", 5),
		RepoCacheTTL:            envDuration("REPO_CACHE_TTL", time.Hour),
		TokenKey:                envString("TOKEN_ENCRYPTION_KEY", ""),

		RedisAddr:     envString("REDIS_ADDR", ""),
		RedisPassword: envString("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		SMTPHost:        envString("SMTP_HOST", ""),
		SMTPPort:        envInt("SMTP_PORT", 587),
		SMTPUsername:    envString("SMTP_USERNAME", ""),
		SMTPPassword:    envString("SMTP_PASSWORD", ""),
		SMTPFrom:        envString("SMTP_FROM", ""),
		SMTPFromName:    envString("SMTP_FROM_NAME", "Personal AI Agent"),
		SMTPReplyTo:     envString("SMTP_REPLY_TO", ""),
		SMTPImplicitTLS: envBool("SMTP_IMPLICIT_TLS", false),

		LogLevel:      strings.ToLower(envString("LOG_LEVEL", "info")),
		LogPath:       envString("LOG_PATH", ""),
		LogMaxSizeMB:  envInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups: envInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays: envInt("LOG_MAX_AGE_DAYS", 7),
		LogCompress:   envBool("LOG_COMPRESS", false),

		AllowedOrigins: envList("ALLOWED_ORIGINS", []string{"*"}),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_URL is required for " + c.DatabaseDriver)
	}

	// 默认时区写错会让所有人的“今天”悄悄变成 UTC，这里直接拒绝启动。
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.DefaultTimezone, err)
	}

	if c.MinRequiredActivity < 1 {
		return fmt.Errorf("MIN_REQUIRED_ACTIVITY must be at least 1, got %d", c.MinRequiredActivity)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	return nil
}

func envString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

// envDuration 接受 Go duration 字符串（30s、1h），纯数字按秒处理。
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}
