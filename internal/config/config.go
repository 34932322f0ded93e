package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret 仅用于本地开发，非 dev 环境必须覆盖。
const DefaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	DatabaseDriver string `yaml:"database_driver"`
	DatabaseDSN    string `yaml:"database_dsn"`

	// JWTSecret 用于签发 WebSocket 连接票据。
	JWTSecret          string `yaml:"jwt_secret"`
	SessionTTLHours    int    `yaml:"session_ttl_hours"`
	TicketTTLSeconds   int    `yaml:"ticket_ttl_seconds"`
	PurgeIntervalMins  int    `yaml:"purge_interval_minutes"`
	MaxMessageLength   int    `yaml:"max_message_length"`
	RateLimitPerSecond int    `yaml:"rate_limit_per_second"`
	RateLimitBurst     int    `yaml:"rate_limit_burst"`

	RedisURL    string   `yaml:"redis_url"`
	CORSOrigins []string `yaml:"cors_origins"`
	WebDir      string   `yaml:"web_dir"`
}

func defaults() Config {
	return Config{
		Port:               "8080",
		Env:                "dev",
		LogLevel:           "info",
		DatabaseDriver:     "postgres",
		DatabaseDSN:        "host=localhost user=postgres password=postgres dbname=chat port=5432 sslmode=disable TimeZone=UTC",
		JWTSecret:          DefaultJWTSecret,
		SessionTTLHours:    12,
		TicketTTLSeconds:   60,
		PurgeIntervalMins:  60,
		MaxMessageLength:   1000,
		RateLimitPerSecond: 20,
		RateLimitBurst:     40,
		WebDir:             "./web",
	}
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt 解析非负整数，非法值回退到 def。
func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func applyEnv(cfg *Config) {
	cfg.Port = getenv("APP_PORT", cfg.Port)
	cfg.Env = getenv("APP_ENV", cfg.Env)
	cfg.LogLevel = getenv("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseDriver = getenv("DATABASE_DRIVER", cfg.DatabaseDriver)
	cfg.DatabaseDSN = getenv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.JWTSecret = getenv("JWT_SECRET", cfg.JWTSecret)
	cfg.SessionTTLHours = getenvInt("SESSION_TTL_HOURS", cfg.SessionTTLHours)
	cfg.TicketTTLSeconds = getenvInt("STREAM_TICKET_TTL_SECONDS", cfg.TicketTTLSeconds)
	cfg.PurgeIntervalMins = getenvInt("TOKEN_PURGE_INTERVAL_MINUTES", cfg.PurgeIntervalMins)
	cfg.MaxMessageLength = getenvInt("MAX_MESSAGE_LENGTH", cfg.MaxMessageLength)
	cfg.RateLimitPerSecond = getenvInt("RATE_LIMIT_PER_SECOND", cfg.RateLimitPerSecond)
	cfg.RateLimitBurst = getenvInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	cfg.RedisURL = getenv("REDIS_URL", cfg.RedisURL)
	cfg.WebDir = getenv("WEB_DIR", cfg.WebDir)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load 读取 .env（若存在）与环境变量，未设置的项使用默认值。
func Load() Config {
	_ = godotenv.Load()
	cfg := defaults()
	applyEnv(&cfg)
	return cfg
}

// LoadFile 以 YAML 文件覆盖默认值，环境变量优先级最高。
func LoadFile(path string) (Config, error) {
	_ = godotenv.Load()
	cfg := defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

// Validate 在启动前检查必填项，非 dev 环境禁止使用默认密钥。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("config: database dsn is required")
	}
	switch cfg.DatabaseDriver {
	case "", "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", cfg.DatabaseDriver)
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwt secret is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == DefaultJWTSecret {
		return errors.New("config: default jwt secret is not allowed outside dev")
	}
	return nil
}
