package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Cache        CacheConfig        `yaml:"cache"`
	Mail         MailConfig         `yaml:"mail"`
	Notification NotificationConfig `yaml:"notification"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Warmer       WarmerConfig       `yaml:"warmer"`
	Cleanup      CleanupConfig      `yaml:"cleanup"`
	Search       SearchConfig       `yaml:"search"`
	Auth         AuthConfig         `yaml:"auth"`
	Validation   ValidationConfig   `yaml:"validation"`
	Logging      LoggingConfig      `yaml:"logging"`
	Locales      []string           `yaml:"locales"`
	Timezone     string             `yaml:"timezone"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port           string   `yaml:"port"`
	BaseURL        string   `yaml:"base_url"`
	Mode           string   `yaml:"mode"` // debug, release, test
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Type     string         `yaml:"type"` // sqlite, mysql, postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite settings
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig contains response and content cache settings
type CacheConfig struct {
	Enabled            bool   `yaml:"enabled"`
	Prefix             string `yaml:"prefix"`
	ResponseTTLMinutes int    `yaml:"response_ttl_minutes"`
	ContentTTLMinutes  int    `yaml:"content_ttl_minutes"`
	SessionCookie      string `yaml:"session_cookie"`
}

// MailConfig contains SMTP settings
type MailConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SMTPHost  string `yaml:"smtp_host"`
	SMTPPort  int    `yaml:"smtp_port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	StaffTo   string `yaml:"staff_to"`
}

// NotificationConfig contains notification queue settings
type NotificationConfig struct {
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	MaxAttempts         int    `yaml:"max_attempts"`
	StaffLocale         string `yaml:"staff_locale"`
	BreakerThreshold    int    `yaml:"breaker_threshold"`
	BreakerResetSeconds int    `yaml:"breaker_reset_seconds"`
}

// RateLimitConfig contains rate limiting settings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"` // 0 disables the hourly window
}

// WarmerConfig contains cache warming settings
type WarmerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Schedule       string   `yaml:"schedule"` // cron spec
	Paths          []string `yaml:"paths"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	UserAgent      string   `yaml:"user_agent"`
	Concurrency    int      `yaml:"concurrency"`
}

// CleanupConfig contains retention settings for finished notification jobs
type CleanupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RetentionDays int    `yaml:"retention_days"`
	DailyRunTime  string `yaml:"daily_run_time"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
}

// AuthConfig contains admin token settings
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	TokenExpiryMinutes int    `yaml:"token_expiry_minutes"`
}

// ValidationConfig contains contact form validation settings
type ValidationConfig struct {
	CheckMX bool `yaml:"check_mx"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			BaseURL:        "http://localhost:8080",
			Mode:           "release",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "./data/praxis.db"},
			Postgres: PostgresConfig{
				Port:    5432,
				SSLMode: "disable",
			},
			MySQL: MySQLConfig{Port: 3306},
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Cache: CacheConfig{
			Enabled:            true,
			Prefix:             "praxis:",
			ResponseTTLMinutes: 60,
			ContentTTLMinutes:  24 * 60,
			SessionCookie:      "praxis_session",
		},
		Mail: MailConfig{
			Enabled:   false,
			SMTPHost:  "localhost",
			SMTPPort:  587,
			FromEmail: "website@praxis.example",
			FromName:  "Praxis Website",
			StaffTo:   "empfang@praxis.example",
		},
		Notification: NotificationConfig{
			PollIntervalSeconds: 15,
			MaxAttempts:         5,
			StaffLocale:         "de",
			BreakerThreshold:    3,
			BreakerResetSeconds: 300,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 5,
			RequestsPerHour:   30,
		},
		Warmer: WarmerConfig{
			Enabled:        true,
			Schedule:       "0 */6 * * *",
			Paths:          []string{"/", "/leistungen", "/team", "/faq", "/kontakt"},
			TimeoutSeconds: 10,
			UserAgent:      "PraxisCacheWarmer/1.0",
			Concurrency:    4,
		},
		Cleanup: CleanupConfig{
			Enabled:       true,
			RetentionDays: 90,
			DailyRunTime:  "03:30",
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{Index: "form_requests"},
		},
		Auth: AuthConfig{
			TokenExpiryMinutes: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Locales:  []string{"de", "en"},
		Timezone: "Europe/Berlin",
	}
}

// LoadConfig loads configuration from a YAML file and applies environment overrides
func LoadConfig(filepath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := DefaultConfig()

	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// applyEnv overrides secrets and endpoints from the environment
func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.BaseURL = getEnv("BASE_URL", c.Server.BaseURL)

	c.Database.Type = getEnv("DB_TYPE", c.Database.Type)
	c.Database.SQLite.Path = getEnv("DB_PATH", c.Database.SQLite.Path)
	switch c.Database.Type {
	case "mysql":
		c.Database.MySQL.Host = getEnv("DB_HOST", c.Database.MySQL.Host)
		c.Database.MySQL.Port = getEnvAsInt("DB_PORT", c.Database.MySQL.Port)
		c.Database.MySQL.User = getEnv("DB_USER", c.Database.MySQL.User)
		c.Database.MySQL.Password = getEnv("DB_PASSWORD", c.Database.MySQL.Password)
		c.Database.MySQL.Database = getEnv("DB_NAME", c.Database.MySQL.Database)
	case "postgres":
		c.Database.Postgres.Host = getEnv("DB_HOST", c.Database.Postgres.Host)
		c.Database.Postgres.Port = getEnvAsInt("DB_PORT", c.Database.Postgres.Port)
		c.Database.Postgres.User = getEnv("DB_USER", c.Database.Postgres.User)
		c.Database.Postgres.Password = getEnv("DB_PASSWORD", c.Database.Postgres.Password)
		c.Database.Postgres.Database = getEnv("DB_NAME", c.Database.Postgres.Database)
	}

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Mail.Enabled = getEnvAsBool("MAIL_ENABLED", c.Mail.Enabled)
	c.Mail.SMTPHost = getEnv("SMTP_HOST", c.Mail.SMTPHost)
	c.Mail.SMTPPort = getEnvAsInt("SMTP_PORT", c.Mail.SMTPPort)
	c.Mail.Username = getEnv("SMTP_USERNAME", c.Mail.Username)
	c.Mail.Password = getEnv("SMTP_PASSWORD", c.Mail.Password)
	c.Mail.StaffTo = getEnv("MAIL_STAFF_TO", c.Mail.StaffTo)

	c.Search.Meilisearch.Host = getEnv("MEILISEARCH_HOST", c.Search.Meilisearch.Host)
	c.Search.Meilisearch.APIKey = getEnv("MEILISEARCH_KEY", c.Search.Meilisearch.APIKey)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)

	if locales := os.Getenv("LOCALES"); locales != "" {
		c.Locales = strings.Split(locales, ",")
	}
}

// Validate rejects configurations the application cannot run with
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port must be set")
	}
	switch c.Database.Type {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("database.type %q is not supported", c.Database.Type)
	}
	if len(c.Locales) == 0 {
		return fmt.Errorf("at least one locale must be configured")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be greater than 0")
	}
	if c.Notification.MaxAttempts <= 0 {
		return fmt.Errorf("notification.max_attempts must be greater than 0")
	}
	if c.Mail.Enabled && c.Mail.StaffTo == "" {
		return fmt.Errorf("mail.staff_to must be set when mail is enabled")
	}
	return nil
}

// Location returns the practice timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResponseTTL returns the response cache TTL as a duration
func (c *CacheConfig) ResponseTTL() time.Duration {
	return time.Duration(c.ResponseTTLMinutes) * time.Minute
}

// ContentTTL returns the content cache TTL as a duration
func (c *CacheConfig) ContentTTL() time.Duration {
	return time.Duration(c.ContentTTLMinutes) * time.Minute
}

// PollInterval returns the notification poll interval as a duration
func (c *NotificationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// BreakerReset returns the breaker reset timeout as a duration
func (c *NotificationConfig) BreakerReset() time.Duration {
	return time.Duration(c.BreakerResetSeconds) * time.Second
}

// GetTimeout returns the warm request timeout as a duration
func (c *WarmerConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TokenExpiry returns the admin token lifetime as a duration
func (c *AuthConfig) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpiryMinutes) * time.Minute
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
