package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported token formats for AUTH_TOKEN_FORMAT.
const (
	TokenFormatPaseto = "paseto"
	TokenFormatJWT    = "jwt"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins for cookie auth

	// TrustProxyHeaders takes the client IP from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
	AutoMigrate    bool
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	TokenFormat string // paseto or jwt

	// Access and refresh tokens are signed with independent keys.
	// PASETO v4.local needs exactly 32 bytes; HS256 needs at least 32.
	AccessTokenKey  []byte
	RefreshTokenKey []byte

	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FromEmail    string

	// ContactNotifyEmail receives contact/enquiry submissions; empty disables it.
	ContactNotifyEmail string
}

type RateLimitConfig struct {
	// Global per-IP limit applied to every route.
	RequestsPerMinute int

	// Per-purpose limit for login, register, OTP verification and password reset.
	AuthAttempts int
	AuthWindow   time.Duration

	// Minimum spacing between two password reset emails to the same address.
	EmailCooldown time.Duration
}

// Load reads configuration from environment variables
// Call godotenv.Load() before this if using .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("CORS_ORIGIN", []string{"http://localhost:5173"}),

			TrustProxyHeaders: getBoolEnv("TRUST_PROXY_HEADERS", false),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "rentals"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
			AutoMigrate:    getBoolEnv("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			TokenFormat:          strings.ToLower(getEnv("AUTH_TOKEN_FORMAT", TokenFormatPaseto)),
			AccessTokenKey:       []byte(getEnv("ACCESS_TOKEN_KEY", "")),
			RefreshTokenKey:      []byte(getEnv("REFRESH_TOKEN_KEY", "")),
			AccessTokenDuration:  getDurationEnv("ACCESS_TOKEN_DURATION", 7*24*time.Hour),
			RefreshTokenDuration: getDurationEnv("REFRESH_TOKEN_DURATION", 30*24*time.Hour),
		},
		Email: EmailConfig{
			SMTPHost:           getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:           getEnv("SMTP_PORT", "587"),
			SMTPUser:           getEnv("SMTP_MAIL", ""),
			SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
			FromEmail:          getEnv("SMTP_FROM", getEnv("SMTP_MAIL", "")),
			ContactNotifyEmail: getEnv("CONTACT_NOTIFY_EMAIL", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntEnv("RATE_LIMIT_RPM", 100),
			AuthAttempts:      getIntEnv("RATE_LIMIT_AUTH_ATTEMPTS", 10),
			AuthWindow:        getDurationEnv("RATE_LIMIT_AUTH_WINDOW", 15*time.Minute),
			EmailCooldown:     getDurationEnv("RATE_LIMIT_EMAIL_COOLDOWN", 2*time.Minute),
		},
	}

	if err := cfg.Auth.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks token format and key material.
func (c *AuthConfig) Validate() error {
	switch c.TokenFormat {
	case TokenFormatPaseto:
		if len(c.AccessTokenKey) != 32 {
			return fmt.Errorf("ACCESS_TOKEN_KEY must be exactly 32 bytes for paseto, got %d", len(c.AccessTokenKey))
		}
		if len(c.RefreshTokenKey) != 32 {
			return fmt.Errorf("REFRESH_TOKEN_KEY must be exactly 32 bytes for paseto, got %d", len(c.RefreshTokenKey))
		}
	case TokenFormatJWT:
		if len(c.AccessTokenKey) < 32 {
			return fmt.Errorf("ACCESS_TOKEN_KEY must be at least 32 bytes for jwt, got %d", len(c.AccessTokenKey))
		}
		if len(c.RefreshTokenKey) < 32 {
			return fmt.Errorf("REFRESH_TOKEN_KEY must be at least 32 bytes for jwt, got %d", len(c.RefreshTokenKey))
		}
	default:
		return fmt.Errorf("unsupported AUTH_TOKEN_FORMAT %q", c.TokenFormat)
	}

	if bytes.Equal(c.AccessTokenKey, c.RefreshTokenKey) {
		return errors.New("ACCESS_TOKEN_KEY and REFRESH_TOKEN_KEY must differ")
	}

	if c.AccessTokenDuration <= 0 || c.RefreshTokenDuration <= 0 {
		return errors.New("token durations must be positive")
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

// Address returns the SMTP server address (host:port)
func (c *EmailConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.SMTPHost, c.SMTPPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolValue
}

// getDurationEnv accepts either a Go duration ("15m", "168h") or a plain
// number of seconds.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return d
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
