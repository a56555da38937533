package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Token store backends.
const (
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Token store
	TokenStore string
	RedisAddr  string
	RedisDB    int

	// JWT
	JWTSecret        string
	JWTIssuer        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
	ResetPasswordTTL time.Duration
	VerifyEmailTTL   time.Duration
	VerifyOTPTTL     time.Duration
	UpdateEmailTTL   time.Duration
	ConsoleInviteTTL time.Duration

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "gatekeeper"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Token store defaults (postgres unless redis is requested)
		TokenStore: getEnv("TOKEN_STORE", TokenStorePostgres),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:    getEnvInt("REDIS_DB", 0),

		// JWT defaults
		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", "gatekeeper"),
		AccessTokenTTL:   getEnvDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		RefreshTokenTTL:  getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		ResetPasswordTTL: getEnvDuration("RESET_PASSWORD_TTL", 10*time.Minute),
		VerifyEmailTTL:   getEnvDuration("VERIFY_EMAIL_TTL", 10*time.Minute),
		VerifyOTPTTL:     getEnvDuration("VERIFY_OTP_TTL", 10*time.Minute),
		UpdateEmailTTL:   getEnvDuration("UPDATE_EMAIL_TTL", 10*time.Minute),
		ConsoleInviteTTL: getEnvDuration("CONSOLE_INVITE_TTL", 72*time.Hour),

		// SMTP (optional; email dispatch is disabled without a host)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@gatekeeper.local"),
	}

	// Validate required fields
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.TokenStore != TokenStorePostgres && cfg.TokenStore != TokenStoreRedis {
		return nil, fmt.Errorf("TOKEN_STORE must be %q or %q", TokenStorePostgres, TokenStoreRedis)
	}

	return cfg, nil
}

// HasSMTP returns true if outbound email is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
