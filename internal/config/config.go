package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Security
	JWTSecret      string
	TokenTTLHours  int
	SuperuserID    string
	SuperuserEmail string

	// Application
	AppEnv   string
	AppPort  string
	LogLevel string

	// Rate Limiting
	ResetCooldownSeconds int
	RateLimitPerIP       int

	// Points
	PurchaseEarnRate int
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "loyalty"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "loyalty_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:      getEnv("JWT_SECRET_KEY", ""),
		TokenTTLHours:  getEnvInt("TOKEN_TTL_HOURS", 168),
		SuperuserID:    getEnv("SUPERUSER_UTORID", ""),
		SuperuserEmail: getEnv("SUPERUSER_EMAIL", ""),

		AppEnv:   getEnv("APP_ENV", "development"),
		AppPort:  getEnv("APP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ResetCooldownSeconds: getEnvInt("RESET_COOLDOWN_SECONDS", 60),
		RateLimitPerIP:       getEnvInt("RATE_LIMIT_PER_IP", 100),

		PurchaseEarnRate: getEnvInt("PURCHASE_EARN_RATE", 4),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.PurchaseEarnRate <= 0 {
		return fmt.Errorf("PURCHASE_EARN_RATE must be positive")
	}
	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.JWTSecret == "your_jwt_secret_minimum_32_chars_here_change_this" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default in production")
	}
	if c.SuperuserID == "" {
		return fmt.Errorf("SUPERUSER_UTORID must be set in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

func (c *Config) GetResetCooldown() time.Duration {
	return time.Duration(c.ResetCooldownSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
