package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Telegram
	BotToken string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (matchmaking pool)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Application
	AppEnv   string
	LogLevel string

	// Matchmaking economy
	SearchCostFemale       int64
	SearchCostMale         int64
	RefundMessageThreshold int
	QueueTTLMinutes        int

	DefaultCoins int64
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		BotToken:   getEnv("BOT_TOKEN", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "anonchat"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "anonchat_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SearchCostFemale:       getEnvInt64("SEARCH_COST_FEMALE", 2),
		SearchCostMale:         getEnvInt64("SEARCH_COST_MALE", 1),
		RefundMessageThreshold: getEnvInt("REFUND_MESSAGE_THRESHOLD", 30),
		QueueTTLMinutes:        getEnvInt("QUEUE_TTL_MINUTES", 30),

		DefaultCoins: getEnvInt64("DEFAULT_COINS", 100),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.SearchCostFemale < 0 || c.SearchCostMale < 0 {
		return fmt.Errorf("search costs must not be negative")
	}
	if c.RefundMessageThreshold < 0 {
		return fmt.Errorf("REFUND_MESSAGE_THRESHOLD must not be negative")
	}
	if c.QueueTTLMinutes <= 0 {
		return fmt.Errorf("QUEUE_TTL_MINUTES must be positive")
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
	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) GetQueueTTL() time.Duration {
	return time.Duration(c.QueueTTLMinutes) * time.Minute
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}
