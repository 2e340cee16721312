// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Payment    PaymentConfig
	Settlement SettlementConfig
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PaymentConfig struct {
	// IdempotencyTTL is how long a client key deduplicates retries.
	IdempotencyTTL time.Duration
	// CancelWindow bounds cancellation of a paid order.
	CancelWindow time.Duration
}

type SettlementConfig struct {
	// DefaultFeeRate is the platform fee in whole percent.
	DefaultFeeRate int
}

func Load() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", "postgres://localhost:5432/commerce?sslmode=disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Payment: PaymentConfig{
			IdempotencyTTL: getEnvDuration("PAYMENT_IDEMPOTENCY_TTL", 24*time.Hour),
			CancelWindow:   getEnvDuration("PAYMENT_CANCEL_WINDOW", 24*time.Hour),
		},
		Settlement: SettlementConfig{
			DefaultFeeRate: getEnvInt("SETTLEMENT_DEFAULT_FEE_RATE", 10),
		},
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
