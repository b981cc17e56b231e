package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the env-driven runtime configuration.
type Config struct {
	HTTPAddr  string
	MySQLDSN  string
	RedisAddr string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	OutboxInterval time.Duration
	OutboxBatch    int
}

// FromEnv reads the configuration, falling back to local-development
// defaults.
func FromEnv() Config {
	return Config{
		HTTPAddr:        envString("HTTP_ADDR", ":8080"),
		MySQLDSN:        envString("MYSQL_DSN", "root:root@tcp(localhost:3306)/orders?parseTime=true"),
		RedisAddr:       envString("REDIS_ADDR", "localhost:6379"),
		MaxOpenConns:    envInt("MYSQL_MAX_OPEN_CONNS", 50),
		MaxIdleConns:    envInt("MYSQL_MAX_IDLE_CONNS", 25),
		ConnMaxLifetime: envDuration("MYSQL_CONN_MAX_LIFETIME", 5*time.Minute),
		OutboxInterval:  envDuration("OUTBOX_INTERVAL", time.Second),
		OutboxBatch:     envInt("OUTBOX_BATCH", 100),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
