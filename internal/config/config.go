package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vytor/cardsched/internal/logger"
)

type Config struct {
	Addr                string
	DBPath              string
	LogLevel            string
	Timezone            string
	MaintenanceInterval int
	WorkerCount         int
	WorkerQueueSize     int
	RateLimitRPS        float64
	RateLimitBurst      int
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:                envOr("ADDR", ":8080"),
		DBPath:              envOr("DB_PATH", "file:collection.db"),
		LogLevel:            envOr("LOG_LEVEL", "INFO"),
		Timezone:            envOr("TIMEZONE", "Local"),
		MaintenanceInterval: envIntOr("MAINTENANCE_INTERVAL_SECONDS", 60),
		WorkerCount:         envIntOr("WORKER_COUNT", 1),
		WorkerQueueSize:     envIntOr("WORKER_QUEUE_SIZE", 16),
		RateLimitRPS:        envFloatOr("RATE_LIMIT_RPS", 20),
		RateLimitBurst:      envIntOr("RATE_LIMIT_BURST", 40),
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "ADDR cannot be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "DB_PATH cannot be empty")
	}
	if !logger.ValidLevel(c.LogLevel) {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL %q is not one of DEBUG, INFO, WARN, ERROR", c.LogLevel))
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("TIMEZONE %q is invalid: %v", c.Timezone, err))
	}
	if c.MaintenanceInterval < 1 {
		problems = append(problems, "MAINTENANCE_INTERVAL_SECONDS must be at least 1")
	}
	if c.WorkerCount < 1 {
		problems = append(problems, "WORKER_COUNT must be at least 1")
	}
	if c.WorkerQueueSize < 1 {
		problems = append(problems, "WORKER_QUEUE_SIZE must be at least 1")
	}
	if c.RateLimitRPS <= 0 {
		problems = append(problems, "RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitBurst < 1 {
		problems = append(problems, "RATE_LIMIT_BURST must be at least 1")
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves the configured time zone used for the day rollover.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "Local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envFloatOr(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid value for %s=%q, using default %g", key, v, def)
	}
	return def
}
