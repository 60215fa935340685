package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/cardsched/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		Addr:                ":8080",
		DBPath:              "test.db",
		LogLevel:            "INFO",
		Timezone:            "UTC",
		MaintenanceInterval: 60,
		WorkerCount:         1,
		WorkerQueueSize:     16,
		RateLimitRPS:        20,
		RateLimitBurst:      40,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_EmptyAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Addr = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ADDR cannot be empty")
}

func TestValidate_EmptyDBPath(t *testing.T) {
	cfg := validConfig()
	cfg.DBPath = "  "

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PATH cannot be empty")
}

func TestValidate_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*config.Config)
		expectedError string
	}{
		{
			name:          "zero workers",
			mutate:        func(c *config.Config) { c.WorkerCount = 0 },
			expectedError: "WORKER_COUNT",
		},
		{
			name:          "negative queue size",
			mutate:        func(c *config.Config) { c.WorkerQueueSize = -1 },
			expectedError: "WORKER_QUEUE_SIZE",
		},
		{
			name:          "zero maintenance interval",
			mutate:        func(c *config.Config) { c.MaintenanceInterval = 0 },
			expectedError: "MAINTENANCE_INTERVAL_SECONDS",
		},
		{
			name:          "zero rate",
			mutate:        func(c *config.Config) { c.RateLimitRPS = 0 },
			expectedError: "RATE_LIMIT_RPS",
		},
		{
			name:          "zero burst",
			mutate:        func(c *config.Config) { c.RateLimitBurst = 0 },
			expectedError: "RATE_LIMIT_BURST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedError)
		})
	}
}

func TestValidate_LogLevels(t *testing.T) {
	for _, level := range []string{"DEBUG", "info", "Warn", "WARNING", "ERROR"} {
		t.Run(level, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogLevel = level
			assert.NoError(t, cfg.Validate())
		})
	}

	cfg := validConfig()
	cfg.LogLevel = "TRACE"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestValidate_Timezone(t *testing.T) {
	cfg := validConfig()
	cfg.Timezone = "Not/AZone"
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "TIMEZONE")

	cfg.Timezone = "Local"
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := config.Config{LogLevel: "INVALID"}

	err := cfg.Validate()
	require.Error(t, err)

	errStr := err.Error()
	assert.Contains(t, errStr, "ADDR cannot be empty")
	assert.Contains(t, errStr, "DB_PATH cannot be empty")
	assert.Contains(t, errStr, "LOG_LEVEL")
	assert.Contains(t, errStr, "WORKER_COUNT")
	assert.Contains(t, errStr, "WORKER_QUEUE_SIZE")
	assert.Contains(t, errStr, "RATE_LIMIT_RPS")
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("DB_PATH", "custom.db")
	t.Setenv("WORKER_COUNT", "3")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("WORKER_QUEUE_SIZE", "not-a-number")

	cfg := config.Load()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "custom.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 16, cfg.WorkerQueueSize)
}
