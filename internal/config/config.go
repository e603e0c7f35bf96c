// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (defaults to "./data", always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	// Factor data
	FactorsURL             string // Daily five-factor zip; empty uses the Kenneth French library
	FactorsRefreshSchedule string // Six-field cron expression (with seconds)

	// Simulation defaults
	DefaultTrials     int
	SimulationWorkers int // 0 uses one worker per CPU, see Workers
	MaxSimulatedSteps int // Per-request cap on trials x horizon; 0 uses the library limit

	Storage *StorageConfig
}

// StorageConfig holds Cloudflare R2 credentials for report uploads
type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// Enabled reports whether report uploads are configured
func (s *StorageConfig) Enabled() bool {
	return s != nil && s.AccountID != "" && s.AccessKeyID != "" && s.SecretAccessKey != "" && s.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                absDataDir,
		Port:                   getEnvAsInt("PORT", 8080),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		FactorsURL:             getEnv("FACTORS_URL", ""),
		FactorsRefreshSchedule: getEnv("FACTORS_REFRESH_SCHEDULE", "0 30 6 * * *"),
		DefaultTrials:          getEnvAsInt("DEFAULT_TRIALS", 10000),
		SimulationWorkers:      getEnvAsInt("SIMULATION_WORKERS", 0),
		MaxSimulatedSteps:      getEnvAsInt("MAX_SIMULATED_STEPS", 100_000_000),
		Storage: &StorageConfig{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("R2_BUCKET", ""),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DefaultTrials < 1 {
		return fmt.Errorf("DEFAULT_TRIALS must be positive, got %d", c.DefaultTrials)
	}
	if c.SimulationWorkers < 0 {
		return fmt.Errorf("SIMULATION_WORKERS must not be negative, got %d", c.SimulationWorkers)
	}
	if c.MaxSimulatedSteps < 0 {
		return fmt.Errorf("MAX_SIMULATED_STEPS must not be negative, got %d", c.MaxSimulatedSteps)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.FactorsRefreshSchedule); err != nil {
		return fmt.Errorf("invalid FACTORS_REFRESH_SCHEDULE %q: %w", c.FactorsRefreshSchedule, err)
	}

	// R2 credentials are all-or-nothing
	if s := c.Storage; s != nil && !s.Enabled() &&
		(s.AccountID != "" || s.AccessKeyID != "" || s.SecretAccessKey != "" || s.Bucket != "") {
		return fmt.Errorf("R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET must be set together")
	}

	return nil
}

// Workers returns the simulation worker count, resolving 0 to runtime.NumCPU.
func (c *Config) Workers() int {
	if c.SimulationWorkers == 0 {
		return runtime.NumCPU()
	}
	return c.SimulationWorkers
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
