// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string        // Base directory for the sqlite databases (always absolute)
	Port            int           // HTTP listen port
	LogLevel        string        // debug, info, warn, error
	DevMode         bool          // Enables pretty logging and relaxed CORS
	CacheDuration   time.Duration // Snapshot freshness window
	DebounceDelay   time.Duration // Event bridge coalescing delay
	CleanupGrace    time.Duration // Grace period before heavy resources are torn down
	MemoTTL         time.Duration // Offload worker memoization TTL
	CollectionLimit int           // Max documents fetched per collection
	SweepSpec       string        // Cron spec for the staleness sweep
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("PULSE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

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
		DataDir:         absDataDir,
		Port:            getEnvAsInt("PULSE_PORT", 8040),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		CacheDuration:   getEnvAsDuration("PULSE_CACHE_DURATION", 5*time.Minute),
		DebounceDelay:   getEnvAsDuration("PULSE_DEBOUNCE_DELAY", 2*time.Second),
		CleanupGrace:    getEnvAsDuration("PULSE_CLEANUP_GRACE", 30*time.Second),
		MemoTTL:         getEnvAsDuration("PULSE_MEMO_TTL", 60*time.Second),
		CollectionLimit: getEnvAsInt("PULSE_COLLECTION_LIMIT", 5000),
		SweepSpec:       getEnv("PULSE_SWEEP_SPEC", "@every 1m"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.CacheDuration <= 0 {
		return fmt.Errorf("cache duration must be positive, got %s", c.CacheDuration)
	}
	if c.CollectionLimit <= 0 {
		return fmt.Errorf("collection limit must be positive, got %d", c.CollectionLimit)
	}
	return nil
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
