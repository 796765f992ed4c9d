// Package config provides configuration management for the enrichment service.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration to ensure the service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Result Cache:
//   - CACHE_ENABLED: Enable result caching (default: true)
//   - CACHE_BACKEND: Backing store - "redis" or "local" (default: local)
//   - CACHE_TTL: Cache entry time-to-live (default: 300s)
//
// Redis Configuration (used when CACHE_BACKEND=redis):
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Batch Execution:
//   - BATCH_MAX_SIZE: Maximum requests per batch call (default: 100)
//   - BATCH_CONCURRENCY: Concurrent pipeline executions per batch (default: 10)
//
// Provider:
//   - PROVIDER_NAME: Logical provider name reported in responses (default: default)
//   - PROVIDER_URL: Provider endpoint URL (required when the HTTP provider is used)
//   - PROVIDER_TIMEOUT: Provider request timeout (default: 30s)
//   - PROVIDER_RATE_LIMIT: Provider requests per second, 0 disables (default: 0)
//   - PROVIDER_MAX_RETRIES: Provider fetch attempts (default: 3)
//
// History:
//   - HISTORY_ENABLED: Record enrichment outcomes to sqlite (default: false)
//   - HISTORY_PATH: History database file path (default: ./enrichment_history.db)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the enrichment service.
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Result cache configuration
	CacheEnabled bool          // Whether result caching is enabled
	CacheBackend string        // Backing store: "redis" or "local"
	CacheTTL     time.Duration // TTL for cached enrichment results

	// Redis configuration for the distributed backing store
	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       int    // Redis database number (0-15)
	RedisPoolSize int    // Redis connection pool size

	// Batch execution configuration
	BatchMaxSize     int // Maximum number of requests per batch call
	BatchConcurrency int // Degree of parallelism for unique-key dispatch

	// Provider configuration
	ProviderName       string        // Logical provider name reported in responses
	ProviderURL        string        // Provider endpoint URL
	ProviderTimeout    time.Duration // Per-fetch timeout
	ProviderRateLimit  int           // Requests per second (0 = unlimited)
	ProviderMaxRetries int           // Fetch attempts including the first

	// History configuration
	HistoryEnabled bool   // Whether enrichment outcomes are recorded
	HistoryPath    string // sqlite database file path
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding
// default value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all required values are properly set and valid.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CacheEnabled: getBoolEnv("CACHE_ENABLED", true),
		CacheBackend: getEnv("CACHE_BACKEND", "local"),
		CacheTTL:     getDurationEnv("CACHE_TTL", 5*time.Minute),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		RedisPoolSize: getIntEnv("REDIS_POOL_SIZE", 10),

		BatchMaxSize:     getIntEnv("BATCH_MAX_SIZE", 100),
		BatchConcurrency: getIntEnv("BATCH_CONCURRENCY", 10),

		ProviderName:       getEnv("PROVIDER_NAME", "default"),
		ProviderURL:        getEnv("PROVIDER_URL", ""),
		ProviderTimeout:    getDurationEnv("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderRateLimit:  getIntEnv("PROVIDER_RATE_LIMIT", 0),
		ProviderMaxRetries: getIntEnv("PROVIDER_MAX_RETRIES", 3),

		HistoryEnabled: getBoolEnv("HISTORY_ENABLED", false),
		HistoryPath:    getEnv("HISTORY_PATH", "./enrichment_history.db"),
	}
}

// Validate checks that the configuration is internally consistent and safe
// to start with.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}

	if c.CacheBackend != "redis" && c.CacheBackend != "local" {
		return fmt.Errorf("CACHE_BACKEND must be \"redis\" or \"local\", got %q", c.CacheBackend)
	}

	if c.CacheEnabled && c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive when caching is enabled, got %v", c.CacheTTL)
	}

	if c.CacheBackend == "redis" {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when CACHE_BACKEND=redis")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be between 0 and 15, got %d", c.RedisDB)
		}
	}

	if c.BatchMaxSize <= 0 {
		return fmt.Errorf("BATCH_MAX_SIZE must be positive, got %d", c.BatchMaxSize)
	}

	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	}

	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %v", c.ProviderTimeout)
	}

	if c.ProviderMaxRetries <= 0 {
		return fmt.Errorf("PROVIDER_MAX_RETRIES must be positive, got %d", c.ProviderMaxRetries)
	}

	if c.HistoryEnabled && c.HistoryPath == "" {
		return fmt.Errorf("HISTORY_PATH is required when HISTORY_ENABLED=true")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
