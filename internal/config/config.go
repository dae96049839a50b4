/**
 * Configuration for the RaidScan Worker
 *
 * Loads configuration from environment variables (optionally seeded from
 * a .env file by the caller)
 */

package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/adverant/nexus/raidscan-worker/internal/errors"
)

// Queue backends
const (
	QueueBackendRedis = "redis"
	QueueBackendAsynq = "asynq"
)

// Catalog sources
const (
	CatalogSourcePostgres = "postgres"
	CatalogSourceBuiltin  = "builtin"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// Queue configuration
	QueueBackend string
	QueueName    string

	// Worker configuration
	WorkerConcurrency int
	MaxImageSize      int64
	ProcessingTimeout time.Duration
	DownloadTimeout   time.Duration
	DownloadRetries   int

	// Tesseract configuration
	TesseractLang  string
	TessdataPrefix string

	// Reference catalog
	CatalogSource         string
	CatalogRefreshChannel string

	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:              getEnvOrDefault("REDIS_URL", "redis://nexus-redis:6379"),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		QueueBackend:          strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", QueueBackendRedis)),
		QueueName:             getEnvOrDefault("QUEUE_NAME", "raidscan:jobs"),
		WorkerConcurrency:     getEnvAsIntOrDefault("WORKER_CONCURRENCY", runtime.NumCPU()),
		MaxImageSize:          getEnvAsInt64OrDefault("MAX_IMAGE_SIZE", 20971520), // 20MB
		ProcessingTimeout:     getEnvAsDurationOrDefault("PROCESSING_TIMEOUT", 60*time.Second),
		DownloadTimeout:       getEnvAsDurationOrDefault("DOWNLOAD_TIMEOUT", 30*time.Second),
		DownloadRetries:       getEnvAsIntOrDefault("DOWNLOAD_RETRIES", 3),
		TesseractLang:         getEnvOrDefault("TESSERACT_LANG", "eng"),
		TessdataPrefix:        getEnvOrDefault("TESSDATA_PREFIX", ""),
		CatalogSource:         strings.ToLower(getEnvOrDefault("CATALOG_SOURCE", CatalogSourcePostgres)),
		CatalogRefreshChannel: getEnvOrDefault("CATALOG_REFRESH_CHANNEL", "raidscan:catalog:refresh"),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return errors.NewInvalidConfigError("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return errors.NewInvalidConfigError("DATABASE_URL is required")
	}

	if c.QueueBackend != QueueBackendRedis && c.QueueBackend != QueueBackendAsynq {
		return errors.NewInvalidConfigError(fmt.Sprintf("QUEUE_BACKEND must be %q or %q, got %q", QueueBackendRedis, QueueBackendAsynq, c.QueueBackend))
	}

	if c.QueueName == "" {
		return errors.NewInvalidConfigError("QUEUE_NAME is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 256 {
		return errors.NewInvalidConfigError(fmt.Sprintf("WORKER_CONCURRENCY must be between 1 and 256, got %d", c.WorkerConcurrency))
	}

	if c.MaxImageSize < 1024 || c.MaxImageSize > 104857600 { // 1KB to 100MB
		return errors.NewInvalidConfigError(fmt.Sprintf("MAX_IMAGE_SIZE must be between 1KB and 100MB, got %d", c.MaxImageSize))
	}

	if c.ProcessingTimeout <= 0 {
		return errors.NewInvalidConfigError(fmt.Sprintf("PROCESSING_TIMEOUT must be positive, got %s", c.ProcessingTimeout))
	}

	if c.DownloadRetries < 0 || c.DownloadRetries > 10 {
		return errors.NewInvalidConfigError(fmt.Sprintf("DOWNLOAD_RETRIES must be between 0 and 10, got %d", c.DownloadRetries))
	}

	if c.CatalogSource != CatalogSourcePostgres && c.CatalogSource != CatalogSourceBuiltin {
		return errors.NewInvalidConfigError(fmt.Sprintf("CATALOG_SOURCE must be %q or %q, got %q", CatalogSourcePostgres, CatalogSourceBuiltin, c.CatalogSource))
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDurationOrDefault reads a duration in milliseconds; Go duration
// strings ("90s") are accepted too.
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if ms, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}

	return defaultValue
}
