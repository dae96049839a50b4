package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/raidscan-worker/internal/errors"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://raidscan@localhost/raidscan?sslmode=disable")
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("PROCESSING_TIMEOUT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, QueueBackendRedis, cfg.QueueBackend)
	assert.Equal(t, runtime.NumCPU(), cfg.WorkerConcurrency)
	assert.Equal(t, 60*time.Second, cfg.ProcessingTimeout)
	assert.Equal(t, "eng", cfg.TesseractLang)
	assert.Equal(t, CatalogSourcePostgres, cfg.CatalogSource)
}

func TestLoadConfigRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrorInvalidConfig))
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/raidscan")
	t.Setenv("QUEUE_BACKEND", "ASYNQ")
	t.Setenv("WORKER_CONCURRENCY", "3")
	t.Setenv("PROCESSING_TIMEOUT", "1500")
	t.Setenv("DOWNLOAD_TIMEOUT", "2s")
	t.Setenv("CATALOG_SOURCE", "builtin")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, QueueBackendAsynq, cfg.QueueBackend)
	assert.Equal(t, 3, cfg.WorkerConcurrency)
	assert.Equal(t, 1500*time.Millisecond, cfg.ProcessingTimeout)
	assert.Equal(t, 2*time.Second, cfg.DownloadTimeout)
	assert.Equal(t, CatalogSourceBuiltin, cfg.CatalogSource)
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RedisURL:          "redis://localhost:6379",
			DatabaseURL:       "postgres://localhost/raidscan",
			QueueBackend:      QueueBackendRedis,
			QueueName:         "raidscan:jobs",
			WorkerConcurrency: 4,
			MaxImageSize:      1 << 20,
			ProcessingTimeout: time.Minute,
			DownloadRetries:   3,
			CatalogSource:     CatalogSourceBuiltin,
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"concurrency zero", func(c *Config) { c.WorkerConcurrency = 0 }},
		{"concurrency too high", func(c *Config) { c.WorkerConcurrency = 1000 }},
		{"unknown backend", func(c *Config) { c.QueueBackend = "kafka" }},
		{"tiny image limit", func(c *Config) { c.MaxImageSize = 10 }},
		{"no timeout", func(c *Config) { c.ProcessingTimeout = 0 }},
		{"unknown catalog", func(c *Config) { c.CatalogSource = "csv" }},
		{"no queue", func(c *Config) { c.QueueName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
