/**
 * RaidScan Worker - Main Entry Point
 *
 * Go worker that turns game screenshots into structured records.
 *
 * Architecture:
 * - Redis list or Asynq consumer for the screenshot job queue
 * - Region crops and multi-threshold Tesseract passes per field
 * - Fuzzy boss lookup against a hot-swappable catalog snapshot
 * - PostgreSQL persistence for job status, records and the boss list
 *
 * Screenshot types:
 * 1. raid    - gym, timers, tier, boss and phone clock
 * 2. profile - team, level, trainer name and XP
 * 3. expass  - expiring pass banner (date, gym, location)
 * 4. boss    - a bare boss card
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adverant/nexus/raidscan-worker/internal/catalog"
	"github.com/adverant/nexus/raidscan-worker/internal/config"
	"github.com/adverant/nexus/raidscan-worker/internal/extract"
	"github.com/adverant/nexus/raidscan-worker/internal/logging"
	"github.com/adverant/nexus/raidscan-worker/internal/ocr"
	"github.com/adverant/nexus/raidscan-worker/internal/processor"
	"github.com/adverant/nexus/raidscan-worker/internal/queue"
	"github.com/adverant/nexus/raidscan-worker/internal/storage"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// consumer is the lifecycle shared by both queue backends.
type consumer interface {
	start(ctx context.Context) error
	stop(ctx context.Context) error
}

type listConsumer struct{ c *queue.RedisConsumer }

func (l listConsumer) start(context.Context) error { return l.c.Start() }
func (l listConsumer) stop(context.Context) error  { return l.c.Stop() }

type asynqConsumer struct{ c *queue.Consumer }

func (a asynqConsumer) start(ctx context.Context) error { return a.c.Start(ctx) }
func (a asynqConsumer) stop(ctx context.Context) error  { return a.c.Stop(ctx) }

func main() {
	logger := logging.NewLogger("worker")

	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		logger.Warn(".env not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.SetLevel(cfg.LogLevel)

	logger.Info("RaidScan Worker starting...")
	logger.Info("Configuration loaded",
		"queueBackend", cfg.QueueBackend,
		"queue", cfg.QueueName,
		"workers", cfg.WorkerConcurrency,
		"catalogSource", cfg.CatalogSource)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	logger.Info("Connecting to PostgreSQL...")
	storageManager, err := storage.NewStorageManager(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to initialize storage manager", "error", err)
		os.Exit(1)
	}
	defer storageManager.Close()

	if err := storageManager.Postgres().EnsureSchema(ctx); err != nil {
		logger.Error("Failed to ensure schema", "error", err)
		os.Exit(1)
	}
	logger.Info("Storage manager initialized")

	// Redis
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("Failed to parse Redis URL", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpt)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	// Catalog: builtin list first so jobs never wait on the database
	store := catalog.NewStore(catalog.Builtin())
	if cfg.CatalogSource == config.CatalogSourcePostgres {
		refresher := catalog.NewRefresher(store, storageManager.Postgres(), "postgres", logging.NewLogger("catalog"))
		if _, err := refresher.Refresh(ctx); err != nil {
			logger.Warn("Using builtin boss list", "error", err)
		}
		go func() {
			if err := refresher.Listen(ctx, redisClient, cfg.CatalogRefreshChannel); err != nil {
				logger.Error("Catalog listener stopped", "error", err)
			}
		}()
	}
	if snap, ok := store.Current(); ok {
		logger.Info("Boss catalog ready", "snapshot", snap.ID(), "names", len(snap.Names()))
	}

	// OCR and extraction engine
	recognizer, err := ocr.NewTesseract(&ocr.TesseractConfig{
		Language:       cfg.TesseractLang,
		TessdataPrefix: cfg.TessdataPrefix,
	})
	if err != nil {
		logger.Error("Failed to initialize Tesseract", "error", err)
		os.Exit(1)
	}
	logger.Info("Tesseract initialized", "version", recognizer.Version(), "lang", cfg.TesseractLang)

	engine := extract.NewEngine(recognizer, logging.NewLogger("extract"))

	proc, err := processor.NewScanProcessor(&processor.ProcessorConfig{
		Engine:          engine,
		Catalog:         store,
		Store:           storageManager,
		MaxImageSize:    cfg.MaxImageSize,
		DownloadTimeout: cfg.DownloadTimeout,
		DownloadRetries: cfg.DownloadRetries,
		Logger:          logging.NewLogger("processor"),
	})
	if err != nil {
		logger.Error("Failed to initialize scan processor", "error", err)
		os.Exit(1)
	}

	// Queue consumer
	var queueConsumer consumer
	switch cfg.QueueBackend {
	case config.QueueBackendAsynq:
		c, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: cfg.ProcessingTimeout,
			Logger:            logging.NewLogger("queue"),
		})
		if err != nil {
			logger.Error("Failed to initialize queue consumer", "error", err)
			os.Exit(1)
		}
		queueConsumer = asynqConsumer{c}
	default:
		c, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			Client:            redisClient,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: cfg.ProcessingTimeout,
			Logger:            logging.NewLogger("queue"),
		})
		if err != nil {
			logger.Error("Failed to initialize queue consumer", "error", err)
			os.Exit(1)
		}
		queueConsumer = listConsumer{c}
	}

	if err := queueConsumer.start(ctx); err != nil {
		logger.Error("Failed to start queue consumer", "error", err)
		os.Exit(1)
	}

	if err := healthCheck(storageManager.Postgres(), redisClient); err != nil {
		logger.Warn("Health check failed after startup", "error", err)
	}

	logger.Info("===========================================")
	logger.Info("RaidScan Worker is READY")
	logger.Info("===========================================")
	logger.Info("Queue", "name", cfg.QueueName, "backend", cfg.QueueBackend)
	logger.Info("Workers", "count", cfg.WorkerConcurrency)
	logger.Info("Processing timeout", "duration", cfg.ProcessingTimeout)
	logger.Info("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Received signal, initiating graceful shutdown...", "signal", sig.String())

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ProcessingTimeout+5*time.Second)
	defer stopCancel()

	if err := queueConsumer.stop(stopCtx); err != nil {
		logger.Error("Error stopping queue consumer", "error", err)
	} else {
		logger.Info("Queue consumer stopped successfully")
	}
	cancel()

	logger.Info("Shutdown complete")
}

// healthCheck verifies the database and Redis are reachable.
func healthCheck(db *storage.PostgresClient, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
