// Translator worker - main entry point.
//
// Consumes camera-scan jobs from the Redis queue, runs them through the
// recognition and translation pipeline, and records results. Translation
// cache and history persist in Redis; completed jobs can additionally be
// archived to PostgreSQL.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tripglot/translator-worker/internal/config"
	"github.com/tripglot/translator-worker/internal/history"
	"github.com/tripglot/translator-worker/internal/logging"
	"github.com/tripglot/translator-worker/internal/ocr"
	"github.com/tripglot/translator-worker/internal/orchestrator"
	"github.com/tripglot/translator-worker/internal/phrasebook"
	"github.com/tripglot/translator-worker/internal/queue"
	"github.com/tripglot/translator-worker/internal/storage"
	"github.com/tripglot/translator-worker/internal/store"
	"github.com/tripglot/translator-worker/internal/translate"
)

func main() {
	if err := godotenv.Load(".env.tripglot"); err != nil {
		log.Printf("Warning: .env.tripglot not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLogger("worker")
	logger.Info("translator worker starting",
		"redis", cfg.RedisURL,
		"queue", cfg.QueueName,
		"concurrency", cfg.WorkerConcurrency,
		"direction", cfg.SourceLanguage+"->"+cfg.TargetLanguage)

	ctx := context.Background()

	kv, err := store.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis store: %v", err)
	}
	defer kv.Close()

	cache := translate.NewCache(ctx, kv, cfg.CacheMaxEntries, logger.With("cache"))

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	translator := translate.NewService(translate.ServiceConfig{
		Providers: []translate.Provider{
			translate.NewMyMemoryProvider(cfg.MyMemoryBaseURL, httpClient),
			translate.NewLibreProvider(cfg.LibreBaseURL, httpClient),
		},
		Cache:      cache,
		Attempts:   cfg.ProviderAttempts,
		RetryDelay: cfg.ProviderRetryDelay,
		Timeout:    cfg.ProviderTimeout,
		Window:     cfg.BatchWindow,
		Logger:     logger.With("translate"),
	})

	engine, err := ocr.NewTesseractEngine(ocr.TesseractConfig{
		Languages: cfg.OCRLanguages,
	})
	if err != nil {
		log.Fatalf("Failed to initialize Tesseract engine: %v", err)
	}

	recognizer, err := ocr.NewRecognizer(ocr.RecognizerConfig{
		Engine:              engine,
		ConfidenceThreshold: cfg.OCRConfidenceThreshold,
		MaxDimension:        cfg.OCRMaxDimension,
		QueueDepth:          cfg.OCRQueueDepth,
		Logger:              logger.With("ocr"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize recognizer: %v", err)
	}
	defer recognizer.Close()

	historyLog, err := history.NewLog(ctx, kv, cfg.HistoryMaxEntries)
	if err != nil {
		logger.Warn("failed to load persisted history, starting empty", "error", err)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Recognizer: recognizer,
		Translator: translator,
		Phrasebook: phrasebook.NewBook(nil),
		History:    historyLog,
		SourceLang: cfg.SourceLanguage,
		TargetLang: cfg.TargetLanguage,
		Logger:     logger.With("orchestrator"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}

	var recorder queue.StatusRecorder
	if cfg.DatabaseURL != "" {
		archive, err := storage.NewArchive(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL archive: %v", err)
		}
		defer archive.Close()
		recorder = archive
		logger.Info("postgres archive enabled")
	} else {
		logger.Info("postgres archive disabled (DATABASE_URL not set)")
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:    cfg.RedisURL,
		QueueName:   cfg.QueueName,
		Concurrency: cfg.WorkerConcurrency,
		JobTimeout:  cfg.JobTimeout,
		Pipeline:    orch,
		Recorder:    recorder,
		Logger:      logger.With("queue"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}
	logger.Info("translator worker is ready", "queue", cfg.QueueName)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("shutdown signal received", "signal", sig)

	if err := consumer.Stop(); err != nil {
		logger.Error("error stopping queue consumer", "error", err)
	}

	logger.Info("shutdown complete")
}
