// Configuration for the tripglot translator worker.
//
// Loads configuration from environment variables matching .env.tripglot.

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (scan queue + key-value persistence)
	RedisURL string

	// PostgreSQL archive (optional; empty disables the archive)
	DatabaseURL string

	// Scan queue
	QueueName         string
	WorkerConcurrency int
	JobTimeout        time.Duration

	// OCR configuration
	TesseractPath          string
	OCRLanguages           []string
	OCRConfidenceThreshold float64
	OCRMaxDimension        int
	OCRQueueDepth          int

	// Translation providers
	MyMemoryBaseURL    string
	LibreBaseURL       string
	ProviderAttempts   int
	ProviderRetryDelay time.Duration
	ProviderTimeout    time.Duration
	BatchWindow        int

	// Translation cache and history
	CacheMaxEntries   int
	HistoryMaxEntries int

	// Default language direction
	SourceLanguage string
	TargetLanguage string

	// Camera auto-scan
	AutoScanInterval time.Duration

	// Speech adapter
	SpeechRestartAttempts int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:               getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:            getEnvOrDefault("DATABASE_URL", ""),
		QueueName:              getEnvOrDefault("SCAN_QUEUE_NAME", "tripglot:scans"),
		WorkerConcurrency:      getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		JobTimeout:             getEnvAsDurationOrDefault("JOB_TIMEOUT_MS", 60000),
		TesseractPath:          getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		OCRLanguages:           []string{getEnvOrDefault("OCR_LANGUAGE", "jpn"), "eng"},
		OCRConfidenceThreshold: getEnvAsFloatOrDefault("OCR_CONFIDENCE_THRESHOLD", 40),
		OCRMaxDimension:        getEnvAsIntOrDefault("OCR_MAX_DIMENSION", 1280),
		OCRQueueDepth:          getEnvAsIntOrDefault("OCR_QUEUE_DEPTH", 64),
		MyMemoryBaseURL:        getEnvOrDefault("MYMEMORY_BASE_URL", "https://api.mymemory.translated.net"),
		LibreBaseURL:           getEnvOrDefault("LIBRETRANSLATE_BASE_URL", "https://libretranslate.de"),
		ProviderAttempts:       getEnvAsIntOrDefault("PROVIDER_ATTEMPTS", 2),
		ProviderRetryDelay:     getEnvAsDurationOrDefault("PROVIDER_RETRY_DELAY_MS", 1000),
		ProviderTimeout:        getEnvAsDurationOrDefault("PROVIDER_TIMEOUT_MS", 10000),
		BatchWindow:            getEnvAsIntOrDefault("BATCH_WINDOW", 3),
		CacheMaxEntries:        getEnvAsIntOrDefault("CACHE_MAX_ENTRIES", 500),
		HistoryMaxEntries:      getEnvAsIntOrDefault("HISTORY_MAX_ENTRIES", 50),
		SourceLanguage:         getEnvOrDefault("SOURCE_LANGUAGE", "ja"),
		TargetLanguage:         getEnvOrDefault("TARGET_LANGUAGE", "en"),
		AutoScanInterval:       getEnvAsDurationOrDefault("AUTO_SCAN_INTERVAL_MS", 4000),
		SpeechRestartAttempts:  getEnvAsIntOrDefault("SPEECH_RESTART_ATTEMPTS", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 64 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 64, got %d", c.WorkerConcurrency)
	}

	if c.OCRConfidenceThreshold < 0 || c.OCRConfidenceThreshold > 100 {
		return fmt.Errorf("OCR_CONFIDENCE_THRESHOLD must be between 0 and 100, got %v", c.OCRConfidenceThreshold)
	}

	if c.ProviderAttempts < 1 {
		return fmt.Errorf("PROVIDER_ATTEMPTS must be at least 1, got %d", c.ProviderAttempts)
	}

	if c.BatchWindow < 1 {
		return fmt.Errorf("BATCH_WINDOW must be at least 1, got %d", c.BatchWindow)
	}

	if c.CacheMaxEntries < 4 {
		return fmt.Errorf("CACHE_MAX_ENTRIES must be at least 4, got %d", c.CacheMaxEntries)
	}

	if c.HistoryMaxEntries < 1 {
		return fmt.Errorf("HISTORY_MAX_ENTRIES must be at least 1, got %d", c.HistoryMaxEntries)
	}

	if c.SourceLanguage == c.TargetLanguage {
		return fmt.Errorf("SOURCE_LANGUAGE and TARGET_LANGUAGE must differ, got %q for both", c.SourceLanguage)
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

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDurationOrDefault reads a millisecond count or returns the default.
func getEnvAsDurationOrDefault(key string, defaultMs int64) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return time.Duration(defaultMs) * time.Millisecond
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return time.Duration(defaultMs) * time.Millisecond
	}

	return time.Duration(value) * time.Millisecond
}
