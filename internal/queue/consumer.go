// Queue consumer for the translator worker.
//
// Server deployments receive camera frames from clients as Redis-backed
// jobs. Asynq handles delivery, retry, and concurrency.

package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	apperrors "github.com/tripglot/translator-worker/internal/errors"
	"github.com/tripglot/translator-worker/internal/logging"
	"github.com/tripglot/translator-worker/internal/orchestrator"
)

// TaskTypeScanTranslate is the asynq task type for camera-scan jobs.
const TaskTypeScanTranslate = "scan:translate"

// ScanJob is the payload of a scan:translate task.
type ScanJob struct {
	JobID      string                 `json:"jobId"`
	UserID     string                 `json:"userId"`
	SourceLang string                 `json:"sourceLang,omitempty"`
	TargetLang string                 `json:"targetLang,omitempty"`
	ImageData  []byte                 // set by custom UnmarshalJSON
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// MarshalJSON encodes ImageData as a base64 string field.
func (j ScanJob) MarshalJSON() ([]byte, error) {
	type Alias ScanJob
	return json.Marshal(&struct {
		ImageData string `json:"imageData,omitempty"`
		Alias
	}{
		ImageData: base64.StdEncoding.EncodeToString(j.ImageData),
		Alias:     (Alias)(j),
	})
}

// UnmarshalJSON accepts the image as a base64 string.
func (j *ScanJob) UnmarshalJSON(data []byte) error {
	type Alias ScanJob
	aux := &struct {
		ImageData string `json:"imageData,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(j),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("failed to unmarshal scan job: %w", err)
	}
	if aux.ImageData != "" {
		decoded, err := base64.StdEncoding.DecodeString(aux.ImageData)
		if err != nil {
			return fmt.Errorf("failed to decode base64 imageData: %w", err)
		}
		j.ImageData = decoded
	}
	return nil
}

// Pipeline processes one scan job; implemented by the orchestrator.
type Pipeline interface {
	ProcessImage(ctx context.Context, image []byte, opts orchestrator.ProcessOptions) (*orchestrator.ScanResult, error)
}

// StatusRecorder persists job status transitions. Recording failures are
// logged, never fatal to the job.
type StatusRecorder interface {
	RecordStatus(ctx context.Context, jobID, userID, status string, detail map[string]interface{}) error
}

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	RedisURL    string
	QueueName   string
	Concurrency int
	JobTimeout  time.Duration // per-job processing bound, default 60s
	Pipeline    Pipeline
	Recorder    StatusRecorder // optional
	Logger      *logging.Logger
}

// Consumer handles scan-job consumption from the Redis queue.
type Consumer struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	cfg    *ConsumerConfig
	logger *logging.Logger
}

// NewConsumer creates a new queue consumer.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("Pipeline is required")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("queue")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := asynq.NewClient(redisOpt)

	logger := cfg.Logger
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff capped at a minute: 5s, 10s, 20s, ...
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task processing error", "type", task.Type(), "error", err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client: client,
		server: server,
		mux:    mux,
		cfg:    cfg,
		logger: logger,
	}

	mux.HandleFunc(TaskTypeScanTranslate, consumer.handleScanTranslate)

	return consumer, nil
}

// Start starts the queue consumer.
func (c *Consumer) Start() error {
	c.logger.Info("starting queue consumer", "concurrency", c.cfg.Concurrency, "queue", c.cfg.QueueName)
	go func() {
		if err := c.server.Run(c.mux); err != nil {
			c.logger.Error("queue consumer stopped", "error", err)
		}
	}()
	return nil
}

// Stop stops the queue consumer gracefully.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping queue consumer")
	c.server.Shutdown()
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}
	return nil
}

// NewScanTask builds an enqueueable task for a scan job.
func NewScanTask(job ScanJob) (*asynq.Task, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scan job: %w", err)
	}
	return asynq.NewTask(TaskTypeScanTranslate, payload), nil
}

// Enqueue submits a scan job to the queue.
func (c *Consumer) Enqueue(ctx context.Context, job ScanJob) error {
	task, err := NewScanTask(job)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task, asynq.Queue(c.cfg.QueueName)); err != nil {
		return fmt.Errorf("failed to enqueue scan job: %w", err)
	}
	return nil
}

// handleScanTranslate processes a single camera-scan job.
func (c *Consumer) handleScanTranslate(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var job ScanJob
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w", err)
	}
	if len(job.ImageData) == 0 {
		// A job with no image can never succeed; do not retry.
		c.recordStatus(ctx, &job, "failed", map[string]interface{}{"error": "empty image data"})
		return nil
	}

	c.logger.Info("processing scan job", "job", job.JobID, "user", job.UserID, "bytes", len(job.ImageData))
	c.recordStatus(ctx, &job, "processing", nil)

	processCtx, cancel := context.WithTimeout(ctx, c.cfg.JobTimeout)
	defer cancel()

	result, err := c.cfg.Pipeline.ProcessImage(processCtx, job.ImageData, orchestrator.ProcessOptions{
		SourceLang: job.SourceLang,
		TargetLang: job.TargetLang,
	})

	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			timeoutErr := apperrors.NewTranslateTimeoutError("scan-pipeline", c.cfg.JobTimeout, err)
			c.recordStatus(ctx, &job, "failed", timeoutErr.ToMap())
			return fmt.Errorf("scan job timeout: %w", timeoutErr)
		}

		c.logger.Error("scan job failed", "job", job.JobID, "duration", duration, "error", err)
		c.recordStatus(ctx, &job, "failed", map[string]interface{}{
			"error":          err.Error(),
			"processingTime": duration.Milliseconds(),
		})
		return fmt.Errorf("scan job failed: %w", err)
	}

	c.logger.Info("scan job completed",
		"job", job.JobID,
		"outcome", result.Outcome,
		"provider", result.ProviderID,
		"duration", duration)

	c.recordStatus(ctx, &job, "completed", map[string]interface{}{
		"outcome":        string(result.Outcome),
		"sourceText":     result.SourceText,
		"translation":    result.Translation,
		"provider":       result.ProviderID,
		"confidence":     result.Confidence,
		"fromCache":      result.FromCache,
		"processingTime": duration.Milliseconds(),
	})

	return nil
}

func (c *Consumer) recordStatus(ctx context.Context, job *ScanJob, status string, detail map[string]interface{}) {
	if c.cfg.Recorder == nil {
		return
	}
	if err := c.cfg.Recorder.RecordStatus(ctx, job.JobID, job.UserID, status, detail); err != nil {
		c.logger.Warn("failed to record job status", "job", job.JobID, "status", status, "error", err)
	}
}
