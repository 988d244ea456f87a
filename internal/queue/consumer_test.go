package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tripglot/translator-worker/internal/orchestrator"
)

type fakePipeline struct {
	mu     sync.Mutex
	result *orchestrator.ScanResult
	err    error
	images [][]byte
	opts   []orchestrator.ProcessOptions
}

func (f *fakePipeline) ProcessImage(ctx context.Context, image []byte, opts orchestrator.ProcessOptions) (*orchestrator.ScanResult, error) {
	f.mu.Lock()
	f.images = append(f.images, image)
	f.opts = append(f.opts, opts)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &orchestrator.ScanResult{Outcome: orchestrator.ScanTranslated}, nil
}

type statusRecord struct {
	jobID  string
	status string
	detail map[string]interface{}
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []statusRecord
	err     error
}

func (f *fakeRecorder) RecordStatus(ctx context.Context, jobID, userID, status string, detail map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, statusRecord{jobID: jobID, status: status, detail: detail})
	return nil
}

func (f *fakeRecorder) statuses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.records))
	for i, r := range f.records {
		out[i] = r.status
	}
	return out
}

func newTestConsumer(t *testing.T, pipeline Pipeline, recorder StatusRecorder) *Consumer {
	t.Helper()
	c, err := NewConsumer(&ConsumerConfig{
		RedisURL:   "redis://localhost:6379",
		QueueName:  "tripglot:scans",
		JobTimeout: time.Second,
		Pipeline:   pipeline,
		Recorder:   recorder,
	})
	if err != nil {
		t.Fatalf("NewConsumer: %v", err)
	}
	return c
}

func scanTask(t *testing.T, job ScanJob) *asynq.Task {
	t.Helper()
	task, err := NewScanTask(job)
	if err != nil {
		t.Fatalf("NewScanTask: %v", err)
	}
	return task
}

func TestScanJob_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	job := ScanJob{
		JobID:      "job-1",
		UserID:     "user-9",
		SourceLang: "ja",
		TargetLang: "en",
		ImageData:  []byte{0xff, 0xd8, 0xff, 0x00},
		Metadata:   map[string]interface{}{"device": "phone"},
	}

	encoded, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	// The image travels as a base64 string, never raw bytes.
	if !strings.Contains(string(encoded), `"imageData":"`) {
		t.Errorf("encoded payload: %s", encoded)
	}

	var decoded ScanJob
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.JobID != "job-1" || decoded.SourceLang != "ja" {
		t.Errorf("decoded = %+v", decoded)
	}
	if !bytes.Equal(decoded.ImageData, job.ImageData) {
		t.Errorf("image bytes corrupted: %v", decoded.ImageData)
	}
}

func TestScanJob_RejectsBadBase64(t *testing.T) {
	t.Parallel()

	var job ScanJob
	err := json.Unmarshal([]byte(`{"jobId":"j","imageData":"%%%not-base64%%%"}`), &job)
	if err == nil {
		t.Error("expected base64 decode error")
	}
}

func TestNewConsumer_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewConsumer(&ConsumerConfig{QueueName: "q", Pipeline: &fakePipeline{}})
	if err == nil {
		t.Error("expected error without RedisURL")
	}

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", Pipeline: &fakePipeline{}})
	if err == nil {
		t.Error("expected error without QueueName")
	}

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "q"})
	if err == nil {
		t.Error("expected error without Pipeline")
	}

	_, err = NewConsumer(&ConsumerConfig{RedisURL: "::bad::", QueueName: "q", Pipeline: &fakePipeline{}})
	if err == nil {
		t.Error("expected error for unparseable Redis URL")
	}
}

func TestHandleScanTranslate_Success(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{result: &orchestrator.ScanResult{
		Outcome:     orchestrator.ScanTranslated,
		SourceText:  "こんにちは",
		Translation: "Hello",
		ProviderID:  "mymemory",
		Confidence:  0.96,
	}}
	recorder := &fakeRecorder{}
	c := newTestConsumer(t, pipeline, recorder)

	job := ScanJob{JobID: "job-1", UserID: "u-1", SourceLang: "ja", TargetLang: "en", ImageData: []byte("img")}
	if err := c.handleScanTranslate(context.Background(), scanTask(t, job)); err != nil {
		t.Fatalf("handleScanTranslate: %v", err)
	}

	pipeline.mu.Lock()
	if len(pipeline.images) != 1 || !bytes.Equal(pipeline.images[0], []byte("img")) {
		t.Errorf("pipeline saw %v", pipeline.images)
	}
	if pipeline.opts[0].SourceLang != "ja" || pipeline.opts[0].TargetLang != "en" {
		t.Errorf("opts = %+v", pipeline.opts[0])
	}
	pipeline.mu.Unlock()

	statuses := recorder.statuses()
	if len(statuses) != 2 || statuses[0] != "processing" || statuses[1] != "completed" {
		t.Fatalf("statuses = %v", statuses)
	}

	recorder.mu.Lock()
	detail := recorder.records[1].detail
	recorder.mu.Unlock()
	if detail["outcome"] != "translated" || detail["translation"] != "Hello" {
		t.Errorf("completion detail = %v", detail)
	}
}

func TestHandleScanTranslate_EmptyImageIsNotRetried(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{}
	recorder := &fakeRecorder{}
	c := newTestConsumer(t, pipeline, recorder)

	job := ScanJob{JobID: "job-2"}
	// A nil error tells asynq the task is done; retrying cannot help.
	if err := c.handleScanTranslate(context.Background(), scanTask(t, job)); err != nil {
		t.Fatalf("handleScanTranslate: %v", err)
	}

	pipeline.mu.Lock()
	calls := len(pipeline.images)
	pipeline.mu.Unlock()
	if calls != 0 {
		t.Errorf("pipeline called %d times for an empty image", calls)
	}

	statuses := recorder.statuses()
	if len(statuses) != 1 || statuses[0] != "failed" {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestHandleScanTranslate_PipelineFailureIsRetried(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{err: errors.New("tesseract crashed")}
	recorder := &fakeRecorder{}
	c := newTestConsumer(t, pipeline, recorder)

	job := ScanJob{JobID: "job-3", ImageData: []byte("img")}
	err := c.handleScanTranslate(context.Background(), scanTask(t, job))
	if err == nil {
		t.Fatal("expected error so asynq retries the task")
	}

	statuses := recorder.statuses()
	if len(statuses) != 2 || statuses[1] != "failed" {
		t.Errorf("statuses = %v", statuses)
	}
}

func TestHandleScanTranslate_RecorderFailureDoesNotFailJob(t *testing.T) {
	t.Parallel()

	pipeline := &fakePipeline{}
	recorder := &fakeRecorder{err: errors.New("database down")}
	c := newTestConsumer(t, pipeline, recorder)

	job := ScanJob{JobID: "job-4", ImageData: []byte("img")}
	if err := c.handleScanTranslate(context.Background(), scanTask(t, job)); err != nil {
		t.Errorf("recorder failure must not fail the job: %v", err)
	}
}

func TestHandleScanTranslate_MalformedPayload(t *testing.T) {
	t.Parallel()

	c := newTestConsumer(t, &fakePipeline{}, nil)
	task := asynq.NewTask(TaskTypeScanTranslate, []byte("{not json"))
	if err := c.handleScanTranslate(context.Background(), task); err == nil {
		t.Error("expected error for malformed payload")
	}
}
