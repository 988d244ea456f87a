// PostgreSQL archive for the translator worker.
//
// Durable record of scan jobs and their translations, for deployments
// that want more than the Redis-backed history. Optional: an empty
// DATABASE_URL disables it.

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// JobRecord is one archived scan-job status row.
type JobRecord struct {
	JobID       string
	UserID      string
	Status      string
	SourceText  string
	Translation string
	ProviderID  string
	Confidence  float64
	Detail      map[string]interface{}
}

// Archive persists job records in PostgreSQL.
type Archive struct {
	db *sql.DB
}

// NewArchive connects and verifies the database, creating the schema if
// it does not exist.
func NewArchive(databaseURL string) (*Archive, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Archive{db: db}
	if err := a.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS scan_jobs (
	job_id      TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	source_text TEXT NOT NULL DEFAULT '',
	translation TEXT NOT NULL DEFAULT '',
	provider_id TEXT NOT NULL DEFAULT '',
	confidence  NUMERIC(5,4) NOT NULL DEFAULT 0,
	detail      JSONB,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// RecordStatus upserts a job status row. Satisfies queue.StatusRecorder.
func (a *Archive) RecordStatus(ctx context.Context, jobID, userID, status string, detail map[string]interface{}) error {
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if status == "" {
		return fmt.Errorf("status is required")
	}

	record := JobRecord{JobID: jobID, UserID: userID, Status: status, Detail: detail}
	if detail != nil {
		if v, ok := detail["sourceText"].(string); ok {
			record.SourceText = v
		}
		if v, ok := detail["translation"].(string); ok {
			record.Translation = v
		}
		if v, ok := detail["provider"].(string); ok {
			record.ProviderID = v
		}
		if v, ok := detail["confidence"].(float64); ok {
			record.Confidence = clampConfidence(v)
		}
	}

	detailJSON, err := json.Marshal(record.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal detail: %w", err)
	}

	const query = `
INSERT INTO scan_jobs (job_id, user_id, status, source_text, translation, provider_id, confidence, detail, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (job_id) DO UPDATE SET
	status      = EXCLUDED.status,
	source_text = CASE WHEN EXCLUDED.source_text <> '' THEN EXCLUDED.source_text ELSE scan_jobs.source_text END,
	translation = CASE WHEN EXCLUDED.translation <> '' THEN EXCLUDED.translation ELSE scan_jobs.translation END,
	provider_id = CASE WHEN EXCLUDED.provider_id <> '' THEN EXCLUDED.provider_id ELSE scan_jobs.provider_id END,
	confidence  = EXCLUDED.confidence,
	detail      = EXCLUDED.detail,
	updated_at  = now()`

	if _, err := a.db.ExecContext(ctx, query,
		record.JobID, record.UserID, record.Status,
		record.SourceText, record.Translation, record.ProviderID,
		record.Confidence, detailJSON); err != nil {
		return fmt.Errorf("failed to record job status: %w", err)
	}
	return nil
}

// RecentTranslations returns the most recently completed translations.
func (a *Archive) RecentTranslations(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
SELECT job_id, user_id, status, source_text, translation, provider_id, confidence
FROM scan_jobs
WHERE status = 'completed' AND translation <> ''
ORDER BY updated_at DESC
LIMIT $1`

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query translations: %w", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var r JobRecord
		if err := rows.Scan(&r.JobID, &r.UserID, &r.Status, &r.SourceText, &r.Translation, &r.ProviderID, &r.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Ping verifies the database connection.
func (a *Archive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	return a.db.Close()
}

// clampConfidence bounds confidence to [0,1] and 4 decimal places so the
// NUMERIC(5,4) column never rejects a float artifact like 0.9632000000000001.
func clampConfidence(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return float64(int(confidence*10000+0.5)) / 10000
}
