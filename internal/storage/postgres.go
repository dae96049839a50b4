/**
 * PostgreSQL Client for RaidScan Worker
 *
 * Handles job persistence and loading of the raid boss reference catalog.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/adverant/nexus/raidscan-worker/internal/catalog"
)

// Job statuses
const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	ScanType         string
	Status           string
	ProcessingTimeMs int64
	FoundFields      []string
	RecordID         string
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS raidscan;

	CREATE TABLE IF NOT EXISTS raidscan.scan_jobs (
		id                 UUID PRIMARY KEY,
		scan_type          TEXT NOT NULL,
		status             TEXT NOT NULL,
		processing_time_ms BIGINT,
		found_fields       TEXT[] NOT NULL DEFAULT '{}',
		record_id          UUID,
		error_code         TEXT,
		error_message      TEXT,
		metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS raidscan.extraction_records (
		id          UUID PRIMARY KEY,
		job_id      UUID NOT NULL,
		scan_type   TEXT NOT NULL,
		catalog_id  TEXT,
		fields      JSONB NOT NULL,
		output      JSONB NOT NULL,
		boss_scans  JSONB NOT NULL DEFAULT '[]'::jsonb,
		trace       TEXT[] NOT NULL DEFAULT '{}',
		elapsed_ms  BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS extraction_records_job_id_idx ON raidscan.extraction_records (job_id);

	CREATE TABLE IF NOT EXISTS raidscan.raid_bosses (
		name     TEXT PRIMARY KEY,
		tier     INT NOT NULL DEFAULT 0,
		attack   INT NOT NULL DEFAULT 0,
		defense  INT NOT NULL DEFAULT 0,
		cp       INT NOT NULL DEFAULT 0,
		active   BOOLEAN NOT NULL DEFAULT TRUE,
		position SERIAL
	);
`

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the raidscan schema and tables when missing
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpdateJobStatus upserts the job row so the worker can record a job the
// API has not created yet.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	found := update.FoundFields
	if found == nil {
		found = []string{}
	}

	query := `
		INSERT INTO raidscan.scan_jobs (
			id, scan_type, status, processing_time_ms, found_fields,
			record_id, error_code, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($2, ''), 'unknown'), $3, NULLIF($4, 0), $5,
			CASE WHEN $6 = '' THEN NULL ELSE $6::uuid END,
			NULLIF($7, ''), NULLIF($8, ''),
			COALESCE($9::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			scan_type = CASE
				WHEN EXCLUDED.scan_type = 'unknown' THEN raidscan.scan_jobs.scan_type
				ELSE EXCLUDED.scan_type
			END,
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, raidscan.scan_jobs.processing_time_ms),
			found_fields = EXCLUDED.found_fields,
			record_id = COALESCE(EXCLUDED.record_id, raidscan.scan_jobs.record_id),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			metadata = COALESCE(EXCLUDED.metadata, raidscan.scan_jobs.metadata),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1 - job_id
		update.ScanType,         // $2 - scan_type
		update.Status,           // $3 - status
		update.ProcessingTimeMs, // $4 - processing_time_ms
		pq.Array(found),         // $5 - found_fields
		update.RecordID,         // $6 - record_id
		update.ErrorCode,        // $7 - error_code
		update.ErrorMessage,     // $8 - error_message
		metadataJSON,            // $9 - metadata
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// LoadBossRows loads the active raid bosses in catalog order. It
// satisfies catalog.Source.
func (p *PostgresClient) LoadBossRows(ctx context.Context) ([]catalog.BossRow, error) {
	query := `
		SELECT name, tier, attack, defense, cp
		FROM raidscan.raid_bosses
		WHERE active
		ORDER BY position
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query raid bosses: %w", err)
	}
	defer rows.Close()

	var bosses []catalog.BossRow
	for rows.Next() {
		var row catalog.BossRow
		if err := rows.Scan(&row.Name, &row.Tier, &row.Attack, &row.Defense, &row.CP); err != nil {
			return nil, fmt.Errorf("failed to scan raid boss: %w", err)
		}
		bosses = append(bosses, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read raid bosses: %w", err)
	}

	return bosses, nil
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id,
			scan_type,
			status,
			processing_time_ms,
			found_fields,
			record_id,
			error_code,
			error_message,
			metadata,
			created_at,
			updated_at
		FROM raidscan.scan_jobs
		WHERE id = $1::uuid
	`

	var (
		id, scanType, status    string
		processingTimeMs        sql.NullInt64
		foundFields             pq.StringArray
		recordID                sql.NullString
		errorCode, errorMessage sql.NullString
		metadataJSON            []byte
		createdAt, updatedAt    time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &scanType, &status, &processingTimeMs, &foundFields,
		&recordID, &errorCode, &errorMessage,
		&metadataJSON, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	// Parse metadata
	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":          id,
		"scanType":    scanType,
		"status":      status,
		"foundFields": []string(foundFields),
		"createdAt":   createdAt,
		"updatedAt":   updatedAt,
		"metadata":    metadata,
	}

	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if recordID.Valid {
		result["recordId"] = recordID.String
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
