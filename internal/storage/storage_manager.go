/**
 * Storage Manager for RaidScan Worker
 *
 * Persists extraction records as JSONB next to the job row they belong to.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/adverant/nexus/raidscan-worker/internal/extract"
)

// StorageManager coordinates job and record persistence
type StorageManager struct {
	postgres *PostgresClient
}

// RecordInput is an extraction record ready to be stored
type RecordInput struct {
	JobID  string
	Record *extract.Record
}

// RecordOutput is a stored extraction record
type RecordOutput struct {
	ID        string
	JobID     string
	ScanType  string
	CatalogID string
	Output    map[string]interface{}
	Fields    []extract.FieldResult
	BossScans [][]string
	Trace     []string
	ElapsedMs int64
	CreatedAt time.Time
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// NewStorageManager creates a new storage manager
func NewStorageManager(postgresURL string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	return &StorageManager{postgres: postgres}, nil
}

// Postgres exposes the underlying client (catalog source, schema setup).
func (sm *StorageManager) Postgres() *PostgresClient {
	return sm.postgres
}

// StoreRecord stores an extraction record and returns its id
func (sm *StorageManager) StoreRecord(ctx context.Context, input *RecordInput) (*RecordOutput, error) {
	if input == nil || input.Record == nil {
		return nil, fmt.Errorf("record is required")
	}

	if _, err := uuid.Parse(input.JobID); err != nil {
		return nil, fmt.Errorf("invalid job ID %q: %w", input.JobID, err)
	}

	rec := input.Record
	output := rec.Output()

	fieldsJSON, err := marshalJSONB(rec.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	outputJSON, err := marshalJSONB(output)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}
	scans := rec.BossScans
	if scans == nil {
		scans = [][]string{}
	}
	scansJSON, err := marshalJSONB(scans)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal boss scans: %w", err)
	}

	recordID := uuid.New().String()
	elapsedMs := rec.Elapsed.Milliseconds()

	query := `
		INSERT INTO raidscan.extraction_records (
			id,
			job_id,
			scan_type,
			catalog_id,
			fields,
			output,
			boss_scans,
			trace,
			elapsed_ms,
			created_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`

	var createdAt time.Time
	err = sm.postgres.db.QueryRowContext(
		ctx,
		query,
		recordID,
		input.JobID,
		string(rec.Type),
		rec.CatalogID,
		fieldsJSON,
		outputJSON,
		scansJSON,
		pq.Array(rec.Trace),
		elapsedMs,
	).Scan(&createdAt)

	if err != nil {
		return nil, fmt.Errorf("failed to store extraction record: %w", err)
	}

	return &RecordOutput{
		ID:        recordID,
		JobID:     input.JobID,
		ScanType:  string(rec.Type),
		CatalogID: rec.CatalogID,
		Output:    output,
		Fields:    rec.Fields,
		BossScans: scans,
		Trace:     rec.Trace,
		ElapsedMs: elapsedMs,
		CreatedAt: createdAt,
	}, nil
}

// GetRecordByJob retrieves the latest extraction record of a job
func (sm *StorageManager) GetRecordByJob(ctx context.Context, jobID string) (*RecordOutput, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT id, job_id, scan_type, catalog_id, fields, output, boss_scans, trace, elapsed_ms, created_at
		FROM raidscan.extraction_records
		WHERE job_id = $1::uuid
		ORDER BY created_at DESC
		LIMIT 1
	`

	var (
		out                             RecordOutput
		catalogID                       sql.NullString
		fieldsJSON, outputJSON, scansJS []byte
		trace                           pq.StringArray
	)

	err := sm.postgres.db.QueryRowContext(ctx, query, jobID).Scan(
		&out.ID, &out.JobID, &out.ScanType, &catalogID,
		&fieldsJSON, &outputJSON, &scansJS, &trace, &out.ElapsedMs, &out.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("extraction record not found for job: %s", jobID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get extraction record: %w", err)
	}

	out.CatalogID = catalogID.String
	out.Trace = []string(trace)
	if err := json.Unmarshal(fieldsJSON, &out.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if err := json.Unmarshal(outputJSON, &out.Output); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output: %w", err)
	}
	if err := json.Unmarshal(scansJS, &out.BossScans); err != nil {
		return nil, fmt.Errorf("failed to unmarshal boss scans: %w", err)
	}

	return &out, nil
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// GetStats returns connection pool statistics
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.postgres.GetStats()

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
	}, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	if sm.postgres != nil {
		if err := sm.postgres.Close(); err != nil {
			return fmt.Errorf("failed to close PostgreSQL: %w", err)
		}
	}
	return nil
}

func marshalJSONB(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return sanitizeJSONForPostgres(data), nil
}

// sanitizeJSONForPostgres strips escape sequences JSONB rejects. Raw OCR
// text occasionally carries NUL and other control characters.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
