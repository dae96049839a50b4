/**
 * Scan Processor for RaidScan Worker
 *
 * Runs one scan job end to end:
 * - load the screenshot (payload buffer or URL download)
 * - pin the current reference catalog snapshot
 * - extract the record for the requested screenshot type
 * - persist the record and report found fields
 */

package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/raidscan-worker/internal/catalog"
	"github.com/adverant/nexus/raidscan-worker/internal/errors"
	"github.com/adverant/nexus/raidscan-worker/internal/extract"
	"github.com/adverant/nexus/raidscan-worker/internal/logging"
	"github.com/adverant/nexus/raidscan-worker/internal/storage"
)

// ScanProcessorInterface defines the interface for scan processing
type ScanProcessorInterface interface {
	ProcessScan(ctx context.Context, req *ScanRequest) (*ScanResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error
}

// RecordStore persists extraction records and job status
type RecordStore interface {
	StoreRecord(ctx context.Context, input *storage.RecordInput) (*storage.RecordOutput, error)
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Engine          *extract.Engine
	Catalog         catalog.Provider
	Store           RecordStore
	MaxImageSize    int64
	DownloadTimeout time.Duration
	DownloadRetries int
	Logger          *logging.Logger
}

// ScanRequest represents a scan job
type ScanRequest struct {
	JobID       string
	ScanType    string
	ImageURL    string
	ImageBuffer []byte
	Metadata    map[string]interface{}
}

// ScanResult represents the processing result
type ScanResult struct {
	RecordID         string                 `json:"recordId,omitempty"`
	ScanType         string                 `json:"scanType"`
	CatalogID        string                 `json:"catalogId,omitempty"`
	FoundFields      []string               `json:"foundFields"`
	Output           map[string]interface{} `json:"output"`
	ProcessingTimeMs int64                  `json:"processingTimeMs"`
}

// ScanProcessor handles scan jobs
type ScanProcessor struct {
	engine     *extract.Engine
	catalog    catalog.Provider
	store      RecordStore
	downloader *Downloader
	maxSize    int64
	logger     *logging.Logger
}

// NewScanProcessor creates a new scan processor
func NewScanProcessor(cfg *ProcessorConfig) (*ScanProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Engine == nil {
		return nil, fmt.Errorf("extraction engine is required")
	}

	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog provider is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("processor")
	}

	return &ScanProcessor{
		engine:     cfg.Engine,
		catalog:    cfg.Catalog,
		store:      cfg.Store,
		downloader: NewDownloader(cfg.DownloadTimeout, cfg.DownloadRetries, cfg.MaxImageSize, logger),
		maxSize:    cfg.MaxImageSize,
		logger:     logger,
	}, nil
}

// ProcessScan processes one screenshot. A valid image where nothing was
// recognized succeeds with no found fields.
func (p *ScanProcessor) ProcessScan(ctx context.Context, req *ScanRequest) (*ScanResult, error) {
	start := time.Now()

	if _, err := uuid.Parse(req.JobID); err != nil {
		return nil, errors.NewMalformedInputError(req.JobID, fmt.Errorf("invalid job ID %q: %w", req.JobID, err))
	}

	typ, err := extract.ParseScreenshotType(req.ScanType)
	if err != nil {
		return nil, errors.NewInvalidConfigError(err.Error()).WithJob(req.JobID)
	}

	data, err := p.loadImage(ctx, req)
	if err != nil {
		return nil, err
	}

	if p.maxSize > 0 && int64(len(data)) > p.maxSize {
		return nil, errors.NewMalformedInputError(req.JobID,
			fmt.Errorf("image size exceeds maximum: %d > %d bytes", len(data), p.maxSize))
	}
	if detectImageType(data) == "" {
		return nil, errors.NewMalformedInputError(req.JobID, fmt.Errorf("unsupported image format"))
	}

	// Pin one snapshot for the whole extraction; a concurrent refresh only
	// affects later jobs.
	snap, ok := p.catalog.Current()
	if !ok && needsCatalog(typ) {
		return nil, errors.NewCatalogUnavailableError(req.JobID)
	}

	record, err := p.engine.ExtractBytes(ctx, data, typ, snap)
	if err != nil {
		var perr *errors.ProcessingError
		if stderrors.As(err, &perr) {
			return nil, perr.WithJob(req.JobID)
		}
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	result := &ScanResult{
		ScanType:    string(typ),
		CatalogID:   record.CatalogID,
		FoundFields: foundFields(record),
		Output:      record.Output(),
	}

	if p.store != nil {
		stored, err := p.store.StoreRecord(ctx, &storage.RecordInput{JobID: req.JobID, Record: record})
		if err != nil {
			return nil, errors.NewStorageFailedError(req.JobID, err)
		}
		result.RecordID = stored.ID
	}

	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	p.logger.Info("Scan complete",
		"job", req.JobID,
		"type", string(typ),
		"found", len(result.FoundFields),
		"elapsed", time.Since(start),
	)
	for _, f := range record.Fields {
		if f.Attempted && !f.Found {
			p.logger.Debug("Field not found", "job", req.JobID, "field", string(f.Field), "attempts", len(f.Attempts))
		}
	}

	return result, nil
}

// UpdateJobStatus records a job status transition
func (p *ScanProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, metadata map[string]interface{}) error {
	if p.store == nil {
		return nil
	}

	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: metadata,
	}

	if metadata != nil {
		if scanType, ok := metadata["scanType"].(string); ok {
			update.ScanType = scanType
		}
		if processingTime, ok := metadata["processingTime"].(int64); ok {
			update.ProcessingTimeMs = processingTime
		}
		if recordID, ok := metadata["recordId"].(string); ok {
			update.RecordID = recordID
		}
		if found, ok := metadata["foundFields"].([]string); ok {
			update.FoundFields = found
		}
		if code, ok := metadata["error_code"].(string); ok {
			update.ErrorCode = code
		}
		if msg, ok := metadata["message"].(string); ok {
			update.ErrorMessage = msg
		}
		if errorMsg, ok := metadata["error"].(string); ok {
			if update.ErrorCode == "" {
				update.ErrorCode = "PROCESSING_ERROR"
			}
			update.ErrorMessage = errorMsg
		}
	}

	return p.store.UpdateJobStatus(ctx, update)
}

// loadImage loads the screenshot from the buffer or URL
func (p *ScanProcessor) loadImage(ctx context.Context, req *ScanRequest) ([]byte, error) {
	if len(req.ImageBuffer) > 0 {
		return req.ImageBuffer, nil
	}

	if req.ImageURL != "" {
		data, err := p.downloader.Download(ctx, req.JobID, req.ImageURL)
		if err != nil {
			return nil, errors.NewDownloadFailedError(req.JobID, req.ImageURL, err)
		}
		return data, nil
	}

	return nil, errors.NewMalformedInputError(req.JobID, fmt.Errorf("no image source provided (buffer or URL)"))
}

func needsCatalog(typ extract.ScreenshotType) bool {
	return typ == extract.ActiveRaid || typ == extract.BareBoss
}

func foundFields(rec *extract.Record) []string {
	found := []string{}
	for _, f := range rec.Fields {
		if f.Found {
			found = append(found, string(f.Field))
		}
	}
	return found
}
