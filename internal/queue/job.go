package queue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/adverant/nexus/raidscan-worker/internal/errors"
	"github.com/adverant/nexus/raidscan-worker/internal/logging"
	"github.com/adverant/nexus/raidscan-worker/internal/processor"
	"github.com/adverant/nexus/raidscan-worker/internal/storage"
)

// JobPayload is the scan job submitted by the API
type JobPayload struct {
	JobID       string                 `json:"jobId"`
	ScanType    string                 `json:"scanType"`
	ImageURL    string                 `json:"imageUrl,omitempty"`
	ImageBuffer []byte                 `json:"-"` // set by UnmarshalJSON
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts imageBuffer either as a base64 string or as a
// Node.js Buffer object ({"type":"Buffer","data":[...]}).
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	type Alias JobPayload
	aux := &struct {
		ImageBuffer interface{} `json:"imageBuffer,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	if aux.ImageBuffer == nil {
		return nil
	}

	switch v := aux.ImageBuffer.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return fmt.Errorf("failed to decode base64 imageBuffer: %w", err)
		}
		p.ImageBuffer = decoded

	case map[string]interface{}:
		bufferType, _ := v["type"].(string)
		if bufferType != "Buffer" {
			return fmt.Errorf("invalid Buffer object format (missing or incorrect 'type' field)")
		}
		dataArray, ok := v["data"].([]interface{})
		if !ok {
			return fmt.Errorf("Buffer object missing 'data' array")
		}
		p.ImageBuffer = make([]byte, len(dataArray))
		for i, val := range dataArray {
			byteVal, ok := val.(float64)
			if !ok || byteVal < 0 || byteVal > 255 {
				return fmt.Errorf("invalid byte value in Buffer data array at index %d", i)
			}
			p.ImageBuffer[i] = byte(byteVal)
		}

	default:
		return fmt.Errorf("imageBuffer must be either base64 string or Buffer object, got %T", v)
	}

	return nil
}

// MarshalJSON encodes imageBuffer as base64.
func (p JobPayload) MarshalJSON() ([]byte, error) {
	type Alias JobPayload
	aux := struct {
		ImageBuffer string `json:"imageBuffer,omitempty"`
		Alias
	}{
		Alias: Alias(p),
	}
	if len(p.ImageBuffer) > 0 {
		aux.ImageBuffer = base64.StdEncoding.EncodeToString(p.ImageBuffer)
	}
	return json.Marshal(aux)
}

// StatusSink receives job lifecycle transitions besides the database.
type StatusSink interface {
	JobStatusChanged(ctx context.Context, jobID string, status string, result interface{})
}

// jobRunner runs one payload through the processor with a deadline and
// records the status lifecycle processing -> completed | failed.
type jobRunner struct {
	processor processor.ScanProcessorInterface
	timeout   time.Duration
	sink      StatusSink
	logger    *logging.Logger
}

func (r *jobRunner) run(ctx context.Context, payload *JobPayload) (*processor.ScanResult, error) {
	startTime := time.Now()
	log := r.logger.With("job", payload.JobID, "type", payload.ScanType)

	if err := r.processor.UpdateJobStatus(ctx, payload.JobID, storage.JobStatusProcessing, map[string]interface{}{
		"scanType": payload.ScanType,
	}); err != nil {
		log.Warn("Failed to update status to processing", "error", err)
	}
	r.notify(ctx, payload.JobID, storage.JobStatusProcessing, nil)

	timeout := r.timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := r.processor.ProcessScan(processCtx, &processor.ScanRequest{
		JobID:       payload.JobID,
		ScanType:    payload.ScanType,
		ImageURL:    payload.ImageURL,
		ImageBuffer: payload.ImageBuffer,
		Metadata:    payload.Metadata,
	})

	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded && !errors.IsCode(err, errors.ErrorProcessingTimeout) {
			err = errors.NewProcessingTimeoutError(payload.JobID, timeout, err)
		}

		failure := failureMap(err)
		failure["processingTime"] = duration.Milliseconds()
		failure["scanType"] = payload.ScanType

		log.Error("Scan failed", "elapsed", duration, "code", string(errors.CodeOf(err)), "error", err)
		if updateErr := r.processor.UpdateJobStatus(ctx, payload.JobID, storage.JobStatusFailed, failure); updateErr != nil {
			log.Warn("Failed to update status to failed", "error", updateErr)
		}
		r.notify(ctx, payload.JobID, storage.JobStatusFailed, failure)
		return nil, err
	}

	if err := r.processor.UpdateJobStatus(ctx, payload.JobID, storage.JobStatusCompleted, map[string]interface{}{
		"scanType":       result.ScanType,
		"processingTime": duration.Milliseconds(),
		"recordId":       result.RecordID,
		"foundFields":    result.FoundFields,
	}); err != nil {
		log.Warn("Failed to update status to completed", "error", err)
	}
	r.notify(ctx, payload.JobID, storage.JobStatusCompleted, result)

	log.Info("Scan job completed", "elapsed", duration, "found", len(result.FoundFields))
	return result, nil
}

func (r *jobRunner) notify(ctx context.Context, jobID, status string, result interface{}) {
	if r.sink != nil {
		r.sink.JobStatusChanged(ctx, jobID, status, result)
	}
}

func failureMap(err error) map[string]interface{} {
	var perr *errors.ProcessingError
	if stderrors.As(err, &perr) {
		m := perr.ToMap()
		m["error"] = perr.Error()
		return m
	}
	return map[string]interface{}{"error": err.Error()}
}

// retryable reports whether running the job again could succeed.
func retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrorMalformedInput, errors.ErrorInvalidConfig:
		return false
	}
	return true
}
