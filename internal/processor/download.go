package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adverant/nexus/raidscan-worker/internal/logging"
)

// Downloader fetches screenshots by URL with exponential backoff.
type Downloader struct {
	client         *http.Client
	maxRetries     int
	maxSize        int64
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *logging.Logger
}

// NewDownloader creates a downloader. maxRetries counts attempts after the
// first one.
func NewDownloader(timeout time.Duration, maxRetries int, maxSize int64, logger *logging.Logger) *Downloader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Downloader{
		client:         &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		maxSize:        maxSize,
		initialBackoff: time.Second,
		maxBackoff:     16 * time.Second,
		logger:         logger,
	}
}

// Download fetches url. Client errors (4xx) and oversized bodies fail
// immediately; everything else is retried.
func (d *Downloader) Download(ctx context.Context, jobID string, url string) ([]byte, error) {
	attempts := d.maxRetries + 1
	backoff := d.initialBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		data, retry, err := d.fetch(ctx, url)
		if err == nil {
			d.logger.Debug("Screenshot downloaded", "job", jobID, "attempt", attempt, "bytes", len(data))
			return data, nil
		}
		lastErr = err
		d.logger.Warn("Download attempt failed", "job", jobID, "attempt", attempt, "of", attempts, "error", err)

		if !retry || attempt == attempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
		}
		backoff *= 2
		if backoff > d.maxBackoff {
			backoff = d.maxBackoff
		}
	}

	return nil, fmt.Errorf("failed to download after %d attempts: %w", attempts, lastErr)
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retry, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if d.maxSize > 0 && resp.ContentLength > d.maxSize {
		return nil, false, fmt.Errorf("image size exceeds maximum: %d > %d bytes", resp.ContentLength, d.maxSize)
	}

	limit := d.maxSize
	if limit <= 0 {
		limit = 100 * 1024 * 1024
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}
	if n > limit {
		return nil, false, fmt.Errorf("image size exceeds maximum of %d bytes", limit)
	}

	return buf.Bytes(), false, nil
}
