package processor

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/adverant/nexus/raidscan-worker/internal/catalog"
	"github.com/adverant/nexus/raidscan-worker/internal/errors"
	"github.com/adverant/nexus/raidscan-worker/internal/extract"
	"github.com/adverant/nexus/raidscan-worker/internal/imaging"
	"github.com/adverant/nexus/raidscan-worker/internal/logging"
	"github.com/adverant/nexus/raidscan-worker/internal/ocr"
	"github.com/adverant/nexus/raidscan-worker/internal/ocr/ocrtest"
	"github.com/adverant/nexus/raidscan-worker/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	records  []*storage.RecordInput
	updates  []*storage.JobUpdate
	storeErr error
}

func (s *fakeStore) StoreRecord(ctx context.Context, input *storage.RecordInput) (*storage.RecordOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	s.records = append(s.records, input)
	return &storage.RecordOutput{ID: uuid.New().String(), JobID: input.JobID}, nil
}

func (s *fakeStore) UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	return nil
}

type emptyCatalog struct{}

func (emptyCatalog) Current() (*catalog.Snapshot, bool) { return nil, false }

func pngScreenshot(t *testing.T, rows, cols int) []byte {
	t.Helper()
	img := imaging.FromMat(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(200, 200, 200, 0), rows, cols, gocv.MatTypeCV8UC3))
	defer img.Close()

	data, err := img.EncodePNG()
	require.NoError(t, err)
	return data
}

func newTestProcessor(t *testing.T, rec ocr.Recognizer, provider catalog.Provider, store RecordStore) *ScanProcessor {
	t.Helper()
	p, err := NewScanProcessor(&ProcessorConfig{
		Engine:          extract.NewEngine(rec, logging.Discard()),
		Catalog:         provider,
		Store:           store,
		MaxImageSize:    10 << 20,
		DownloadTimeout: 5 * time.Second,
		DownloadRetries: 2,
		Logger:          logging.Discard(),
	})
	require.NoError(t, err)
	p.downloader.initialBackoff = time.Millisecond
	return p
}

func TestProcessScanBareBoss(t *testing.T) {
	store := &fakeStore{}
	rec := &ocrtest.Scripted{Outputs: []string{"CP 38490"}}
	p := newTestProcessor(t, rec, catalog.NewStore(catalog.Builtin()), store)

	jobID := uuid.New().String()
	result, err := p.ProcessScan(context.Background(), &ScanRequest{
		JobID:       jobID,
		ScanType:    "boss",
		ImageBuffer: pngScreenshot(t, 800, 450),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"boss"}, result.FoundFields)
	assert.Equal(t, "Dragonite", result.Output["boss"])
	assert.NotEmpty(t, result.RecordID)
	require.Len(t, store.records, 1)
	assert.Equal(t, jobID, store.records[0].JobID)
}

func TestProcessScanNothingRecognizedIsNotAnError(t *testing.T) {
	p := newTestProcessor(t, &ocrtest.Scripted{}, catalog.NewStore(catalog.Builtin()), &fakeStore{})

	result, err := p.ProcessScan(context.Background(), &ScanRequest{
		JobID:       uuid.New().String(),
		ScanType:    "raid",
		ImageBuffer: pngScreenshot(t, 800, 450),
	})
	require.NoError(t, err)
	assert.Empty(t, result.FoundFields)
	assert.Equal(t, []string{}, result.Output["names"])
}

func TestProcessScanErrors(t *testing.T) {
	png := pngScreenshot(t, 800, 450)

	tests := []struct {
		name     string
		provider catalog.Provider
		req      *ScanRequest
		code     errors.ErrorCode
	}{
		{
			name:     "unknown scan type",
			provider: catalog.NewStore(catalog.Builtin()),
			req:      &ScanRequest{ScanType: "pokedex", ImageBuffer: png},
			code:     errors.ErrorInvalidConfig,
		},
		{
			name:     "not an image",
			provider: catalog.NewStore(catalog.Builtin()),
			req:      &ScanRequest{ScanType: "raid", ImageBuffer: []byte("%PDF-1.4 definitely not a screenshot")},
			code:     errors.ErrorMalformedInput,
		},
		{
			name:     "corrupt png",
			provider: catalog.NewStore(catalog.Builtin()),
			req:      &ScanRequest{ScanType: "raid", ImageBuffer: png[:64]},
			code:     errors.ErrorMalformedInput,
		},
		{
			name:     "no source",
			provider: catalog.NewStore(catalog.Builtin()),
			req:      &ScanRequest{ScanType: "raid"},
			code:     errors.ErrorMalformedInput,
		},
		{
			name:     "no catalog for raid",
			provider: emptyCatalog{},
			req:      &ScanRequest{ScanType: "raid", ImageBuffer: png},
			code:     errors.ErrorCatalogUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcessor(t, &ocrtest.Scripted{}, tt.provider, &fakeStore{})
			tt.req.JobID = uuid.New().String()

			_, err := p.ProcessScan(context.Background(), tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))

			var perr *errors.ProcessingError
			require.True(t, stderrors.As(err, &perr))
			assert.Equal(t, tt.req.JobID, perr.JobID)
		})
	}
}

func TestProcessScanRejectsInvalidJobID(t *testing.T) {
	store := &fakeStore{}
	rec := &ocrtest.Scripted{}
	p := newTestProcessor(t, rec, catalog.NewStore(catalog.Builtin()), store)

	_, err := p.ProcessScan(context.Background(), &ScanRequest{
		JobID:       "job-42",
		ScanType:    "raid",
		ImageBuffer: pngScreenshot(t, 800, 450),
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrorMalformedInput))
	assert.Zero(t, rec.Calls(), "no recognition for a job that can never be stored")
	assert.Empty(t, store.records)
}

func TestProcessScanUnknownTypeSkipsDownload(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	p := newTestProcessor(t, &ocrtest.Scripted{}, catalog.NewStore(catalog.Builtin()), &fakeStore{})
	_, err := p.ProcessScan(context.Background(), &ScanRequest{
		JobID:    uuid.New().String(),
		ScanType: "raidx",
		ImageURL: srv.URL,
	})
	assert.True(t, errors.IsCode(err, errors.ErrorInvalidConfig))
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestProcessScanProfileWithoutCatalog(t *testing.T) {
	p := newTestProcessor(t, &ocrtest.Scripted{}, emptyCatalog{}, &fakeStore{})

	_, err := p.ProcessScan(context.Background(), &ScanRequest{
		JobID:       uuid.New().String(),
		ScanType:    "profile",
		ImageBuffer: pngScreenshot(t, 800, 450),
	})
	assert.NoError(t, err)
}

func TestProcessScanStorageFailure(t *testing.T) {
	store := &fakeStore{storeErr: stderrors.New("connection refused")}
	p := newTestProcessor(t, &ocrtest.Scripted{}, catalog.NewStore(catalog.Builtin()), store)

	_, err := p.ProcessScan(context.Background(), &ScanRequest{
		JobID:       uuid.New().String(),
		ScanType:    "expass",
		ImageBuffer: pngScreenshot(t, 800, 450),
	})
	assert.True(t, errors.IsCode(err, errors.ErrorStorageFailed))
}

func TestProcessScanDownloadsWithRetry(t *testing.T) {
	png := pngScreenshot(t, 800, 450)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	defer srv.Close()

	p := newTestProcessor(t, &ocrtest.Scripted{}, catalog.NewStore(catalog.Builtin()), &fakeStore{})
	_, err := p.ProcessScan(context.Background(), &ScanRequest{
		JobID:    uuid.New().String(),
		ScanType: "expass",
		ImageURL: srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestDownloadDoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestProcessor(t, &ocrtest.Scripted{}, catalog.NewStore(catalog.Builtin()), &fakeStore{})
	_, err := p.ProcessScan(context.Background(), &ScanRequest{
		JobID:    uuid.New().String(),
		ScanType: "raid",
		ImageURL: srv.URL,
	})
	assert.True(t, errors.IsCode(err, errors.ErrorDownloadFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDownloadRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer srv.Close()

	d := NewDownloader(time.Second, 3, 1024, nil)
	d.initialBackoff = time.Millisecond
	_, err := d.Download(context.Background(), "job", srv.URL)
	assert.Error(t, err)
}

func TestUpdateJobStatusMapsMetadata(t *testing.T) {
	store := &fakeStore{}
	p := newTestProcessor(t, &ocrtest.Scripted{}, catalog.NewStore(catalog.Builtin()), store)

	timeout := errors.NewProcessingTimeoutError("job-1", time.Minute, context.DeadlineExceeded)
	require.NoError(t, p.UpdateJobStatus(context.Background(), "job-1", storage.JobStatusFailed, timeout.ToMap()))
	require.NoError(t, p.UpdateJobStatus(context.Background(), "job-2", storage.JobStatusCompleted, map[string]interface{}{
		"scanType":       "raid",
		"processingTime": int64(1200),
		"foundFields":    []string{"names"},
	}))

	require.Len(t, store.updates, 2)
	assert.Equal(t, "PROCESSING_TIMEOUT", store.updates[0].ErrorCode)
	assert.Equal(t, "raid", store.updates[1].ScanType)
	assert.Equal(t, int64(1200), store.updates[1].ProcessingTimeMs)
	assert.Equal(t, []string{"names"}, store.updates[1].FoundFields)
}

func TestDetectImageType(t *testing.T) {
	assert.Equal(t, "image/png", detectImageType(pngScreenshot(t, 10, 10)))
	assert.Equal(t, "image/jpeg", detectImageType([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.Equal(t, "", detectImageType([]byte("%PDF-1.7")))
	assert.Equal(t, "", detectImageType(nil))
}
