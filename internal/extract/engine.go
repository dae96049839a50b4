/**
 * Extraction engine - prepares a screenshot and dispatches it to the
 * orchestrator for its screenshot type
 */

package extract

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/adverant/nexus/raidscan-worker/internal/catalog"
	"github.com/adverant/nexus/raidscan-worker/internal/errors"
	"github.com/adverant/nexus/raidscan-worker/internal/imaging"
	"github.com/adverant/nexus/raidscan-worker/internal/logging"
	"github.com/adverant/nexus/raidscan-worker/internal/ocr"
)

// Screenshots smaller than this are upscaled 2x before cropping.
const (
	MinHeight = 400
	MinWidth  = 200
)

// Engine extracts records from screenshots. It keeps no state between
// calls and may be shared by concurrent workers.
type Engine struct {
	runner *Runner
	logger *logging.Logger
}

// NewEngine creates an extraction engine over recognizer
func NewEngine(recognizer ocr.Recognizer, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		runner: NewRunner(recognizer),
		logger: logger,
	}
}

// ExtractBytes decodes an encoded screenshot and extracts it.
func (e *Engine) ExtractBytes(ctx context.Context, data []byte, typ ScreenshotType, snap *catalog.Snapshot) (*Record, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, errors.NewMalformedInputError("", err)
	}
	defer img.Close()
	return e.Extract(ctx, img, typ, snap)
}

// Extract reads every field of typ from img. Boss-bearing types need a
// catalog snapshot. Fields that cannot be read are absent in the record;
// an error means the record could not be produced at all.
func (e *Engine) Extract(ctx context.Context, img *imaging.Image, typ ScreenshotType, snap *catalog.Snapshot) (*Record, error) {
	start := time.Now()

	if !typ.valid() {
		return nil, errors.NewInvalidConfigError(fmt.Sprintf("unknown scan type %q", typ))
	}
	if img == nil || img.Empty() {
		return nil, errors.NewMalformedInputError("", fmt.Errorf("empty image"))
	}
	if (typ == ActiveRaid || typ == BareBoss) && snap == nil {
		return nil, errors.NewCatalogUnavailableError("")
	}

	prepared := prepare(img, typ)
	defer prepared.Close()

	s := &screen{img: prepared, runner: e.runner, snap: snap, region: regionBoss}

	var (
		rec *Record
		err error
	)
	switch typ {
	case ActiveRaid:
		rec, err = scanRaid(ctx, s)
	case PlayerProfile:
		rec, err = scanProfile(ctx, s)
	case ExpiringBanner:
		rec, err = scanBanner(ctx, s)
	case BareBoss:
		s.region = regionWhole
		rec, err = scanBoss(ctx, s)
	default:
		return nil, errors.NewInvalidConfigError(fmt.Sprintf("unknown scan type %q", typ))
	}

	elapsed := time.Since(start)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			return nil, errors.NewProcessingTimeoutError("", elapsed, err)
		}
		return nil, err
	}

	rec.Elapsed = elapsed
	if snap != nil {
		rec.CatalogID = snap.ID()
	}

	e.logger.Debug("Screenshot extracted",
		"type", string(typ),
		"found", rec.FoundCount(),
		"trace", rec.Trace,
		"elapsed", elapsed,
	)
	return rec, nil
}

// prepare converts img to the working colour space for typ and upscales
// small screenshots. Profiles stay in colour for the team pixel.
func prepare(img *imaging.Image, typ ScreenshotType) *imaging.Image {
	var base *imaging.Image
	if typ == PlayerProfile {
		base = img.Clone()
	} else {
		base = img.Gray()
	}
	if base.Height() < MinHeight || base.Width() < MinWidth {
		scaled := base.Resize(base.Width()*2, base.Height()*2)
		base.Close()
		return scaled
	}
	return base
}
