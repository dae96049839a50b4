/**
 * Pass executor - runs OCR over a crop once per threshold until a pass
 * produces an acceptable value, optionally retrying with a fallback pass set
 */

package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/adverant/nexus/raidscan-worker/internal/errors"
	"github.com/adverant/nexus/raidscan-worker/internal/imaging"
	"github.com/adverant/nexus/raidscan-worker/internal/ocr"
)

// PassConfig describes one set of OCR passes over a crop. Invert applies to
// the crop before thresholding; thresholds are tried in order.
type PassConfig struct {
	Thresholds []float32
	Blur       bool
	Invert     bool
	Mode       ocr.Mode
	Accept     func(text string) (string, bool)
}

// Plan is a primary pass set and an optional fallback used only when the
// primary set produced nothing.
type Plan struct {
	Primary  PassConfig
	Fallback *PassConfig
}

// Outcome is the result of running a plan.
type Outcome struct {
	Value    string
	Found    bool
	Attempts []string
}

// accept validates recognized text. Without an Accept func any non-blank
// text is accepted.
func (c PassConfig) accept(text string) (string, bool) {
	if c.Accept == nil {
		v := strings.TrimSpace(text)
		return v, v != ""
	}
	return c.Accept(text)
}

// Matching accepts the first substring matching re (search, not full match).
func Matching(re *regexp.Regexp) func(string) (string, bool) {
	return func(text string) (string, bool) {
		return find(re, text)
	}
}

// Runner executes pass sets against a Recognizer. It holds no per-call
// state and is safe for concurrent use when the Recognizer is.
type Runner struct {
	recognizer ocr.Recognizer
}

// NewRunner creates a pass runner
func NewRunner(recognizer ocr.Recognizer) *Runner {
	return &Runner{recognizer: recognizer}
}

// Each runs every pass of cfg over crop, handing the recognized text to
// visit. It stops early when visit returns true. The context is checked
// between passes so a deadline interrupts a long pass sequence.
func (r *Runner) Each(ctx context.Context, field Field, crop *imaging.Image, cfg PassConfig, visit func(text string) bool) error {
	base := crop
	if cfg.Invert {
		base = crop.Invert()
		defer base.Close()
	}

	for _, t := range cfg.Thresholds {
		if err := ctx.Err(); err != nil {
			return err
		}

		img := base.Threshold(t)
		if cfg.Blur {
			blurred := img.Blur()
			img.Close()
			img = blurred
		}

		text, err := r.recognizer.Recognize(ctx, img, cfg.Mode)
		img.Close()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return errors.NewOCRFailedError(string(field), fmt.Errorf("threshold %v: %w", t, err))
		}
		if visit(text) {
			return nil
		}
	}
	return nil
}

// Run executes plan over crop and returns the first accepted value.
func (r *Runner) Run(ctx context.Context, field Field, crop *imaging.Image, plan Plan) (Outcome, error) {
	var out Outcome
	try := func(cfg PassConfig) error {
		return r.Each(ctx, field, crop, cfg, func(text string) bool {
			out.Attempts = append(out.Attempts, text)
			if v, ok := cfg.accept(text); ok {
				out.Value, out.Found = v, true
				return true
			}
			return false
		})
	}

	if err := try(plan.Primary); err != nil {
		return out, err
	}
	if !out.Found && plan.Fallback != nil {
		if err := try(*plan.Fallback); err != nil {
			return out, err
		}
	}
	return out, nil
}
