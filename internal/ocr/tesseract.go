/**
 * Tesseract OCR - text recognizer for screenshot crops
 *
 * One gosseract client per call: clients are not safe for concurrent use and
 * every pass changes segmentation mode or whitelist anyway.
 */

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/adverant/nexus/raidscan-worker/internal/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Page segmentation strategies used by the extractors.
const (
	PSMSingleColumn = gosseract.PSM_SINGLE_COLUMN // --psm 4
	PSMSingleBlock  = gosseract.PSM_SINGLE_BLOCK  // --psm 6
	PSMSingleLine   = gosseract.PSM_SINGLE_LINE   // --psm 7
)

// Mode bundles a page segmentation strategy and an optional whitelist.
type Mode struct {
	PSM       gosseract.PageSegMode
	Whitelist string
}

func (m Mode) String() string {
	if m.Whitelist == "" {
		return fmt.Sprintf("psm=%d", m.PSM)
	}
	return fmt.Sprintf("psm=%d whitelist=%q", m.PSM, m.Whitelist)
}

// Recognizer turns an image into text. Empty or unreadable crops yield ""
// with a nil error; an error means the engine itself failed.
type Recognizer interface {
	Recognize(ctx context.Context, img *imaging.Image, mode Mode) (string, error)
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Language       string
	TessdataPrefix string
}

// Tesseract recognizes text with libtesseract
type Tesseract struct {
	language       string
	tessdataPrefix string
}

// NewTesseract creates a new Tesseract recognizer
func NewTesseract(cfg *TesseractConfig) (*Tesseract, error) {
	if cfg == nil {
		cfg = &TesseractConfig{}
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}

	return &Tesseract{
		language:       cfg.Language,
		tessdataPrefix: cfg.TessdataPrefix,
	}, nil
}

// Version reports the linked libtesseract version.
func (t *Tesseract) Version() string {
	return gosseract.Version()
}

// Recognize performs OCR on img using mode
func (t *Tesseract) Recognize(ctx context.Context, img *imaging.Image, mode Mode) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if img == nil || img.Empty() {
		return "", nil
	}

	data, err := img.EncodePNG()
	if err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.tessdataPrefix); err != nil {
			return "", fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(mode.PSM); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if mode.Whitelist != "" {
		if err := client.SetWhitelist(mode.Whitelist); err != nil {
			return "", fmt.Errorf("failed to set whitelist: %w", err)
		}
	}

	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		// tesseract reports blank pages as an error on some builds
		if strings.Contains(strings.ToLower(err.Error()), "empty page") {
			return "", nil
		}
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	return text, nil
}
