/**
 * Imaging - decode and transform provider backed by OpenCV
 *
 * Every transform returns a new Image; callers own (and must Close) what
 * they receive. No transform mutates its receiver.
 */

package imaging

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Image wraps a decoded raster (BGR or single channel gray).
type Image struct {
	mat gocv.Mat
}

// Decode decodes encoded image bytes (PNG, JPEG, ...) into a BGR image.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("data is not a supported image format")
	}
	return &Image{mat: mat}, nil
}

// FromMat takes ownership of mat.
func FromMat(mat gocv.Mat) *Image {
	return &Image{mat: mat}
}

func empty() *Image {
	return &Image{mat: gocv.NewMat()}
}

// Mat returns the underlying matrix. The Image keeps ownership.
func (img *Image) Mat() gocv.Mat {
	return img.mat
}

// Close releases the native memory.
func (img *Image) Close() error {
	if img == nil {
		return nil
	}
	return img.mat.Close()
}

func (img *Image) Width() int    { return img.mat.Cols() }
func (img *Image) Height() int   { return img.mat.Rows() }
func (img *Image) Channels() int { return img.mat.Channels() }

// Empty reports whether the image holds no pixels.
func (img *Image) Empty() bool {
	return img.mat.Empty() || img.mat.Rows() == 0 || img.mat.Cols() == 0
}

// Clone returns an independent copy.
func (img *Image) Clone() *Image {
	if img.Empty() {
		return empty()
	}
	return &Image{mat: img.mat.Clone()}
}

// Gray converts to a single channel. Gray input is cloned.
func (img *Image) Gray() *Image {
	if img.Empty() {
		return empty()
	}
	if img.mat.Channels() == 1 {
		return img.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(img.mat, &dst, gocv.ColorBGRToGray)
	return &Image{mat: dst}
}

// Invert flips every channel value (255 - v).
func (img *Image) Invert() *Image {
	if img.Empty() {
		return empty()
	}
	dst := gocv.NewMat()
	gocv.BitwiseNot(img.mat, &dst)
	return &Image{mat: dst}
}

// Threshold binarizes at t: values above t become 255, the rest 0.
func (img *Image) Threshold(t float32) *Image {
	if img.Empty() {
		return empty()
	}
	dst := gocv.NewMat()
	gocv.Threshold(img.mat, &dst, t, 255, gocv.ThresholdBinary)
	return &Image{mat: dst}
}

// Blur applies a 5x5 Gaussian blur.
func (img *Image) Blur() *Image {
	if img.Empty() {
		return empty()
	}
	dst := gocv.NewMat()
	gocv.GaussianBlur(img.mat, &dst, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	return &Image{mat: dst}
}

// Resize scales to exactly width x height using area interpolation.
func (img *Image) Resize(width, height int) *Image {
	if img.Empty() || width <= 0 || height <= 0 {
		return empty()
	}
	dst := gocv.NewMat()
	gocv.Resize(img.mat, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationArea)
	return &Image{mat: dst}
}

// Crop copies the pixels inside r. Rectangles are clipped to the image;
// a rectangle with no area yields an empty Image.
func (img *Image) Crop(r image.Rectangle) *Image {
	if img.Empty() {
		return empty()
	}
	r = r.Canon().Intersect(image.Rect(0, 0, img.Width(), img.Height()))
	if r.Empty() {
		return empty()
	}
	view := img.mat.Region(r)
	defer view.Close()
	return &Image{mat: view.Clone()}
}

// PixelBGR reads the three channel intensities at (x, y).
func (img *Image) PixelBGR(x, y int) (b, g, r uint8, ok bool) {
	if img.Empty() || x < 0 || y < 0 || x >= img.Width() || y >= img.Height() {
		return 0, 0, 0, false
	}
	if img.mat.Channels() < 3 {
		v := img.mat.GetUCharAt(y, x)
		return v, v, v, true
	}
	px := img.mat.GetVecbAt(y, x)
	return px[0], px[1], px[2], true
}

// EncodePNG serialises the image for the text recognizer.
func (img *Image) EncodePNG() ([]byte, error) {
	if img.Empty() {
		return nil, nil
	}
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img.mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
