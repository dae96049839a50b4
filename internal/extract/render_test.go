package extract

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"github.com/adverant/nexus/raidscan-worker/internal/imaging"
)

// renderText draws white text centred in region r of a black gray image,
// the way countdowns appear in game.
func renderText(t *testing.T, rows, cols int, text string, r Region) *imaging.Image {
	t.Helper()

	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
	bounds := r.Bounds(cols, rows)
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, 3, 6)
	origin := image.Pt(
		bounds.Min.X+(bounds.Dx()-size.X)/2,
		bounds.Min.Y+(bounds.Dy()+size.Y)/2,
	)
	gocv.PutText(&mat, text, origin, gocv.FontHersheySimplex, 3, color.RGBA{R: 255, G: 255, B: 255, A: 0}, 6)
	return imaging.FromMat(mat)
}
