package extract

import (
	"image"
	"math"

	"github.com/adverant/nexus/raidscan-worker/internal/imaging"
)

// Region is a rectangle expressed as fractions of the image size.
type Region struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Bounds converts the fractions into pixel bounds for a width x height image.
// Halves round to even. A region with min < max keeps at least one pixel on
// each axis; min == max gives an empty rectangle.
func (r Region) Bounds(width, height int) image.Rectangle {
	x0, x1 := span(r.MinX, r.MaxX, width)
	y0, y1 := span(r.MinY, r.MaxY, height)
	return image.Rect(x0, y0, x1, y1)
}

func span(lo, hi float64, size int) (int, int) {
	a, b := scale(lo, size), scale(hi, size)
	if hi > lo && b <= a && size > 0 {
		if a < size {
			b = a + 1
		} else {
			a = b - 1
		}
	}
	return a, b
}

func scale(frac float64, size int) int {
	v := int(math.RoundToEven(frac * float64(size)))
	if v < 0 {
		return 0
	}
	if v > size {
		return size
	}
	return v
}

// Crop extracts region r of img as a new image. A degenerate region gives an
// empty image, which every later step reads as "no text".
func Crop(img *imaging.Image, r Region) *imaging.Image {
	return img.Crop(r.Bounds(img.Width(), img.Height()))
}

// Screen regions of the supported raid/profile layout.
var (
	regionWhole       = Region{MinX: 0, MaxX: 1, MinY: 0, MaxY: 1}
	regionGymName     = Region{MinX: .15, MaxX: .92, MinY: .04, MaxY: .19}
	regionEggTimer    = Region{MinX: .25, MaxX: .75, MinY: .16, MaxY: .33}
	regionEggTier     = Region{MinX: .22, MaxX: .78, MinY: .27, MaxY: .37}
	regionBossTier    = Region{MinX: .22, MaxX: .78, MinY: .34, MaxY: .42}
	regionExpireTimer = Region{MinX: .70, MaxX: .96, MinY: .52, MaxY: .64}
	regionBoss        = Region{MinX: .11, MaxX: .89, MinY: .15, MaxY: .34}
	regionPhoneClock  = Region{MinX: 0, MaxX: 1, MinY: 0, MaxY: .15}
	regionBanner      = Region{MinX: .13, MaxX: .87, MinY: .19, MaxY: .38}
	regionXP          = Region{MinX: .55, MaxX: .96, MinY: .55, MaxY: .78}

	regionsTrainerName = []Region{
		{MinX: .05, MaxX: .56, MinY: .13, MaxY: .24},
		{MinX: .05, MaxX: .56, MinY: .2, MaxY: .4},
	}
	regionsLevel = []Region{
		{MinX: .05, MaxX: .2, MinY: .5, MaxY: .7},
		{MinX: .05, MaxX: .2, MinY: .6, MaxY: .8},
	}
)

// teamPixel is the profile screen coordinate whose colour encodes the team.
var teamPixel = image.Pt(5, 300)
