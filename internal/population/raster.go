package population

import (
	"image"
	"math"
)

// noDataLevel is the 8-bit channel value above which a pixel counts as blank.
const noDataLevel = 250

// pixelFor maps a coordinate into the bounding box. lng -180..180 spans
// the box horizontally; lat 90..-90 spans it top to bottom. The far edges
// (lng 180, lat -90) belong to the last column and row.
func pixelFor(box image.Rectangle, lat, lng float64) image.Point {
	x := float64(box.Min.X) + (lng+180)/360*float64(box.Dx())
	y := float64(box.Min.Y) + (90-lat)/180*float64(box.Dy())
	px, py := int(math.Floor(x)), int(math.Floor(y))
	if px == box.Max.X && lng <= 180 {
		px--
	}
	if py == box.Max.Y && lat >= -90 {
		py--
	}
	return image.Pt(px, py)
}

// sample reads the density encoded at (lat, lng). Darker pixels are
// denser; near-white pixels carry no data and read as zero.
func sample(img image.Image, box image.Rectangle, lat, lng float64) (float64, bool) {
	if box.Empty() {
		box = img.Bounds()
	}
	pt := pixelFor(box, lat, lng)
	if !pt.In(img.Bounds()) {
		return 0, false
	}

	r16, g16, b16, _ := img.At(pt.X, pt.Y).RGBA()
	r, g, b := r16>>8, g16>>8, b16>>8
	if r > noDataLevel && g > noDataLevel && b > noDataLevel {
		return 0, true
	}

	gray := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	density := math.Round((1 - gray/255) * MaxDensity)
	return clamp(density, 0, MaxDensity), true
}
