package imaging

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// ScaleFromPercent converts a pixel-scale percentage into a scale factor.
// The percentage is clamped to 1..100, so the result is always in (0, 1].
func ScaleFromPercent(percent float64) float64 {
	if math.IsNaN(percent) {
		return 1.0
	}
	return math.Max(math.Min(percent, 100), 1) / 100.0
}

// MosaicSize returns the intermediate resolution used by Mosaic: each side is
// round(side*scale), clamped to at least 1 pixel.
func MosaicSize(width, height int, scale float64) (int, int) {
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	return max(w, 1), max(h, 1)
}

// Mosaic simulates a lower pixel resolution.
//
// For scale < 1 the image is downsampled with nearest-neighbor to
// MosaicSize and then upsampled back to its original size, again with
// nearest-neighbor, which produces flat blocks. For scale >= 1 (or a
// non-positive, meaningless scale) the result is a pixel-identical copy.
//
// The returned image always has origin (0,0).
func Mosaic(img image.Image, scale float64) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if scale >= 1.0 || scale <= 0 || w == 0 || h == 0 {
		return imaging.Clone(img)
	}

	sw, sh := MosaicSize(w, h, scale)
	small := imaging.Resize(img, sw, sh, imaging.NearestNeighbor)
	return imaging.Resize(small, w, h, imaging.NearestNeighbor)
}
