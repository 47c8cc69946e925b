package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
	"github.com/disintegration/gift"
)

// ErrUnknownOperator is returned for an unrecognized edge operator name.
var ErrUnknownOperator = errors.New("unknown edge operator")

// EdgeOperator selects the kernel used to measure edge strength.
type EdgeOperator string

const (
	// EdgeLaplacian is the 3x3 kernel with -1 everywhere and 8 in the center.
	EdgeLaplacian EdgeOperator = "laplacian"
	// EdgeSobel is the gradient magnitude of the horizontal and vertical Sobel kernels.
	EdgeSobel EdgeOperator = "sobel"
)

// Outline defaults.
const (
	DefaultOutlineThreshold = 40
	DefaultOutlineThickness = 3
)

// ParseEdgeOperator converts an operator name; the empty string selects EdgeLaplacian.
func ParseEdgeOperator(name string) (EdgeOperator, error) {
	switch op := EdgeOperator(strings.ToLower(strings.TrimSpace(name))); op {
	case "":
		return EdgeLaplacian, nil
	case EdgeLaplacian, EdgeSobel:
		return op, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownOperator, name)
	}
}

// OutlineOptions controls edge mask construction.
type OutlineOptions struct {
	// Operator is the edge kernel. The zero value selects EdgeLaplacian.
	Operator EdgeOperator

	// Threshold is the edge strength (0-255) a pixel must exceed to become
	// part of the mask. 255 produces an empty mask.
	Threshold uint8

	// Thickness is the side of the square maximum filter used to thicken the
	// mask. It is rounded up to an odd number; 0 and 1 disable dilation.
	Thickness int
}

// DefaultOutlineOptions returns the laplacian operator, a threshold of 40
// and 3x3 dilation.
func DefaultOutlineOptions() OutlineOptions {
	return OutlineOptions{
		Operator:  EdgeLaplacian,
		Threshold: DefaultOutlineThreshold,
		Thickness: DefaultOutlineThickness,
	}
}

// EdgeMask computes the outline mask of img.
//
// The image is converted to grayscale, the edge operator is applied, and
// every pixel whose edge strength is strictly greater than opts.Threshold is
// set. The mask is then dilated with a Thickness x Thickness maximum filter.
//
// The returned mask has origin (0,0) and the size of img. Set pixels have
// alpha 255, all others 0. A uniform image always yields an empty mask.
func EdgeMask(img image.Image, opts OutlineOptions) (*image.Alpha, error) {
	bounds := img.Bounds()
	rect := image.Rect(0, 0, bounds.Dx(), bounds.Dy())

	if opts.Threshold == 255 || rect.Empty() {
		return image.NewAlpha(rect), nil
	}

	gray := image.NewGray(rect)
	gift.New(gift.Grayscale()).Draw(gray, img)

	var edges image.Image
	switch opts.Operator {
	case "", EdgeLaplacian:
		edges = effect.EdgeDetection(gray, 1)
	case EdgeSobel:
		g := gift.New(gift.Sobel())
		sobel := image.NewGray(g.Bounds(gray.Bounds()))
		g.Draw(sobel, gray)
		edges = sobel
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperator, opts.Operator)
	}

	// Threshold keeps values >= level, so level is one above the cutoff.
	mask := segment.Threshold(edges, opts.Threshold+1)

	if k := opts.Thickness; k > 1 {
		if k%2 == 0 {
			k++
		}
		g := gift.New(gift.Maximum(k, false))
		dilated := image.NewGray(g.Bounds(mask.Bounds()))
		g.Draw(dilated, mask)
		mask = dilated
	}

	return &image.Alpha{Pix: mask.Pix, Stride: mask.Stride, Rect: rect}, nil
}

// Overlay paints every set pixel of mask pure black onto dst. It is a paste,
// not a blend: masked pixels lose their original color entirely.
//
// The mask is aligned with the top-left corner of dst.
func Overlay(dst draw.Image, mask *image.Alpha) {
	r := dst.Bounds().Intersect(mask.Bounds().Add(dst.Bounds().Min))
	if r.Empty() {
		return
	}
	src := image.NewUniform(color.Black)
	draw.DrawMask(dst, r, src, image.Point{}, mask, mask.Bounds().Min, draw.Over)
}

// MaskedPixels counts the set pixels of mask.
func MaskedPixels(mask *image.Alpha) int {
	n := 0
	for _, a := range mask.Pix {
		if a != 0 {
			n++
		}
	}
	return n
}
