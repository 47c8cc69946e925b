package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"
	"strings"

	"github.com/makeworld-the-better-one/dither/v2"
)

// ErrUnknownMatrix is returned for an unrecognized error-diffusion matrix name.
var ErrUnknownMatrix = errors.New("unknown dither matrix")

// DefaultMatrix is the error-diffusion matrix used when none is configured.
const DefaultMatrix = "floyd-steinberg"

var diffusionMatrices = map[string]dither.ErrorDiffusionMatrix{
	"floyd-steinberg":     dither.FloydSteinberg,
	"atkinson":            dither.Atkinson,
	"burkes":              dither.Burkes,
	"jarvis-judice-ninke": dither.JarvisJudiceNinke,
	"sierra":              dither.Sierra,
	"sierra-lite":         dither.SierraLite,
	"stucki":              dither.Stucki,
	"two-row-sierra":      dither.TwoRowSierra,
}

// DitherOptions controls the quantize stage.
type DitherOptions struct {
	// Enabled turns on error-diffusion dithering. When false every pixel is
	// mapped to its nearest palette entry independently.
	Enabled bool

	// Matrix is the error-diffusion matrix name; empty selects DefaultMatrix.
	Matrix string

	// Serpentine alternates the scan direction on every row instead of always
	// scanning left to right.
	Serpentine bool
}

// Matrices returns the names of the supported error-diffusion matrices, sorted.
func Matrices() []string {
	names := make([]string, 0, len(diffusionMatrices))
	for name := range diffusionMatrices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupMatrix resolves an error-diffusion matrix by name. The lookup is
// case-insensitive and the empty name selects DefaultMatrix.
func LookupMatrix(name string) (dither.ErrorDiffusionMatrix, error) {
	name = matrixName(name)
	m, ok := diffusionMatrices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMatrix, name)
	}
	return m, nil
}

func matrixName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultMatrix
	}
	return name
}

// Quantize maps every pixel of img onto table.
//
// Parameters:
//   - img: Source image. Pass an opaque image (see Opaque) so alpha does not
//     take part in the nearest-color search.
//   - table: The colors to quantize onto, normally a palette.Palette table.
//   - opts: Dithering options.
//
// Returns a paletted image with origin (0,0) whose pixels all index into
// table, or an error if the matrix name is unknown or table is empty.
//
// # Distance
//
// Without dithering, the nearest entry is chosen by squared Euclidean
// distance in RGB; ties go to the entry that comes first in table.
//
// With dithering, quantization error is diffused to not-yet-visited
// neighbors using the selected matrix. Floyd-Steinberg spreads 7/16 to the
// right, 3/16 below-left, 5/16 below and 1/16 below-right.
//
// Floyd-Steinberg in raster order works in sRGB with the same nearest-color
// rule as the undithered path. The other matrices and serpentine scanning
// choose colors and diffuse error in linear light.
func Quantize(img image.Image, table color.Palette, opts DitherOptions) (*image.Paletted, error) {
	if len(table) == 0 {
		return nil, errors.New("empty color table")
	}

	bounds := img.Bounds()
	dst := image.NewPaletted(image.Rect(0, 0, bounds.Dx(), bounds.Dy()), table)

	if !opts.Enabled {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst, nil
	}

	matrix, err := LookupMatrix(opts.Matrix)
	if err != nil {
		return nil, err
	}

	if matrixName(opts.Matrix) == DefaultMatrix && !opts.Serpentine {
		draw.FloydSteinberg.Draw(dst, dst.Bounds(), Opaque(img), image.Point{})
		return dst, nil
	}

	d := dither.NewDitherer(table)
	if d == nil {
		return nil, errors.New("failed to create ditherer")
	}
	d.Matrix = matrix
	d.Serpentine = opts.Serpentine

	// The ditherer may work in place, so it gets its own copy.
	dithered := d.Dither(Opaque(img))
	if dithered == nil {
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst, nil
	}

	// Every dithered pixel is already a table color, so this is an exact
	// index lookup.
	draw.Draw(dst, dst.Bounds(), dithered, dithered.Bounds().Min, draw.Src)
	return dst, nil
}
