// Package pipeline composes the filter stages into the single operation the
// front ends expose: mosaic, quantize, outline, preview.
package pipeline

import (
	"fmt"
	"image"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixel-palette/internal/imaging"
	"github.com/ironsheep/pixel-palette/internal/palette"
)

// Settings holds the deployment-wide knobs of the pipeline. Per-request
// choices live in Options.
type Settings struct {
	// DitherMatrix names the error-diffusion matrix; empty selects
	// imaging.DefaultMatrix.
	DitherMatrix string

	// Serpentine alternates the dither scan direction per row.
	Serpentine bool

	// Outline configures the edge mask.
	Outline imaging.OutlineOptions

	// PreviewSize bounds the long edge of the preview; zero selects
	// imaging.DefaultPreviewSize.
	PreviewSize int
}

// DefaultSettings returns Floyd-Steinberg, default outlines and a 512px preview.
func DefaultSettings() Settings {
	return Settings{
		DitherMatrix: imaging.DefaultMatrix,
		Outline:      imaging.DefaultOutlineOptions(),
		PreviewSize:  imaging.DefaultPreviewSize,
	}
}

// Options are the per-request choices.
type Options struct {
	// Scale is the mosaic factor in (0, 1]; 1 leaves the image untouched.
	// Use imaging.ScaleFromPercent to convert a percentage.
	Scale float64

	// Dither enables error diffusion.
	Dither bool

	// Outlines draws black edges computed from the mosaic image.
	Outlines bool
}

// Result is the output of one run.
type Result struct {
	// Full is the filtered image at the source resolution.
	Full *image.NRGBA

	// Preview is Full fitted within the preview bound, never upscaled.
	Preview *image.NRGBA

	// Colors is the number of palette colors that took part.
	Colors int

	// Truncated reports that the palette had more colors than the table
	// holds and the excess was dropped.
	Truncated bool

	// OutlinePixels is the number of pixels painted by the outline stage.
	OutlinePixels int
}

// Pipeline runs the filter stages with fixed settings. It holds no mutable
// state and is safe for concurrent use.
type Pipeline struct {
	settings Settings
}

// New validates settings and returns a pipeline.
func New(settings Settings) (*Pipeline, error) {
	if _, err := imaging.LookupMatrix(settings.DitherMatrix); err != nil {
		return nil, err
	}
	if settings.Outline.Operator != "" {
		if _, err := imaging.ParseEdgeOperator(string(settings.Outline.Operator)); err != nil {
			return nil, err
		}
	}
	if settings.Outline.Thickness < 0 {
		return nil, fmt.Errorf("outline thickness must not be negative, got %d", settings.Outline.Thickness)
	}
	if settings.PreviewSize < 0 {
		return nil, fmt.Errorf("preview size must not be negative, got %d", settings.PreviewSize)
	}
	if settings.PreviewSize == 0 {
		settings.PreviewSize = imaging.DefaultPreviewSize
	}
	return &Pipeline{settings: settings}, nil
}

// Settings returns the pipeline's settings.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Run filters img onto pal.
//
// The stages run in a fixed order: alpha is flattened, the image is
// mosaicked, the mosaic is quantized onto the palette table, and if
// requested an edge mask computed from the mosaic (not the source) is
// painted black over the quantized result. Finally the preview is derived.
//
// An empty palette is not an error: Run returns (nil, nil) and the caller
// renders nothing.
func (p *Pipeline) Run(img image.Image, pal palette.Palette, opts Options) (*Result, error) {
	if len(pal) == 0 {
		log.Debug().Msg("no palette colors, skipping filter")
		return nil, nil
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: image has no pixels", imaging.ErrDecode)
	}

	truncated := pal.Truncated()
	colors := len(pal)
	if truncated {
		colors = palette.TableSize
		log.Warn().Int("colors", len(pal)).Int("kept", palette.TableSize).Msg("palette truncated")
	}

	mosaic := imaging.Mosaic(imaging.Opaque(img), opts.Scale)

	quantized, err := imaging.Quantize(mosaic, pal.Table(), imaging.DitherOptions{
		Enabled:    opts.Dither,
		Matrix:     p.settings.DitherMatrix,
		Serpentine: p.settings.Serpentine,
	})
	if err != nil {
		return nil, fmt.Errorf("quantize: %w", err)
	}
	full := imaging.Opaque(quantized)

	outlined := 0
	if opts.Outlines {
		mask, err := imaging.EdgeMask(mosaic, p.settings.Outline)
		if err != nil {
			return nil, fmt.Errorf("outline: %w", err)
		}
		imaging.Overlay(full, mask)
		outlined = imaging.MaskedPixels(mask)
	}

	log.Debug().
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Float64("scale", opts.Scale).
		Bool("dither", opts.Dither).
		Bool("outlines", opts.Outlines).
		Int("colors", colors).
		Msg("filtered image")

	return &Result{
		Full:          full,
		Preview:       imaging.Preview(full, p.settings.PreviewSize),
		Colors:        colors,
		Truncated:     truncated,
		OutlinePixels: outlined,
	}, nil
}
