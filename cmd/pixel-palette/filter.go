package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/ironsheep/pixel-palette/internal/imaging"
	"github.com/ironsheep/pixel-palette/internal/palette"
	"github.com/ironsheep/pixel-palette/internal/pipeline"
)

// errNoPalette is returned by filter when the palette has no colors.
var errNoPalette = errors.New("palette has no colors, nothing written")

func runFilter(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("filter", pflag.ContinueOnError)
	imagePath := fs.String("image", "", "image file to filter")
	lutName := fs.String("lut", "", "palette name from the palette directory")
	lutFile := fs.String("lut-file", "", "LUT file to use instead of a named palette")
	scale := fs.Float64("scale", 100, "pixel scale in percent (1-100)")
	dither := fs.Bool("dither", false, "enable error-diffusion dithering")
	outlines := fs.Bool("outlines", false, "draw black outlines")
	outDir := fs.String("out", ".", "directory for the output files")

	cfg, err := loadConfig(fs, args, stderr)
	if err != nil {
		return err
	}
	if *imagePath == "" {
		fmt.Fprintln(stderr, "filter: --image is required")
		return errUsage
	}
	if (*lutName == "") == (*lutFile == "") {
		fmt.Fprintln(stderr, "filter: exactly one of --lut or --lut-file is required")
		return errUsage
	}
	if *scale < 1 || *scale > 100 {
		fmt.Fprintln(stderr, "filter: --scale must be within 1..100")
		return errUsage
	}

	var pal palette.Palette
	if *lutFile != "" {
		data, err := os.ReadFile(*lutFile)
		if err != nil {
			return fmt.Errorf("failed to read LUT file: %w", err)
		}
		pal = palette.Parse(data)
	} else {
		pal, err = palette.NewLibrary(os.DirFS(cfg.Palettes.Dir)).Load(*lutName)
		if err != nil {
			return err
		}
	}

	img, _, err := imaging.LoadFile(*imagePath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg.PipelineSettings())
	if err != nil {
		return err
	}
	res, err := p.Run(img, pal, pipeline.Options{
		Scale:    imaging.ScaleFromPercent(*scale),
		Dither:   *dither,
		Outlines: *outlines,
	})
	if err != nil {
		return err
	}
	if res == nil {
		return errNoPalette
	}

	enc := cfg.Encoding()
	fullData, previewData, err := enc.Encode(res)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	fullName, previewName := pipeline.OutputNames(filepath.Base(*imagePath), enc.Format)
	for _, f := range []struct {
		name string
		data []byte
	}{
		{fullName, fullData},
		{previewName, previewData},
	} {
		path := filepath.Join(*outDir, f.name)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintln(stdout, path)
	}

	log.Info().
		Str("image", *imagePath).
		Int("colors", res.Colors).
		Bool("truncated", res.Truncated).
		Msg("filtered image")
	return nil
}

func runExtract(args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("extract", pflag.ContinueOnError)
	imagePath := fs.String("image", "", "image file to extract colors from")
	count := fs.Int("count", 8, "number of colors (1-256)")
	method := fs.String("method", string(palette.MethodDominant), "extraction method: dominant or kmeans")

	if _, err := loadConfig(fs, args, stderr); err != nil {
		return err
	}
	if *imagePath == "" {
		fmt.Fprintln(stderr, "extract: --image is required")
		return errUsage
	}
	if *count < 1 || *count > palette.TableSize {
		fmt.Fprintf(stderr, "extract: --count must be within 1..%d\n", palette.TableSize)
		return errUsage
	}
	m, err := palette.ParseMethod(*method)
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return errUsage
	}

	img, _, err := imaging.LoadFile(*imagePath)
	if err != nil {
		return err
	}

	p := palette.SortByLuminance(palette.Extract(img, *count, m))
	comment := fmt.Sprintf("%d colors extracted from %s (%s)", len(p), filepath.Base(*imagePath), m)
	_, err = stdout.Write(palette.FormatLUT(p, comment))
	return err
}
