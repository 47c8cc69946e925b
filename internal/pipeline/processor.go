package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ironsheep/pixel-palette/internal/imaging"
	"github.com/ironsheep/pixel-palette/internal/palette"
	"github.com/ironsheep/pixel-palette/internal/storage"
)

// Encoding selects the output file format.
type Encoding struct {
	Format         imaging.Format
	Quality        int
	PreviewQuality int
}

// DefaultEncoding is JPEG at quality 90 for the full image and 70 for the
// preview.
func DefaultEncoding() Encoding {
	return Encoding{Format: imaging.FormatJPEG, Quality: 90, PreviewQuality: 70}
}

// Encode encodes both images of res.
func (e Encoding) Encode(res *Result) (full, preview []byte, err error) {
	full, err = imaging.Encode(res.Full, e.Format, e.Quality)
	if err != nil {
		return nil, nil, fmt.Errorf("encode full image: %w", err)
	}
	preview, err = imaging.Encode(res.Preview, e.Format, e.PreviewQuality)
	if err != nil {
		return nil, nil, fmt.Errorf("encode preview: %w", err)
	}
	return full, preview, nil
}

// OutputNames returns the file names of the full image and the preview for
// the source file name: "cat.png" becomes "cat_filtered.jpg" and
// "cat_filtered_preview.jpg" for JPEG output.
func OutputNames(source string, format imaging.Format) (full, preview string) {
	stem := strings.TrimSuffix(source, filepath.Ext(source))
	if stem == "" {
		stem = "image"
	}
	return stem + "_filtered" + format.Ext(), stem + "_filtered_preview" + format.Ext()
}

// Request asks for one stored upload to be filtered.
type Request struct {
	// UploadID is the storage handle of the source image.
	UploadID string

	// PaletteName selects a palette from the library.
	PaletteName string

	// PaletteData is an uploaded LUT file. It takes precedence over
	// PaletteName.
	PaletteData []byte

	Options
}

// Output describes the files written for a request.
type Output struct {
	UploadID    string `json:"upload_id"`
	SourceName  string `json:"source_name"`
	FullName    string `json:"full_name"`
	PreviewName string `json:"preview_name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	PreviewW    int    `json:"preview_width"`
	PreviewH    int    `json:"preview_height"`
	Colors      int    `json:"colors"`
	Truncated   bool   `json:"truncated"`
}

// Processor runs the pipeline against stored uploads and palettes from a
// library, writing the encoded results back into the upload's scope.
type Processor struct {
	pipeline *Pipeline
	library  *palette.Library
	store    *storage.Store
	encoding Encoding
}

// NewProcessor wires a pipeline to its palette library and upload store.
func NewProcessor(p *Pipeline, library *palette.Library, store *storage.Store, enc Encoding) *Processor {
	return &Processor{
		pipeline: p,
		library:  library,
		store:    store,
		encoding: enc,
	}
}

// Library returns the processor's palette library.
func (p *Processor) Library() *palette.Library {
	return p.library
}

// Store returns the processor's upload store.
func (p *Processor) Store() *storage.Store {
	return p.store
}

// ResolvePalette returns the palette a request names. A request with
// neither LUT bytes nor a palette name resolves to an empty palette.
func (p *Processor) ResolvePalette(req Request) (palette.Palette, error) {
	switch {
	case len(req.PaletteData) > 0:
		return palette.Parse(req.PaletteData), nil
	case req.PaletteName != "":
		if p.library == nil {
			return nil, fmt.Errorf("%w: %q", palette.ErrUnknownPalette, req.PaletteName)
		}
		return p.library.Load(req.PaletteName)
	default:
		return nil, nil
	}
}

// Process filters the upload req.UploadID.
//
// When the resolved palette has no colors Process returns (nil, nil) and
// writes nothing. Unknown uploads are storage.ErrNotFound, undecodable ones
// imaging.ErrDecode.
func (p *Processor) Process(ctx context.Context, req Request) (*Output, error) {
	if p.store == nil {
		return nil, errors.New("no upload store configured")
	}

	pal, err := p.ResolvePalette(req)
	if err != nil {
		return nil, err
	}
	if len(pal) == 0 {
		return nil, nil
	}

	upload, err := p.store.Lookup(req.UploadID)
	if err != nil {
		return nil, err
	}
	img, _, err := p.store.Image(req.UploadID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := p.pipeline.Run(img, pal, req.Options)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullData, previewData, err := p.encoding.Encode(res)
	if err != nil {
		return nil, err
	}

	fullName, previewName := OutputNames(upload.Name, p.encoding.Format)
	if _, err := p.store.WriteFile(upload.ID, fullName, fullData); err != nil {
		return nil, err
	}
	if _, err := p.store.WriteFile(upload.ID, previewName, previewData); err != nil {
		return nil, err
	}

	log.Info().
		Str("upload", upload.ID).
		Str("source", upload.Name).
		Str("palette", paletteLabel(req)).
		Int("colors", res.Colors).
		Msg("wrote filtered image")

	return &Output{
		UploadID:    upload.ID,
		SourceName:  upload.Name,
		FullName:    fullName,
		PreviewName: previewName,
		Width:       res.Full.Bounds().Dx(),
		Height:      res.Full.Bounds().Dy(),
		PreviewW:    res.Preview.Bounds().Dx(),
		PreviewH:    res.Preview.Bounds().Dy(),
		Colors:      res.Colors,
		Truncated:   res.Truncated,
	}, nil
}

func paletteLabel(req Request) string {
	if len(req.PaletteData) > 0 {
		return "(uploaded)"
	}
	return req.PaletteName
}
